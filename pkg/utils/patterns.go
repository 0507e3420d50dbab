package utils

import (
	"regexp"
	"strings"
)

// The portal renders the same call in several shapes depending on page age
// and layout version. Each field gets an ordered chain of (pattern,
// extractor) pairs evaluated first-match-wins, so the chains stay
// independently testable.

// phonePattern recovers a phone number from row text and normalizes it to
// a canonical "7" + 10 digits string.
type phonePattern struct {
	re *regexp.Regexp
}

var phonePatterns = []phonePattern{
	// URL-encoded "+7 (xxx) xxx-xx-xx" inside an href
	{regexp.MustCompile(`(?i)%2B7(?:%20|\+)*%28(\d{3})%29(?:%20|\+)*(\d{3})-(\d{2})-(\d{2})`)},
	// literal "+7 (xxx) xxx-xx-xx"
	{regexp.MustCompile(`\+7\s*\((\d{3})\)\s*(\d{3})-(\d{2})-(\d{2})`)},
	// bare 7 followed by 10 digits
	{regexp.MustCompile(`\b(7\d{10})\b`)},
	// spaced digit groups, "+7 912 345 67 89" or "8 912 345-67-89"
	{regexp.MustCompile(`\+?([78])[ \t](\d{3})[ \t-](\d{3})[ \t-](\d{2})[ \t-](\d{2})\b`)},
}

// MatchPhone runs the phone pattern chain over text. Returns the
// canonical digit string, or "" when no pattern matches.
func MatchPhone(text string) string {
	for _, p := range phonePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if phone := NormalizePhone(strings.Join(m[1:], "")); phone != "" {
			return phone
		}
	}
	return ""
}

// reCallDate matches the portal's single literal timestamp shape.
var reCallDate = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4} \d{2}:\d{2}:\d{2}`)

// MatchCallDate returns the first "DD.MM.YYYY HH:MM:SS" literal in text,
// or "".
func MatchCallDate(text string) string {
	return reCallDate.FindString(text)
}

// durationPattern converts a matched duration phrase into seconds.
type durationPattern struct {
	re      *regexp.Regexp
	seconds func(m []string) int
}

var durationPatterns = []durationPattern{
	{regexp.MustCompile(`(\d+)\s*мин\.?\s*(\d+)\s*сек`), func(m []string) int {
		return atoi(m[1])*60 + atoi(m[2])
	}},
	{regexp.MustCompile(`(\d+)\s*сек`), func(m []string) int {
		return atoi(m[1])
	}},
	{regexp.MustCompile(`(\d+)\s*мин`), func(m []string) int {
		return atoi(m[1]) * 60
	}},
}

// MatchDuration runs the duration chain over text. The first matching
// pattern stops the chain. Returns entity.DurationUnknown (-1) when
// nothing matches.
func MatchDuration(text string) int {
	for _, p := range durationPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return p.seconds(m)
		}
	}
	return -1
}

// loginMarkers are literal fragments present on the portal's login page
// and nowhere else. Presence of any one means the session is gone.
var loginMarkers = []string{
	`type="password"`,
	"Войти",
	"Log in",
	"Remember me",
}

// ContainsLoginMarker reports whether body looks like the portal's login
// page.
func ContainsLoginMarker(body string) bool {
	for _, marker := range loginMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
