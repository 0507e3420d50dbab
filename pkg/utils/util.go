package utils

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	reTag        = regexp.MustCompile(`<[^>]*>`)
	reWhitespace = regexp.MustCompile(`\s+`)
	reDigits     = regexp.MustCompile(`\D`)
)

// atoi converts string to int, zero on failure
func atoi(value string) int {
	parsed, _ := strconv.Atoi(value)
	return parsed
}

// StripTags removes markup from a text fragment, unescapes HTML entities
// and collapses whitespace.
func StripTags(fragment string) string {
	text := reTag.ReplaceAllString(fragment, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// NormalizePhone reduces a matched phone fragment to the canonical
// "7" + 10 digits form. Returns "" when the digits do not form a valid
// number.
func NormalizePhone(raw string) string {
	digits := reDigits.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 11 && digits[0] == '7':
		return digits
	case len(digits) == 11 && digits[0] == '8':
		return "7" + digits[1:]
	case len(digits) == 10:
		return "7" + digits
	}
	return ""
}
