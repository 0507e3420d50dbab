package utils

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/pkg/logger"
)

// Query-string keys the portal uses on call-defining anchors.
const (
	paramPhone    = "selectedPhoneNuber" // sic, the portal's own typo
	paramLinkedID = "linkedId"
	paramDate     = "selectedPhoneDate"
	paramDuration = "selectedPhoneDuration"
)

// recordFilePath is the portal's recording endpoint; the recording URL is
// derived deterministically from the call's linked id.
const recordFilePath = "/PhoneCalls/GetRecordFile?id="

// rowWindow bounds the search for an enclosing table row when the row
// tags are missing around a fallback recording link.
const rowWindow = 2000

var (
	// call-defining anchor: its href query names the phone number
	reCallAnchor = regexp.MustCompile(`<a[^>]+href="([^"]*` + paramPhone + `=[^"]*)"`)

	// any anchor, attributes and inner markup captured separately
	reAnchor = regexp.MustCompile(`(?is)<a\b([^>]*)>(.*?)</a>`)

	// client suggestion href, ".../Create?id=<digits>..."
	reSuggestionHref = regexp.MustCompile(`/Create\?(?:[^"'\s]*?&(?:amp;)?)?id=(\d+)`)

	// recording link occurrences for the fallback path
	reRecordingLink = regexp.MustCompile(`GetRecordFile\?(?:amp;)?id=(\d+)`)

	// second-column noise token: short internal extension-style value
	reExtension = regexp.MustCompile(`^\d{2,4}$`)

	reCell     = regexp.MustCompile(`(?is)<td[^>]*>(.*?)</td>`)
	reRowOpen  = regexp.MustCompile(`(?i)<tr[\s>]`)
	reRowClose = regexp.MustCompile(`(?i)</tr>`)
)

// ticket-existence markers inside a call block or row
const (
	ticketDetailsFragment = "/Tickets/Details"
	ticketSuccessClass    = "text-success"
)

// CallExtractor recovers structured call records from the portal's
// server-rendered HTML. Extraction is deterministic and side-effect-free:
// malformed or partial markup degrades to fewer records, never to an
// error.
type CallExtractor struct {
	baseURL string
	logger  logger.Logger
}

// NewCallExtractor creates a new call extractor. baseURL prefixes derived
// recording URLs and may be empty.
func NewCallExtractor(baseURL string, logger logger.Logger) *CallExtractor {
	return &CallExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// callBlock is the span between one call-defining anchor and the next.
type callBlock struct {
	start    int
	end      int
	rawQuery string
	values   url.Values
}

// ExtractCurrentCall returns the live call from the portal's live page:
// the first call block that survives the noise filter, or nil when the
// page shows no call.
func (e *CallExtractor) ExtractCurrentCall(page string) *entity.CallRecord {
	for _, block := range e.findCallBlocks(page) {
		if rec := e.recordFromBlock(page, block); rec != nil {
			return rec
		}
	}
	return nil
}

// ExtractAllCalls returns every call found on a history page. The primary
// boundary-scanning path handles the current layout; recording links the
// portal rendered without call anchors are recovered through the fallback
// row-scanning path with lower field confidence.
func (e *CallExtractor) ExtractAllCalls(page string) []*entity.CallRecord {
	var records []*entity.CallRecord
	claimed := make(map[string]bool)

	for _, block := range e.findCallBlocks(page) {
		rec := e.recordFromBlock(page, block)
		if rec == nil {
			continue
		}
		records = append(records, rec)
		if rec.ID != "" {
			claimed[rec.ID] = true
		}
	}

	for _, rec := range e.recoverUnclaimed(page, claimed) {
		records = append(records, rec)
	}

	return records
}

// DetectLoginPage reports whether body is the portal's login page rather
// than an authenticated page.
func (e *CallExtractor) DetectLoginPage(body string) bool {
	return ContainsLoginMarker(body)
}

// RecordingURL derives the recording endpoint URL for a call id.
func (e *CallExtractor) RecordingURL(id string) string {
	if id == "" {
		return ""
	}
	return e.baseURL + recordFilePath + id
}

// findCallBlocks locates call-defining anchors and segments the page into
// blocks. An anchor defines a call only when its query string carries the
// phone number but no client id; anchors with an id belong to the
// suggestion list of the enclosing block.
func (e *CallExtractor) findCallBlocks(page string) []callBlock {
	matches := reCallAnchor.FindAllStringSubmatchIndex(page, -1)
	if matches == nil {
		return nil
	}

	var blocks []callBlock
	for _, m := range matches {
		href := html.UnescapeString(page[m[2]:m[3]])
		qi := strings.Index(href, "?")
		if qi < 0 {
			continue
		}
		rawQuery := href[qi+1:]
		values, err := url.ParseQuery(rawQuery)
		if err != nil {
			e.logger.Debug("Unparseable call anchor query", "query", rawQuery)
			continue
		}
		if values.Get("id") != "" {
			continue
		}
		blocks = append(blocks, callBlock{start: m[0], rawQuery: rawQuery, values: values})
	}

	for i := range blocks {
		if i+1 < len(blocks) {
			blocks[i].end = blocks[i+1].start
		} else {
			blocks[i].end = len(page)
		}
	}
	return blocks
}

// recordFromBlock builds a record from a call block's defining anchor and
// inner markup. Returns nil when the noise filter rejects the block.
func (e *CallExtractor) recordFromBlock(page string, block callBlock) *entity.CallRecord {
	if e.isNoiseRow(page, block.start) {
		return nil
	}

	inner := page[block.start:block.end]

	rec := &entity.CallRecord{
		ID:              block.values.Get(paramLinkedID),
		Phone:           block.values.Get(paramPhone),
		Timestamp:       block.values.Get(paramDate),
		DurationSeconds: entity.DurationUnknown,
		SourceQuery:     block.rawQuery,
		HasOpenTicket:   hasTicketMarker(inner),
	}
	if v := block.values.Get(paramDuration); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			rec.DurationSeconds = seconds
		}
	}
	rec.RecordingURL = e.RecordingURL(rec.ID)
	rec.SuggestedClients = extractSuggestions(inner)
	return rec
}

// recoverUnclaimed is the fallback path: recording links the primary scan
// did not claim are resolved to their enclosing table row and the call
// fields recovered through the per-field pattern chains.
func (e *CallExtractor) recoverUnclaimed(page string, claimed map[string]bool) []*entity.CallRecord {
	var records []*entity.CallRecord

	for _, m := range reRecordingLink.FindAllStringSubmatchIndex(page, -1) {
		id := page[m[2]:m[3]]
		if claimed[id] {
			continue
		}
		claimed[id] = true

		row := enclosingRow(page, m[0])
		if isNoiseColumn(secondColumn(row)) {
			continue
		}

		rec := &entity.CallRecord{
			ID:                id,
			Phone:             MatchPhone(row),
			Timestamp:         MatchCallDate(row),
			DurationSeconds:   MatchDuration(row),
			RecordingURL:      e.RecordingURL(id),
			HasOpenTicket:     hasTicketMarker(row),
			FallbackRecovered: true,
		}
		records = append(records, rec)
	}

	if len(records) > 0 {
		e.logger.Debug("Recovered calls via fallback row scan", "count", len(records))
	}
	return records
}

// enclosingRow returns the table row around pos, bounded by rowWindow
// characters on either side when the row tags are missing.
func enclosingRow(page string, pos int) string {
	start := 0
	if pos > rowWindow {
		start = pos - rowWindow
	}
	end := len(page)
	if pos+rowWindow < end {
		end = pos + rowWindow
	}

	if opens := reRowOpen.FindAllStringIndex(page[start:pos], -1); len(opens) > 0 {
		start += opens[len(opens)-1][0]
	}
	if closing := reRowClose.FindStringIndex(page[pos:end]); closing != nil {
		end = pos + closing[1]
	}
	return page[start:end]
}

// secondColumn returns the trimmed text of the row's second cell, or "".
func secondColumn(row string) string {
	cells := reCell.FindAllStringSubmatch(row, 2)
	if len(cells) < 2 {
		return ""
	}
	return StripTags(cells[1][1])
}

// isNoiseColumn reports whether a second-column token marks the row as an
// internal, non-billable call artifact.
func isNoiseColumn(column string) bool {
	return reExtension.MatchString(column)
}

func (e *CallExtractor) isNoiseRow(page string, pos int) bool {
	return isNoiseColumn(secondColumn(enclosingRow(page, pos)))
}

func hasTicketMarker(fragment string) bool {
	return strings.Contains(fragment, ticketDetailsFragment) ||
		strings.Contains(fragment, ticketSuccessClass)
}

// extractSuggestions collects client suggestion anchors from a call
// block: dropdown items linking to ".../Create?id=<digits>". First-seen
// order, deduplicated by id.
func extractSuggestions(block string) []entity.ClientRef {
	var suggestions []entity.ClientRef
	seen := make(map[string]bool)

	for _, m := range reAnchor.FindAllStringSubmatch(block, -1) {
		attrs, inner := m[1], m[2]
		if !strings.Contains(attrs, "dropdown-item") {
			continue
		}
		idMatch := reSuggestionHref.FindStringSubmatch(attrs)
		if idMatch == nil {
			continue
		}
		id := idMatch[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		suggestions = append(suggestions, entity.ClientRef{
			ID:   id,
			Name: StripTags(inner),
		})
	}
	return suggestions
}

// BuildCallQuery reconstructs the portal's call query string from a
// record's own fields. Fallback-recovered records carry no SourceQuery,
// so a ticket-creation request has to be addressed this way.
func BuildCallQuery(rec *entity.CallRecord) string {
	values := url.Values{}
	values.Set(paramPhone, rec.Phone)
	if rec.ID != "" {
		values.Set(paramLinkedID, rec.ID)
	}
	if rec.Timestamp != "" {
		values.Set(paramDate, rec.Timestamp)
	}
	if rec.HasDuration() {
		values.Set(paramDuration, fmt.Sprintf("%d", rec.DurationSeconds))
	}
	return values.Encode()
}
