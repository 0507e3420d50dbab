package entity

import "time"

// PortalTimeLayout is the literal timestamp format the portal renders,
// e.g. "05.03.2024 14:21:08". Timestamps are kept as source text and
// parsed on demand for ordering.
const PortalTimeLayout = "02.01.2006 15:04:05"

// DurationUnknown marks a call whose duration could not be recovered.
const DurationUnknown = -1

// ClientRef is a candidate client suggested by the portal for a call.
type ClientRef struct {
	ID   string `bson:"id"`
	Name string `bson:"name"`
}

// CallRecord is one phone call detected on the portal. Records are built
// fresh on every poll or history page fetch and never mutated in place.
type CallRecord struct {
	// ID is the portal's opaque call/recording identifier. May be empty
	// when the portal omitted it; such records are excluded from history
	// dedup.
	ID string `bson:"id"`

	// Phone holds the raw digits as reported by the portal. May be empty.
	Phone string `bson:"phone"`

	// Timestamp is the portal's literal "DD.MM.YYYY HH:MM:SS" text.
	Timestamp string `bson:"timestamp"`

	// DurationSeconds is the call length, or DurationUnknown.
	DurationSeconds int `bson:"durationSeconds"`

	// RecordingURL is derived from ID when the portal exposes a recording
	// endpoint; empty otherwise.
	RecordingURL string `bson:"recordingUrl,omitempty"`

	// SuggestedClients are candidate clients in first-seen order,
	// deduplicated by id.
	SuggestedClients []ClientRef `bson:"suggestedClients,omitempty"`

	// HasOpenTicket is true when the page markup already shows a ticket
	// link or success marker for this call.
	HasOpenTicket bool `bson:"hasOpenTicket"`

	// SourceQuery is the original query-string fragment the portal used to
	// address this call. Needed to replay a ticket-creation request later.
	// Empty for fallback-recovered records.
	SourceQuery string `bson:"sourceQuery,omitempty"`

	// FallbackRecovered marks records found via the secondary row-scanning
	// path, which has lower field confidence.
	FallbackRecovered bool `bson:"fallbackRecovered"`
}

// Time parses the portal timestamp for ordering.
func (r *CallRecord) Time() (time.Time, error) {
	return time.Parse(PortalTimeLayout, r.Timestamp)
}

// HasDuration reports whether the duration was recovered from the markup.
func (r *CallRecord) HasDuration() bool {
	return r.DurationSeconds >= 0
}
