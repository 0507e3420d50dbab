package entity

import "time"

// Call workflow status
const (
	StatusUnprocessed = "UNPROCESSED"
	StatusSkipped     = "SKIPPED"
	StatusCreated     = "CREATED"
)

// HistorySchemaVersion is stamped on every persisted history document.
const HistorySchemaVersion = 2

// HistoryRetentionCap bounds the call history: newest entries are kept,
// oldest evicted first. A bounded log, not an archive.
const HistoryRetentionCap = 250

// TicketDraft holds the operator's in-progress ticket fields for a call.
type TicketDraft struct {
	Topic      string `bson:"topic,omitempty"`
	Subject    string `bson:"subject,omitempty"`
	Body       string `bson:"body,omitempty"`
	ClientID   string `bson:"clientId,omitempty"`
	ClientName string `bson:"clientName,omitempty"`
}

// HistoryEntry is a CallRecord plus workflow metadata. Entries are created
// once per distinct call id and mutated thereafter (status, draft,
// ticket URL) until evicted by the retention cap or an explicit clear.
// Core call fields are never rewritten after the first extraction; status
// is the only retroactively-updatable aspect.
type HistoryEntry struct {
	Call             CallRecord   `bson:"call"`
	Status           string       `bson:"status"`
	AddedAt          time.Time    `bson:"addedAt"`
	UpdatedAt        time.Time    `bson:"updatedAt"`
	Draft            *TicketDraft `bson:"draft,omitempty"`
	AssociatedClient *ClientRef   `bson:"associatedClient,omitempty"`
	TicketURL        string       `bson:"ticketUrl,omitempty"`
	SchemaVersion    int          `bson:"schemaVersion"`
}

// Terminal reports whether the entry has left the notification pipeline
// for good. Created entries are never re-notified.
func (e *HistoryEntry) Terminal() bool {
	return e.Status == StatusCreated
}
