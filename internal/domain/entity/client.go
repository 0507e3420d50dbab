package entity

import "time"

// ClientAssociation remembers which client a phone number belongs to.
// One row per phone number, last write wins. Persisted independently of
// the call history.
type ClientAssociation struct {
	Phone      string `gorm:"primaryKey;size:32"`
	ClientID   string `gorm:"size:64"`
	ClientName string `gorm:"size:255"`
	UpdatedAt  time.Time
}

// TicketTopic is a remembered ticket subject used for autocomplete.
type TicketTopic struct {
	Name       string `gorm:"primaryKey;size:255"`
	UseCount   int
	LastUsedAt time.Time
}
