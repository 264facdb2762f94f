// Package models provides data model definitions for the attendant client.
package models

import "time"

// Event represents an event from the remote catalog.
// Events are read-only on the client: the catalog refresh upserts them
// wholesale and nothing else writes to the table.
type Event struct {
	ID        string `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	StartsAt  string `db:"starts_at" json:"starts_at"` // RFC 3339, as delivered by the API
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Event.
func (Event) TableName() string {
	return "events"
}

// Start parses StartsAt. The zero time is returned when the remote
// catalog delivered an empty or malformed value.
func (e *Event) Start() time.Time {
	t, err := time.Parse(time.RFC3339, e.StartsAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
