// Package models provides data model definitions for the attendant client.
package models

// CheckInKind distinguishes the admission path that created a check-in.
type CheckInKind string

const (
	// CheckInNormal is a check-in for a pre-existing registration.
	CheckInNormal CheckInKind = "normal"
	// CheckInQuick is a check-in created together with a quick
	// registration for someone without prior signup.
	CheckInQuick CheckInKind = "quick"
)

// CheckIn records that a registration was admitted into an event.
// At most one check-in may exist per registration.
type CheckIn struct {
	ID             int64       `db:"id" json:"id"`
	RegistrationID UUID        `db:"registration_id" json:"registration_id"`
	EventID        string      `db:"event_id" json:"event_id"`
	TicketID       string      `db:"ticket_id" json:"ticket_id,omitempty"`
	StaffUserID    string      `db:"staff_user_id" json:"staff_user_id,omitempty"`
	Kind           CheckInKind `db:"kind" json:"kind"`
	SyncState      SyncState   `db:"sync_state" json:"sync_state"`
	OccurredAt     int64       `db:"occurred_at" json:"occurred_at"`
}

// TableName returns the table name for CheckIn.
func (CheckIn) TableName() string {
	return "checkins"
}
