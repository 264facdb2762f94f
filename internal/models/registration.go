// Package models provides data model definitions for the attendant client.
package models

// SyncState reports whether a record has been confirmed by the server.
type SyncState string

const (
	// SyncStateLocal marks a record created on this client and not yet
	// confirmed remotely. Its id is a client-generated temporary UUID.
	SyncStateLocal SyncState = "local"
	// SyncStateSynced marks a record whose id was issued or confirmed
	// by the server.
	SyncStateSynced SyncState = "synced"
)

// RegistrationStatus is the lifecycle status of a registration.
type RegistrationStatus string

const (
	RegistrationActive    RegistrationStatus = "active"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Registration ties a person to an event. At most one active
// registration may exist per (national id, event) pair locally.
type Registration struct {
	RegistrationID UUID               `db:"registration_id" json:"registration_id"`
	EventID        string             `db:"event_id" json:"event_id"`
	Name           string             `db:"name" json:"name"`
	NationalID     string             `db:"national_id" json:"national_id"`
	Email          string             `db:"email" json:"email"`
	SyncState      SyncState          `db:"sync_state" json:"sync_state"`
	Status         RegistrationStatus `db:"status" json:"status"`
	CreatedAt      int64              `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Registration.
func (Registration) TableName() string {
	return "registrations"
}

// IsLocal reports whether the registration still carries a temporary id.
func (r *Registration) IsLocal() bool {
	return r.SyncState == SyncStateLocal
}

// IsActive reports whether the registration admits entry.
func (r *Registration) IsActive() bool {
	return r.Status == RegistrationActive
}
