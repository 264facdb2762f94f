// Package models provides data model definitions for the attendant client.
package models

import (
	"encoding/json"
	"time"
)

// PendingOperation is a remote call this client still owes the server.
// Rows are append-only: a failed attempt is retried as stored, never
// rewritten. The id is the sqlite autoincrement, which makes insertion
// order the replay order.
type PendingOperation struct {
	ID                    int64           `db:"id" json:"id"`
	Verb                  string          `db:"verb" json:"verb"`
	RemoteTarget          string          `db:"remote_target" json:"remote_target"`
	Body                  json.RawMessage `db:"body" json:"body"`
	AuthContext           json.RawMessage `db:"auth_context" json:"auth_context"`
	CreatedAt             string          `db:"created_at" json:"created_at"` // RFC 3339 UTC
	RelatedRegistrationID UUID            `db:"related_registration_id" json:"related_registration_id,omitempty"`
	RelatedNationalID     string          `db:"related_national_id" json:"related_national_id,omitempty"`
}

// TableName returns the table name for PendingOperation.
func (PendingOperation) TableName() string {
	return "pending_operations"
}

// Auth deserializes the auth context stored with the operation.
func (p *PendingOperation) Auth() (AuthContext, error) {
	var ac AuthContext
	if len(p.AuthContext) == 0 {
		return ac, nil
	}
	err := json.Unmarshal(p.AuthContext, &ac)
	return ac, err
}

// Time returns CreatedAt as time.Time. The zero time is returned for
// rows written before the column carried RFC 3339 values.
func (p *PendingOperation) Time() time.Time {
	t, err := time.Parse(time.RFC3339, p.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
