// Package models provides data model definitions for the attendant client.
package models

// Ticket is a remote-only payload returned by the ticket lookup.
// Tickets are never stored locally; the id is attached to a check-in
// when it was resolvable at admission time.
type Ticket struct {
	ID             string `json:"id"`
	RegistrationID string `json:"registration_id"`
	Code           string `json:"code,omitempty"`
}

// User is a remote-only payload returned by the user-by-email lookup.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
