// Package models provides data model definitions for the attendant client.
package models

import "encoding/json"

// AuthContext carries the credential material attached to a remote
// call. It is opaque to the sync core: the auth collaborator issues it,
// the queue stores it verbatim, and the gateway replays it as headers.
// There is no process-wide token: every call and every queued
// operation carries its own copy.
type AuthContext struct {
	BearerToken string `json:"bearer_token,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
}

// Marshal serializes the context for storage alongside a pending
// operation.
func (a AuthContext) Marshal() (json.RawMessage, error) {
	return json.Marshal(a)
}

// IsZero reports whether the context carries no credentials.
func (a AuthContext) IsZero() bool {
	return a.BearerToken == "" && a.APIKey == ""
}
