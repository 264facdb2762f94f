// Package uuid generates and recognizes the temporary ids this client
// assigns to records created offline. Server-issued ids are opaque
// strings; only client-minted ids follow the UUID v4 shape, so the
// shape itself tells the two apart.
package uuid

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// New mints a temporary id for a record created on this client.
func New() string {
	return uuid.New().String()
}

// IsClientMinted reports whether an id has the shape of a temporary id
// generated by New.
func IsClientMinted(s string) bool {
	return uuidV4Regex.MatchString(s)
}

// Validate returns an error when the string is not a client-minted id.
func Validate(s string) error {
	if !IsClientMinted(s) {
		return fmt.Errorf("not a client-minted id: %q", s)
	}
	return nil
}
