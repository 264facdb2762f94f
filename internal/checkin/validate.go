// Package checkin input validation. Violations are INVALID_INPUT
// errors returned before any write happens.
package checkin

import (
	"regexp"
	"strings"

	apperrors "github.com/eventdesk/attendant/internal/errors"
)

var (
	nonDigits  = regexp.MustCompile(`\D`)
	emailShape = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// nationalIDLength is the digit count of the national id format the
// remote services validate against.
const nationalIDLength = 11

// NormalizeNationalID strips formatting from a national id and checks
// its length.
func NormalizeNationalID(nationalID string) (string, error) {
	digits := nonDigits.ReplaceAllString(nationalID, "")
	if len(digits) != nationalIDLength {
		return "", apperrors.New(apperrors.ErrInvalid, "national id must have 11 digits")
	}
	return digits, nil
}

// ValidateName checks a person's name for the quick path.
func ValidateName(name string) error {
	if len(strings.TrimSpace(name)) < 3 {
		return apperrors.New(apperrors.ErrInvalid, "name must have at least 3 characters")
	}
	return nil
}

// ValidateEmail checks the email shape for the quick path.
func ValidateEmail(email string) error {
	if !emailShape.MatchString(email) {
		return apperrors.New(apperrors.ErrInvalid, "email is not valid")
	}
	return nil
}
