// Package sync classification of rejected remote calls.
package sync

import (
	"encoding/json"
	"strings"
)

// Classification is the fate of one queued operation after a drain
// attempt.
type Classification string

const (
	// ClassSuccess: the server accepted the call.
	ClassSuccess Classification = "success"
	// ClassAlreadyDone: the server already has the intended effect;
	// treated as success so the queue can converge instead of
	// retrying a duplicate forever.
	ClassAlreadyDone Classification = "already_done"
	// ClassPermanentInvalid: retrying would repeat the same rejection;
	// the operation is dropped.
	ClassPermanentInvalid Classification = "permanent_invalid"
	// ClassTransient: retrying later could plausibly succeed; the
	// operation stays queued.
	ClassTransient Classification = "transient"
)

// rejectionBody is the structured error shape newer remote services
// return. The code field is authoritative when present.
type rejectionBody struct {
	Code string `json:"code"`
}

// Codes the remote services emit for effects that already happened or
// can never happen.
const (
	codeAlreadyCheckedIn  = "ALREADY_CHECKED_IN"
	codeAlreadyRegistered = "ALREADY_REGISTERED"
	codeDuplicateIdentity = "DUPLICATE_IDENTITY"
)

// legacyAlreadyDonePhrases match the plain-text bodies of the older
// services, which report an already-performed check-in or registration
// only in prose. This is a placeholder adapter: it goes away once every
// service returns a structured code.
var legacyAlreadyDonePhrases = []string{
	"já foi realizado",
	"já registrado",
	"já inscrito",
}

// classifyRejection subdivides a ClientRejected outcome. The table is
// the heart of the sync policy:
//
//	4xx + already-done body  -> AlreadyDone
//	404                      -> PermanentInvalid (resource vanished)
//	400/409                  -> PermanentInvalid (stale or malformed data)
//	other 4xx                -> Transient
//	5xx + identity conflict  -> PermanentInvalid (validation leaking as 500)
//	other 5xx                -> Transient
func classifyRejection(status int, body []byte) Classification {
	if status >= 400 && status < 500 {
		if bodyIndicatesAlreadyDone(body) {
			return ClassAlreadyDone
		}
		switch status {
		case 404, 400, 409:
			return ClassPermanentInvalid
		}
		return ClassTransient
	}

	if status >= 500 {
		if bodyIndicatesIdentityConflict(body) {
			return ClassPermanentInvalid
		}
		return ClassTransient
	}

	// 3xx and other oddities: keep and retry.
	return ClassTransient
}

// bodyIndicatesAlreadyDone reports whether a rejection means the server
// already performed the operation.
func bodyIndicatesAlreadyDone(body []byte) bool {
	var rb rejectionBody
	if err := json.Unmarshal(body, &rb); err == nil && rb.Code != "" {
		return rb.Code == codeAlreadyCheckedIn || rb.Code == codeAlreadyRegistered
	}

	text := strings.ToLower(string(body))
	for _, phrase := range legacyAlreadyDonePhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// bodyIndicatesIdentityConflict reports a uniqueness violation on
// identity fields, which the legacy services surface as a 500 with a
// database error in the body.
func bodyIndicatesIdentityConflict(body []byte) bool {
	var rb rejectionBody
	if err := json.Unmarshal(body, &rb); err == nil && rb.Code != "" {
		return rb.Code == codeDuplicateIdentity
	}

	text := strings.ToLower(string(body))
	if !strings.Contains(text, "duplicate key") {
		return false
	}
	return strings.Contains(text, "cpf") ||
		strings.Contains(text, "national_id") ||
		strings.Contains(text, "email")
}
