// Package sync tests for rejection classification.
package sync

import "testing"

// TestClassifyRejection walks the classification policy for the HTTP
// rejections the drain can see.
func TestClassifyRejection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Classification
	}{
		{"structured already checked in", 409, `{"code":"ALREADY_CHECKED_IN"}`, ClassAlreadyDone},
		{"structured already registered", 409, `{"code":"ALREADY_REGISTERED"}`, ClassAlreadyDone},
		{"structured duplicate identity", 500, `{"code":"DUPLICATE_IDENTITY"}`, ClassPermanentInvalid},
		{"legacy phrase check-in done", 400, `{"detail":"Check-in já foi realizado"}`, ClassAlreadyDone},
		{"legacy phrase already recorded", 409, `{"detail":"já registrado para este evento"}`, ClassAlreadyDone},
		{"legacy phrase already enrolled", 422, `{"detail":"participante já inscrito"}`, ClassAlreadyDone},
		{"not found", 404, `{"detail":"registration not found"}`, ClassPermanentInvalid},
		{"bad request", 400, `{"detail":"invalid payload"}`, ClassPermanentInvalid},
		{"conflict", 409, `{"detail":"version conflict"}`, ClassPermanentInvalid},
		{"unauthorized", 401, `{"detail":"expired token"}`, ClassTransient},
		{"forbidden", 403, `{"detail":"no access"}`, ClassTransient},
		{"unprocessable", 422, `{"detail":"semantic error"}`, ClassTransient},
		{"identity conflict cpf", 500, `duplicate key value violates unique constraint "uq_cpf"`, ClassPermanentInvalid},
		{"identity conflict email", 500, `duplicate key value violates unique constraint on email`, ClassPermanentInvalid},
		{"unrelated server error", 500, `internal server error`, ClassTransient},
		{"bad gateway", 502, ``, ClassTransient},
		{"redirect", 301, ``, ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyRejection(tt.status, []byte(tt.body))
			if got != tt.want {
				t.Errorf("classifyRejection(%d, %q) = %s, want %s", tt.status, tt.body, got, tt.want)
			}
		})
	}
}

// TestAlreadyDoneCodeBeatsPhrase verifies a structured code wins even
// when the message text says something else.
func TestAlreadyDoneCodeBeatsPhrase(t *testing.T) {
	body := []byte(`{"code":"ALREADY_CHECKED_IN","detail":"conflict"}`)
	if got := classifyRejection(409, body); got != ClassAlreadyDone {
		t.Errorf("expected AlreadyDone from structured code, got %s", got)
	}
}
