// Package api provides the HTTP gateway to the remote event services.
package api

// OutcomeStatus is the three-way result of a remote call.
type OutcomeStatus string

const (
	// StatusOK covers any 2xx response.
	StatusOK OutcomeStatus = "ok"
	// StatusClientRejected covers any non-2xx HTTP response. The sync
	// drain subdivides it further from HTTPStatus and Body.
	StatusClientRejected OutcomeStatus = "client_rejected"
	// StatusUnreachable covers timeouts, connection refusal and DNS
	// failure uniformly.
	StatusUnreachable OutcomeStatus = "unreachable"
)

// Outcome is the structured result of one remote call. The gateway
// never raises on remote failure: callers branch on exactly these
// cases, and retry policy lives entirely with them.
type Outcome struct {
	Status     OutcomeStatus
	HTTPStatus int    // set for OK and ClientRejected
	Body       []byte // response body, kept raw for classification
	Err        error  // transport error behind Unreachable
}

// IsOK reports a 2xx response.
func (o Outcome) IsOK() bool { return o.Status == StatusOK }

// IsRejected reports a non-2xx HTTP response.
func (o Outcome) IsRejected() bool { return o.Status == StatusClientRejected }

// IsUnreachable reports a transport-level failure.
func (o Outcome) IsUnreachable() bool { return o.Status == StatusUnreachable }

func okOutcome(status int, body []byte) Outcome {
	return Outcome{Status: StatusOK, HTTPStatus: status, Body: body}
}

func rejectedOutcome(status int, body []byte) Outcome {
	return Outcome{Status: StatusClientRejected, HTTPStatus: status, Body: body}
}

func unreachableOutcome(err error) Outcome {
	return Outcome{Status: StatusUnreachable, Err: err}
}
