// Package api provides the HTTP gateway to the remote event services.
// One method per remote action; every method returns a structured
// Outcome instead of an error so the sync drain can branch on exactly
// success / client-rejected / unreachable. No retries happen here.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/eventdesk/attendant/internal/logging"
	"github.com/eventdesk/attendant/internal/models"
)

// Endpoints holds the base URL of each remote service.
type Endpoints struct {
	Events        string
	Users         string
	Registrations string
	Tickets       string
	CheckIns      string
}

// Client is the remote gateway. It is stateless: credentials arrive as
// an AuthContext per call, never as client state.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
}

// NewClient creates a gateway with a fixed per-request timeout. The
// timeout is what turns a hung remote into Unreachable instead of a
// stuck drain.
func NewClient(endpoints Endpoints, timeout time.Duration) *Client {
	return &Client{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// Do performs one remote call and maps the result to an Outcome. It is
// also the replay path: the sync drain re-issues queued operations
// through it with the verb, target, body and auth context stored at
// enqueue time.
func (c *Client) Do(ctx context.Context, verb, target string, body []byte, auth models.AuthContext) Outcome {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, verb, target, reader)
	if err != nil {
		// A malformed target cannot succeed later either, but the
		// queue owns that decision; transport-shaped is the honest
		// answer here.
		return unreachableOutcome(err)
	}

	req.Header.Set("Content-Type", "application/json")
	if auth.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+auth.BearerToken)
	}
	if auth.APIKey != "" {
		req.Header.Set("x-api-key", auth.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, connection refusal and DNS failure all land here.
		return unreachableOutcome(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return unreachableOutcome(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return okOutcome(resp.StatusCode, respBody)
	}

	logging.Debug("remote call rejected", map[string]interface{}{
		"verb":   verb,
		"target": target,
		"status": resp.StatusCode,
	})
	return rejectedOutcome(resp.StatusCode, respBody)
}

// get performs a GET against a service path.
func (c *Client) get(ctx context.Context, base, path string, auth models.AuthContext) Outcome {
	return c.Do(ctx, http.MethodGet, base+path, nil, auth)
}

// ListActiveEvents fetches the active event catalog.
func (c *Client) ListActiveEvents(ctx context.Context, auth models.AuthContext) ([]*models.Event, Outcome) {
	out := c.get(ctx, c.endpoints.Events, "/events/public/active", auth)
	if !out.IsOK() {
		return nil, out
	}

	var events []*models.Event
	if err := json.Unmarshal(out.Body, &events); err != nil {
		logging.Warn("event catalog body did not parse", map[string]interface{}{"error": err.Error()})
		return nil, rejectedOutcome(out.HTTPStatus, out.Body)
	}
	return events, out
}

// ListRegistrations fetches the registrations of one event.
func (c *Client) ListRegistrations(ctx context.Context, auth models.AuthContext, eventID string, includeCancelled bool) ([]*models.Registration, Outcome) {
	path := "/events/" + url.PathEscape(eventID) + "/registrations?include_cancelled=" + strconv.FormatBool(includeCancelled)
	out := c.get(ctx, c.endpoints.Registrations, path, auth)
	if !out.IsOK() {
		return nil, out
	}

	var regs []*models.Registration
	if err := json.Unmarshal(out.Body, &regs); err != nil {
		logging.Warn("registration list body did not parse", map[string]interface{}{"error": err.Error()})
		return nil, rejectedOutcome(out.HTTPStatus, out.Body)
	}
	return regs, out
}

// CheckInRequest is the payload of a check-in creation call.
type CheckInRequest struct {
	RegistrationID string `json:"registration_id"`
	TicketID       string `json:"ticket_id,omitempty"`
	StaffUserID    string `json:"staff_user_id,omitempty"`
}

// CreateCheckIn creates a check-in for an existing registration.
func (c *Client) CreateCheckIn(ctx context.Context, auth models.AuthContext, req CheckInRequest) Outcome {
	verb, target, body := c.CheckInCall(req)
	return c.Do(ctx, verb, target, body, auth)
}

// CheckInCall builds the wire form of a check-in creation: the tuple
// the engine stores in a pending operation for later replay.
func (c *Client) CheckInCall(req CheckInRequest) (verb, target string, body []byte) {
	body, _ = json.Marshal(req)
	return http.MethodPost, c.endpoints.CheckIns + "/checkins", body
}

// QuickCheckInRequest is the payload of the combined
// registration+check-in call used by the quick admission path.
type QuickCheckInRequest struct {
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
	Email      string `json:"email"`
}

// QuickCheckInResponse is the server's confirmation of a quick
// admission, carrying the permanent ids it issued.
type QuickCheckInResponse struct {
	RegistrationID string `json:"registration_id"`
	CheckInID      string `json:"check_in_id"`
}

// QuickCheckIn performs registration and check-in server-side in one
// call, so replay cannot interleave a half-registered person.
func (c *Client) QuickCheckIn(ctx context.Context, auth models.AuthContext, req QuickCheckInRequest) (*QuickCheckInResponse, Outcome) {
	verb, target, body := c.QuickCheckInCall(req)
	out := c.Do(ctx, verb, target, body, auth)
	if !out.IsOK() {
		return nil, out
	}

	var resp QuickCheckInResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, out
	}
	return &resp, out
}

// QuickCheckInCall builds the wire form of a quick admission call.
func (c *Client) QuickCheckInCall(req QuickCheckInRequest) (verb, target string, body []byte) {
	body, _ = json.Marshal(req)
	return http.MethodPost, c.endpoints.CheckIns + "/checkins/quick", body
}

// FindTicketByRegistration looks up the ticket issued for a
// registration.
func (c *Client) FindTicketByRegistration(ctx context.Context, auth models.AuthContext, registrationID string) (*models.Ticket, Outcome) {
	out := c.get(ctx, c.endpoints.Tickets, "/registrations/"+url.PathEscape(registrationID)+"/ticket", auth)
	if !out.IsOK() {
		return nil, out
	}

	var ticket models.Ticket
	if err := json.Unmarshal(out.Body, &ticket); err != nil {
		return nil, rejectedOutcome(out.HTTPStatus, out.Body)
	}
	return &ticket, out
}

// FindUserByEmail looks up a user account by email.
func (c *Client) FindUserByEmail(ctx context.Context, auth models.AuthContext, email string) (*models.User, Outcome) {
	out := c.get(ctx, c.endpoints.Users, "/users/email/"+url.PathEscape(email), auth)
	if !out.IsOK() {
		return nil, out
	}

	var user models.User
	if err := json.Unmarshal(out.Body, &user); err != nil {
		return nil, rejectedOutcome(out.HTTPStatus, out.Body)
	}
	return &user, out
}

// Ping probes connectivity with the active-events endpoint, the way
// the desk client has always tested it.
func (c *Client) Ping(ctx context.Context, auth models.AuthContext) bool {
	out := c.get(ctx, c.endpoints.Events, "/events/public/active", auth)
	return out.IsOK()
}
