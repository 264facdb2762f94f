// Package api tests for the remote gateway client.
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventdesk/attendant/internal/models"
)

// newTestClient points every service at one httptest server.
func newTestClient(server *httptest.Server) *Client {
	return NewClient(Endpoints{
		Events:        server.URL,
		Users:         server.URL,
		Registrations: server.URL,
		Tickets:       server.URL,
		CheckIns:      server.URL,
	}, 2*time.Second)
}

// TestDoSuccess verifies 2xx maps to an OK outcome with the body kept.
func TestDoSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"ci-1"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	out := client.Do(context.Background(), http.MethodPost, server.URL+"/checkins", []byte(`{}`), models.AuthContext{})

	if !out.IsOK() {
		t.Fatalf("expected OK, got %+v", out)
	}
	if out.HTTPStatus != http.StatusCreated {
		t.Errorf("expected 201, got %d", out.HTTPStatus)
	}
	if string(out.Body) != `{"id":"ci-1"}` {
		t.Errorf("expected body kept, got %q", out.Body)
	}
}

// TestDoClientRejected verifies non-2xx maps to ClientRejected.
func TestDoClientRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "check-in já foi realizado", http.StatusConflict)
	}))
	defer server.Close()

	client := newTestClient(server)
	out := client.Do(context.Background(), http.MethodPost, server.URL+"/checkins", nil, models.AuthContext{})

	if !out.IsRejected() {
		t.Fatalf("expected ClientRejected, got %+v", out)
	}
	if out.HTTPStatus != http.StatusConflict {
		t.Errorf("expected 409, got %d", out.HTTPStatus)
	}
}

// TestDoUnreachable verifies connection failure maps to Unreachable.
func TestDoUnreachable(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close() // nothing listens anymore

	client := newTestClient(server)
	out := client.Do(context.Background(), http.MethodGet, server.URL+"/events", nil, models.AuthContext{})

	if !out.IsUnreachable() {
		t.Fatalf("expected Unreachable, got %+v", out)
	}
	if out.Err == nil {
		t.Error("expected transport error to be carried")
	}
}

// TestDoTimeout verifies a hung server maps to Unreachable.
func TestDoTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Endpoints{Events: server.URL}, 50*time.Millisecond)
	out := client.Do(context.Background(), http.MethodGet, server.URL+"/events", nil, models.AuthContext{})

	if !out.IsUnreachable() {
		t.Fatalf("expected Unreachable on timeout, got %+v", out)
	}
}

// TestAuthHeaders verifies the auth context is replayed as headers.
func TestAuthHeaders(t *testing.T) {
	var gotAuth, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server)
	auth := models.AuthContext{BearerToken: "tok-1", APIKey: "key-1"}
	client.Do(context.Background(), http.MethodGet, server.URL+"/events", nil, auth)

	if gotAuth != "Bearer tok-1" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotKey != "key-1" {
		t.Errorf("expected api key header, got %q", gotKey)
	}
}

// TestListActiveEvents verifies catalog decoding.
func TestListActiveEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events/public/active" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"id":"E1","title":"GopherCon","starts_at":"2026-09-01T09:00:00Z"}]`))
	}))
	defer server.Close()

	client := newTestClient(server)
	events, out := client.ListActiveEvents(context.Background(), models.AuthContext{})

	if !out.IsOK() {
		t.Fatalf("expected OK, got %+v", out)
	}
	if len(events) != 1 || events[0].ID != "E1" {
		t.Errorf("unexpected events %+v", events)
	}
}

// TestQuickCheckIn verifies the combined call decodes server ids.
func TestQuickCheckIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkins/quick" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"registration_id":"srv-9","check_in_id":"ci-3"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	resp, out := client.QuickCheckIn(context.Background(), models.AuthContext{}, QuickCheckInRequest{
		EventID: "E1", Name: "Ana Silva", NationalID: "22233344455", Email: "ana@x.com",
	})

	if !out.IsOK() {
		t.Fatalf("expected OK, got %+v", out)
	}
	if resp == nil || resp.RegistrationID != "srv-9" {
		t.Errorf("unexpected response %+v", resp)
	}
}

// TestPing verifies the connectivity probe.
func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	client := newTestClient(server)

	if !client.Ping(context.Background(), models.AuthContext{}) {
		t.Error("expected ping to succeed")
	}

	server.Close()
	if client.Ping(context.Background(), models.AuthContext{}) {
		t.Error("expected ping to fail after close")
	}
}
