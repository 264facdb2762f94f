// Package scheduler tests for background sync scheduling.
package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventdesk/attendant/internal/api"
	"github.com/eventdesk/attendant/internal/db"
	"github.com/eventdesk/attendant/internal/models"
	"github.com/eventdesk/attendant/internal/queue"
	syncpkg "github.com/eventdesk/attendant/internal/sync"
)

var testAuth = models.AuthContext{BearerToken: "tok"}

// newTestScheduler builds a scheduler over a fresh store with the
// gateway pointed at base.
func newTestScheduler(t *testing.T, base string, config *Config) (*Scheduler, *db.Repository) {
	t.Helper()

	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	repo := db.NewRepository(database.DB)
	t.Cleanup(func() { repo.Close() })

	gateway := api.NewClient(api.Endpoints{Events: base, CheckIns: base}, time.Second)
	q := queue.NewPendingQueue(repo)
	manager := syncpkg.NewManager(repo, q, gateway)

	return NewScheduler(manager, func() models.AuthContext { return testAuth }, config), repo
}

// TestDefaultConfig verifies the default intervals.
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.DrainInterval != time.Minute {
		t.Errorf("DrainInterval = %v, want 1m", config.DrainInterval)
	}
	if config.CatalogInterval != 15*time.Minute {
		t.Errorf("CatalogInterval = %v, want 15m", config.CatalogInterval)
	}
}

// TestNewSchedulerNilConfig verifies defaults apply when no config is
// given and the scheduler assumes online until told otherwise.
func TestNewSchedulerNilConfig(t *testing.T) {
	s, _ := newTestScheduler(t, "http://localhost:1", nil)

	if s.drainInterval != time.Minute {
		t.Errorf("drainInterval = %v, want 1m", s.drainInterval)
	}
	if !s.IsOnline() {
		t.Error("expected online by default")
	}
	if s.IsRunning() {
		t.Error("expected not running before Start")
	}
}

// TestStartStop verifies the loops come up and shut down cleanly, and
// that both calls are idempotent.
func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler(t, "http://localhost:1", &Config{
		DrainInterval:   50 * time.Millisecond,
		CatalogInterval: 50 * time.Millisecond,
	})

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx) // second Start is a no-op
	if !s.IsRunning() {
		t.Fatal("expected running after Start")
	}

	s.Stop()
	s.Stop() // second Stop is a no-op
	if s.IsRunning() {
		t.Fatal("expected stopped after Stop")
	}
}

// TestDrainNowFlushesQueue verifies an on-demand drain empties the
// queue against a healthy remote.
func TestDrainNowFlushesQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s, repo := newTestScheduler(t, srv.URL, nil)

	reg := &models.Registration{
		RegistrationID: "r-1",
		EventID:        "E1",
		Name:           "Ana Silva",
		NationalID:     "22233344455",
		Email:          "ana@x.com",
		SyncState:      models.SyncStateSynced,
		Status:         models.RegistrationActive,
	}
	if err := repo.CreateRegistration(reg); err != nil {
		t.Fatalf("seed registration failed: %v", err)
	}
	ci := &models.CheckIn{
		RegistrationID: reg.RegistrationID,
		EventID:        reg.EventID,
		Kind:           models.CheckInNormal,
		SyncState:      models.SyncStateLocal,
	}
	op, err := queue.NewOperation(http.MethodPost, srv.URL+"/checkins", []byte(`{}`), testAuth, reg.RegistrationID, reg.NationalID)
	if err != nil {
		t.Fatalf("NewOperation failed: %v", err)
	}
	if err := repo.CreateCheckInWithPending(ci, op); err != nil {
		t.Fatalf("seed check-in failed: %v", err)
	}

	summary, err := s.DrainNow(context.Background())
	if err != nil {
		t.Fatalf("DrainNow failed: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if n, _ := repo.CountPendingOperations(); n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}
	if !s.IsOnline() {
		t.Error("expected online after successful drain")
	}
}

// TestRunDrainGoesOfflineWhenUnreachable verifies a fully failed pass
// flips the online flag.
func TestRunDrainGoesOfflineWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := srv.URL
	srv.Close()

	s, repo := newTestScheduler(t, dead, nil)

	reg := &models.Registration{
		RegistrationID: "r-2",
		EventID:        "E1",
		Name:           "Ana Silva",
		NationalID:     "22233344455",
		Email:          "ana@x.com",
		SyncState:      models.SyncStateSynced,
		Status:         models.RegistrationActive,
	}
	if err := repo.CreateRegistration(reg); err != nil {
		t.Fatalf("seed registration failed: %v", err)
	}
	ci := &models.CheckIn{
		RegistrationID: reg.RegistrationID,
		EventID:        reg.EventID,
		Kind:           models.CheckInNormal,
		SyncState:      models.SyncStateLocal,
	}
	op, err := queue.NewOperation(http.MethodPost, dead+"/checkins", []byte(`{}`), testAuth, reg.RegistrationID, reg.NationalID)
	if err != nil {
		t.Fatalf("NewOperation failed: %v", err)
	}
	if err := repo.CreateCheckInWithPending(ci, op); err != nil {
		t.Fatalf("seed check-in failed: %v", err)
	}

	s.runDrain(context.Background())
	if s.IsOnline() {
		t.Error("expected offline after unreachable drain")
	}
}
