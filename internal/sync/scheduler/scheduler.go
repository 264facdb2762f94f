// Package scheduler provides background scheduling for queue drains and
// catalog refreshes.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/eventdesk/attendant/internal/logging"
	"github.com/eventdesk/attendant/internal/models"
	syncpkg "github.com/eventdesk/attendant/internal/sync"
)

// AuthProvider supplies the credentials of the signed-in attendant at
// tick time. Background work must not cache a token: the session can
// rotate mid-run.
type AuthProvider func() models.AuthContext

// Scheduler runs the drain and the catalog refresh on their own timers.
type Scheduler struct {
	manager         *syncpkg.Manager
	auth            AuthProvider
	drainInterval   time.Duration
	catalogInterval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu        sync.RWMutex
	isRunning bool
	isOnline  bool
}

// Config holds scheduler configuration.
type Config struct {
	DrainInterval   time.Duration // how often to attempt the pending queue
	CatalogInterval time.Duration // how often to refresh the event catalog
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		DrainInterval:   time.Minute,
		CatalogInterval: 15 * time.Minute,
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(manager *syncpkg.Manager, auth AuthProvider, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}

	return &Scheduler{
		manager:         manager,
		auth:            auth,
		drainInterval:   config.DrainInterval,
		catalogInterval: config.CatalogInterval,
		stopCh:          make(chan struct{}),
		isOnline:        true, // assume online until a drain says otherwise
	}
}

// Start launches the background loops. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(2)
	go s.drainLoop(ctx)
	go s.catalogLoop(ctx)

	logging.Info("background sync scheduler started", map[string]interface{}{
		"drain_interval":   s.drainInterval.String(),
		"catalog_interval": s.catalogInterval.String(),
	})
}

// Stop stops the scheduler and waits for in-flight loops to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("background sync scheduler stopped", nil)
}

// drainLoop attempts the pending queue on every tick. The drain is
// attempted even when the last pass saw the remote as unreachable:
// the attempt itself is the connectivity probe.
func (s *Scheduler) drainLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runDrain(ctx)
		}
	}
}

// catalogLoop refreshes the event catalog while online.
func (s *Scheduler) catalogLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.catalogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			s.runCatalogRefresh(ctx)
		}
	}
}

// runDrain performs one drain pass and updates the online flag from
// what it saw.
func (s *Scheduler) runDrain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	summary, err := s.manager.Drain(drainCtx)
	if err != nil {
		logging.Error("scheduled drain failed", err, nil)
		return
	}

	reached := summary.Succeeded+summary.AlreadyDone+summary.PermanentlyDiscarded > 0
	if reached {
		s.setOnline(true)
	} else if summary.StillPending > 0 {
		// Nothing got through. Could be transient rejections, but the
		// common cause at a venue is no connectivity.
		s.setOnline(s.manager.Online(drainCtx, s.auth()))
	}

	if summary != (syncpkg.Summary{}) {
		logging.Info("scheduled drain completed", map[string]interface{}{
			"succeeded":     summary.Succeeded,
			"already_done":  summary.AlreadyDone,
			"discarded":     summary.PermanentlyDiscarded,
			"still_pending": summary.StillPending,
		})
	}
}

// runCatalogRefresh pulls the active event catalog.
func (s *Scheduler) runCatalogRefresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if _, err := s.manager.RefreshEvents(refreshCtx, s.auth()); err != nil {
		logging.Warn("scheduled catalog refresh failed", map[string]interface{}{
			"error": err.Error(),
		})
		s.setOnline(false)
	}
}

// DrainNow triggers an immediate drain outside the timer, typically
// after the UI regains focus or the attendant taps "sync".
func (s *Scheduler) DrainNow(ctx context.Context) (syncpkg.Summary, error) {
	summary, err := s.manager.Drain(ctx)
	if err == nil && summary.Succeeded+summary.AlreadyDone > 0 {
		s.setOnline(true)
	}
	return summary, err
}

func (s *Scheduler) setOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isOnline != online {
		logging.Info("online status changed", map[string]interface{}{
			"is_online": online,
		})
	}
	s.isOnline = online
}

// IsOnline reports the last observed connectivity.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// IsRunning reports whether the loops are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status is a point-in-time snapshot for the UI status bar.
type Status struct {
	IsRunning bool
	IsOnline  bool
	LastDrain time.Time
}

// GetStatus returns the current scheduler status.
func (s *Scheduler) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		IsRunning: s.isRunning,
		IsOnline:  s.isOnline,
		LastDrain: s.manager.LastDrain(),
	}
}
