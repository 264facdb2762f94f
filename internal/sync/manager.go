// Package sync converges local state with the remote services: it
// drains the pending queue, refreshes the event catalog, and classifies
// every remote failure so the queue can neither retry forever what the
// server already has nor drop what merely failed for a moment. Sync
// never changes an admission verdict already given at the desk.
package sync

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eventdesk/attendant/internal/api"
	"github.com/eventdesk/attendant/internal/db"
	apperrors "github.com/eventdesk/attendant/internal/errors"
	"github.com/eventdesk/attendant/internal/logging"
	"github.com/eventdesk/attendant/internal/models"
	"github.com/eventdesk/attendant/internal/queue"
)

// Summary is the aggregate result of one drain pass. The attendant
// only ever sees these counts; individual sync failures never surface
// as dialogs.
type Summary struct {
	Succeeded            int
	AlreadyDone          int
	PermanentlyDiscarded int
	StillPending         int
}

// Manager owns the drain. A single drain runs at a time; a call while
// one is in flight returns an empty summary immediately.
type Manager struct {
	repo    *db.Repository
	queue   *queue.PendingQueue
	gateway *api.Client

	draining atomic.Bool

	mu        sync.Mutex
	lastDrain time.Time
}

// NewManager creates a Manager.
func NewManager(repo *db.Repository, q *queue.PendingQueue, gateway *api.Client) *Manager {
	return &Manager{repo: repo, queue: q, gateway: gateway}
}

// LastDrain returns when the last drain pass finished.
func (m *Manager) LastDrain() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDrain
}

// Drain attempts every queued operation once, oldest first, and applies
// the classification policy. An Unreachable outcome aborts the
// remaining entries for this pass: connectivity is assumed down for
// them too. New operations enqueued mid-drain are not in the snapshot
// and wait for the next pass.
func (m *Manager) Drain(ctx context.Context) (Summary, error) {
	if !m.draining.CompareAndSwap(false, true) {
		// Another drain is in flight; double-processing a queue entry
		// is worse than waiting a tick.
		return Summary{}, nil
	}
	defer m.draining.Store(false)
	defer func() {
		m.mu.Lock()
		m.lastDrain = time.Now()
		m.mu.Unlock()
	}()

	ops, err := m.queue.List()
	if err != nil {
		return Summary{}, apperrors.Wrap(apperrors.ErrSyncFailed, "list pending operations", err)
	}
	if len(ops) == 0 {
		return Summary{}, nil
	}

	logging.Info("drain started", map[string]interface{}{"pending": len(ops)})

	var summary Summary
	for i, op := range ops {
		outcome, class := m.attempt(ctx, op)

		logging.Info("pending operation processed", map[string]interface{}{
			"id":             op.ID,
			"verb":           op.Verb,
			"target":         op.RemoteTarget,
			"classification": string(class),
		})

		switch class {
		case ClassSuccess:
			if err := m.confirm(op, outcome.Body); err != nil {
				return summary, err
			}
			summary.Succeeded++
		case ClassAlreadyDone:
			if err := m.confirm(op, nil); err != nil {
				return summary, err
			}
			summary.AlreadyDone++
		case ClassPermanentInvalid:
			if err := m.queue.Delete(op.ID); err != nil {
				return summary, err
			}
			summary.PermanentlyDiscarded++
		case ClassTransient:
			summary.StillPending++
			if outcome.IsUnreachable() {
				// Everything after this entry would hit the same wall.
				summary.StillPending += len(ops) - i - 1
				logging.Warn("remote unreachable, aborting drain", map[string]interface{}{
					"attempted": i + 1,
					"remaining": len(ops) - i - 1,
				})
				return summary, nil
			}
		}
	}

	logging.Info("drain finished", map[string]interface{}{
		"succeeded":    summary.Succeeded,
		"already_done": summary.AlreadyDone,
		"discarded":    summary.PermanentlyDiscarded,
		"pending":      summary.StillPending,
	})
	return summary, nil
}

// attempt replays one queued operation and classifies the result.
func (m *Manager) attempt(ctx context.Context, op *models.PendingOperation) (api.Outcome, Classification) {
	auth, err := op.Auth()
	if err != nil {
		// The stored auth context cannot be parsed; replaying the
		// entry as-is can never succeed.
		logging.Warn("queued operation has unreadable auth context", map[string]interface{}{"id": op.ID})
		return api.Outcome{}, ClassPermanentInvalid
	}

	outcome := m.gateway.Do(ctx, op.Verb, op.RemoteTarget, op.Body, auth)

	switch {
	case outcome.IsOK():
		return outcome, ClassSuccess
	case outcome.IsUnreachable():
		return outcome, ClassTransient
	default:
		return outcome, classifyRejection(outcome.HTTPStatus, outcome.Body)
	}
}

// confirmedIDs is the slice of a success body the drain cares about:
// the permanent registration id the server issued, if any.
type confirmedIDs struct {
	RegistrationID string `json:"registration_id"`
}

// confirm marks the rows behind a queued operation as synced and
// removes the operation. When the response carries a server-issued
// registration id, the local temporary id is rewritten to it.
func (m *Manager) confirm(op *models.PendingOperation, responseBody []byte) error {
	finalID := op.RelatedRegistrationID

	if finalID != "" {
		reg, err := m.repo.GetRegistration(finalID)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrSyncFailed, "registration lookup", err)
		}
		if reg != nil && reg.IsLocal() {
			serverID := finalID
			var ids confirmedIDs
			if len(responseBody) > 0 {
				if err := json.Unmarshal(responseBody, &ids); err == nil && ids.RegistrationID != "" {
					serverID = models.UUID(ids.RegistrationID)
				}
			}
			if err := m.repo.MarkRegistrationSynced(finalID, serverID); err != nil {
				return err
			}
			finalID = serverID
		}

		if err := m.repo.MarkCheckInSynced(finalID); err != nil {
			return err
		}
	}

	return m.queue.Delete(op.ID)
}

// Online probes remote connectivity.
func (m *Manager) Online(ctx context.Context, auth models.AuthContext) bool {
	return m.gateway.Ping(ctx, auth)
}

// RefreshEvents replaces the local event catalog with the remote
// active-events list.
func (m *Manager) RefreshEvents(ctx context.Context, auth models.AuthContext) (int, error) {
	events, out := m.gateway.ListActiveEvents(ctx, auth)
	if out.IsUnreachable() {
		return 0, apperrors.Wrap(apperrors.ErrUnreachable, "event catalog fetch", out.Err)
	}
	if !out.IsOK() {
		return 0, apperrors.New(apperrors.ErrRemoteRejected, "event catalog fetch rejected")
	}

	if err := m.repo.UpsertEvents(events); err != nil {
		return 0, err
	}

	logging.Info("event catalog refreshed", map[string]interface{}{"events": len(events)})
	return len(events), nil
}

// RefreshRegistrations replaces the synced registrations of one event
// with the remote list. Local registrations are kept: they still back
// queued operations.
func (m *Manager) RefreshRegistrations(ctx context.Context, auth models.AuthContext, eventID string) (int, error) {
	regs, out := m.gateway.ListRegistrations(ctx, auth, eventID, false)
	if out.IsUnreachable() {
		return 0, apperrors.Wrap(apperrors.ErrUnreachable, "registration list fetch", out.Err)
	}
	if !out.IsOK() {
		return 0, apperrors.New(apperrors.ErrRemoteRejected, "registration list fetch rejected")
	}

	if err := m.repo.ReplaceSyncedRegistrations(eventID, regs); err != nil {
		return 0, err
	}

	logging.Info("registrations refreshed", map[string]interface{}{
		"event_id":      eventID,
		"registrations": len(regs),
	})
	return len(regs), nil
}
