// Package checkin decides whether a person may enter an event. Every
// decision is made from local state alone, in bounded time: admission
// never waits on the network, and the verdict handed to the attendant
// is final the moment it is returned.
package checkin

import (
	"sync"

	"github.com/eventdesk/attendant/internal/api"
	"github.com/eventdesk/attendant/internal/db"
	apperrors "github.com/eventdesk/attendant/internal/errors"
	"github.com/eventdesk/attendant/internal/logging"
	"github.com/eventdesk/attendant/internal/models"
	"github.com/eventdesk/attendant/internal/queue"
	"github.com/eventdesk/attendant/internal/uuid"
)

// Verdict is the admission outcome shown to the attendant. These are
// terminal answers, not errors: a rejection still tells the attendant
// exactly what to do next.
type Verdict string

const (
	// VerdictAdmitted means the person may enter; the check-in is
	// recorded locally and queued for sync.
	VerdictAdmitted Verdict = "admitted"
	// VerdictAlreadyCheckedIn means the person was admitted earlier;
	// nothing is written again.
	VerdictAlreadyCheckedIn Verdict = "already_checked_in"
	// VerdictRejectedCancelled means the registration is cancelled.
	VerdictRejectedCancelled Verdict = "rejected_cancelled"
	// VerdictMustUseNormalFlow means the person already has a synced
	// registration and must not be duplicated through the quick path.
	VerdictMustUseNormalFlow Verdict = "must_use_normal_flow"
)

// AdmissionResult is the full outcome of one admission attempt.
type AdmissionResult struct {
	Verdict      Verdict
	Registration *models.Registration
	CheckIn      *models.CheckIn
	// SyncState qualifies AlreadyCheckedIn: whether the earlier
	// check-in was already confirmed by the server or is still local.
	SyncState models.SyncState
}

// AdmitOptions carries the optional remote ids the caller resolved
// before admitting. They are lookups, not prerequisites: admission
// proceeds without them when offline.
type AdmitOptions struct {
	TicketID    string
	StaffUserID string
}

// Engine implements the admission rules over the local store.
type Engine struct {
	repo    *db.Repository
	gateway *api.Client

	// Admissions are serialized per event. Coarse, but the desk does
	// tens of operations per minute, not thousands.
	mu         sync.Mutex
	eventLocks map[string]*sync.Mutex
}

// NewEngine creates an Engine over the local store. The gateway is used
// only to build the wire form of queued operations, never called during
// admission.
func NewEngine(repo *db.Repository, gateway *api.Client) *Engine {
	return &Engine{
		repo:       repo,
		gateway:    gateway,
		eventLocks: make(map[string]*sync.Mutex),
	}
}

// lockEvent returns the mutex serializing admissions for one event.
func (e *Engine) lockEvent(eventID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.eventLocks[eventID]
	if !ok {
		l = &sync.Mutex{}
		e.eventLocks[eventID] = l
	}
	return l
}

// LookupByNationalID finds a person's registration for an event in the
// local store. Returns nil when the person is unknown locally.
func (e *Engine) LookupByNationalID(nationalID, eventID string) (*models.Registration, error) {
	nat, err := NormalizeNationalID(nationalID)
	if err != nil {
		return nil, err
	}
	return e.repo.FindRegistrationByNationalID(nat, eventID)
}

// AdmitExisting admits a person who already has a registration.
// The idempotency guard runs first: a repeated scan of the same person
// returns AlreadyCheckedIn without any write, so no duplicate side
// effects can accumulate.
func (e *Engine) AdmitExisting(reg *models.Registration, opts AdmitOptions, auth models.AuthContext) (*AdmissionResult, error) {
	if reg == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "registration is required")
	}

	lock := e.lockEvent(reg.EventID)
	lock.Lock()
	defer lock.Unlock()

	if !reg.IsActive() {
		return &AdmissionResult{Verdict: VerdictRejectedCancelled, Registration: reg}, nil
	}

	existing, err := e.repo.FindCheckInByRegistration(reg.RegistrationID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "check-in lookup", err)
	}
	if existing != nil {
		return &AdmissionResult{
			Verdict:      VerdictAlreadyCheckedIn,
			Registration: reg,
			CheckIn:      existing,
			SyncState:    existing.SyncState,
		}, nil
	}

	verb, target, body := e.gateway.CheckInCall(api.CheckInRequest{
		RegistrationID: string(reg.RegistrationID),
		TicketID:       opts.TicketID,
		StaffUserID:    opts.StaffUserID,
	})
	op, err := queue.NewOperation(verb, target, body, auth, reg.RegistrationID, reg.NationalID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "build pending operation", err)
	}

	ci := &models.CheckIn{
		RegistrationID: reg.RegistrationID,
		EventID:        reg.EventID,
		TicketID:       opts.TicketID,
		StaffUserID:    opts.StaffUserID,
		Kind:           models.CheckInNormal,
		SyncState:      models.SyncStateLocal,
	}
	if err := e.repo.CreateCheckInWithPending(ci, op); err != nil {
		return nil, err
	}

	logging.Info("admission granted", map[string]interface{}{
		"registration_id": reg.RegistrationID,
		"event_id":        reg.EventID,
		"kind":            string(models.CheckInNormal),
	})
	return &AdmissionResult{Verdict: VerdictAdmitted, Registration: reg, CheckIn: ci}, nil
}

// AdmitQuick registers and admits a person without prior signup. The
// guards run in a fixed order: an earlier check-in wins over
// everything, then an already-synced registration blocks the quick
// path entirely, because silently duplicating a registered person is
// the one mistake this flow must never make.
func (e *Engine) AdmitQuick(eventID, name, nationalID, email string, auth models.AuthContext) (*AdmissionResult, error) {
	nat, err := NormalizeNationalID(nationalID)
	if err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	lock := e.lockEvent(eventID)
	lock.Lock()
	defer lock.Unlock()

	reg, err := e.repo.FindRegistrationByNationalID(nat, eventID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "registration lookup", err)
	}

	if reg != nil {
		existing, err := e.repo.FindCheckInByRegistration(reg.RegistrationID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "check-in lookup", err)
		}
		if existing != nil {
			return &AdmissionResult{
				Verdict:      VerdictAlreadyCheckedIn,
				Registration: reg,
				CheckIn:      existing,
				SyncState:    existing.SyncState,
			}, nil
		}
		if reg.SyncState == models.SyncStateSynced && reg.IsActive() {
			return &AdmissionResult{Verdict: VerdictMustUseNormalFlow, Registration: reg}, nil
		}
	}

	verb, target, body := e.gateway.QuickCheckInCall(api.QuickCheckInRequest{
		EventID:    eventID,
		Name:       name,
		NationalID: nat,
		Email:      email,
	})

	// An active local registration without a check-in can only come
	// from an earlier quick admission whose check-in was discarded;
	// reuse it instead of colliding with the identity index.
	if reg != nil && reg.IsLocal() && reg.IsActive() {
		op, err := queue.NewOperation(verb, target, body, auth, reg.RegistrationID, nat)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, "build pending operation", err)
		}
		ci := &models.CheckIn{
			RegistrationID: reg.RegistrationID,
			EventID:        eventID,
			Kind:           models.CheckInQuick,
			SyncState:      models.SyncStateLocal,
		}
		if err := e.repo.CreateCheckInWithPending(ci, op); err != nil {
			return nil, err
		}
		return &AdmissionResult{Verdict: VerdictAdmitted, Registration: reg, CheckIn: ci}, nil
	}

	localID := models.UUID(uuid.New())
	op, err := queue.NewOperation(verb, target, body, auth, localID, nat)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "build pending operation", err)
	}

	newReg := &models.Registration{
		RegistrationID: localID,
		EventID:        eventID,
		Name:           name,
		NationalID:     nat,
		Email:          email,
		SyncState:      models.SyncStateLocal,
		Status:         models.RegistrationActive,
	}
	ci := &models.CheckIn{
		RegistrationID: localID,
		EventID:        eventID,
		Kind:           models.CheckInQuick,
		SyncState:      models.SyncStateLocal,
	}
	if err := e.repo.CreateQuickAdmissionWithPending(newReg, ci, op); err != nil {
		return nil, err
	}

	logging.Info("admission granted", map[string]interface{}{
		"registration_id": localID,
		"event_id":        eventID,
		"kind":            string(models.CheckInQuick),
	})
	return &AdmissionResult{Verdict: VerdictAdmitted, Registration: newReg, CheckIn: ci}, nil
}

// DiscardPending undoes a mistaken scan: the queued operation and its
// check-in are removed, and the registration too when it was created
// by this client and never confirmed. A synced registration predates
// the mistake and stays.
func (e *Engine) DiscardPending(pendingID int64) error {
	if err := e.repo.DeletePendingCascade(pendingID); err != nil {
		return err
	}
	logging.Info("pending admission discarded", map[string]interface{}{"id": pendingID})
	return nil
}
