// Package db provides the local store for the attendant client: CRUD
// repository operations plus the transactional pairing of entity writes
// with pending-operation enqueues.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/eventdesk/attendant/internal/errors"
	"github.com/eventdesk/attendant/internal/models"
)

// Repository provides CRUD operations for all models.
// Write errors surface as STORAGE_UNAVAILABLE and are never swallowed:
// an admission verdict that did not reach disk must fail loudly.
type Repository struct {
	db *sql.DB

	// Prepared statement cache for the lookups the attendant hits on
	// every scan. Statements are prepared on first use and reused.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// storageErr wraps a write failure into the fatal storage error class.
func storageErr(op string, err error) error {
	return apperrors.Wrap(apperrors.ErrStorageUnavailable, op, err)
}

// =====================================================
// Event Operations
// =====================================================

// UpsertEvent creates or updates an event from the remote catalog.
func (r *Repository) UpsertEvent(e *models.Event) error {
	e.UpdatedAt = time.Now().Unix()

	query := `
	INSERT INTO events (id, title, starts_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		starts_at = excluded.starts_at,
		updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, e.ID, e.Title, e.StartsAt, e.UpdatedAt); err != nil {
		return storageErr("upsert event", err)
	}
	return nil
}

// UpsertEvents applies a catalog refresh in a single transaction.
func (r *Repository) UpsertEvents(events []*models.Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return storageErr("begin catalog refresh", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	query := `
	INSERT INTO events (id, title, starts_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		starts_at = excluded.starts_at,
		updated_at = excluded.updated_at
	`
	for _, e := range events {
		e.UpdatedAt = now
		if _, err := tx.Exec(query, e.ID, e.Title, e.StartsAt, e.UpdatedAt); err != nil {
			return storageErr("upsert event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit catalog refresh", err)
	}
	return nil
}

// GetEvent retrieves an event by ID. Returns nil when absent.
func (r *Repository) GetEvent(id string) (*models.Event, error) {
	var e models.Event
	err := r.db.QueryRow(
		"SELECT id, title, starts_at, updated_at FROM events WHERE id = ?", id,
	).Scan(&e.ID, &e.Title, &e.StartsAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEvents returns the local event catalog, soonest first.
func (r *Repository) ListEvents() ([]*models.Event, error) {
	rows, err := r.db.Query("SELECT id, title, starts_at, updated_at FROM events ORDER BY starts_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.StartsAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// =====================================================
// Registration Operations
// =====================================================

const registrationColumns = `registration_id, event_id, name, national_id, email, sync_state, status, created_at`

// scanRegistration scans one registration row.
func scanRegistration(row interface{ Scan(...interface{}) error }) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.RegistrationID, &reg.EventID, &reg.Name, &reg.NationalID,
		&reg.Email, &reg.SyncState, &reg.Status, &reg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// CreateRegistration inserts a registration row.
func (r *Repository) CreateRegistration(reg *models.Registration) error {
	if reg.CreatedAt == 0 {
		reg.CreatedAt = time.Now().Unix()
	}

	query := `
	INSERT INTO registrations (` + registrationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, reg.RegistrationID, reg.EventID, reg.Name,
		reg.NationalID, reg.Email, reg.SyncState, reg.Status, reg.CreatedAt)
	if err != nil {
		return storageErr("insert registration", err)
	}
	return nil
}

// GetRegistration retrieves a registration by id. Returns nil when absent.
func (r *Repository) GetRegistration(id models.UUID) (*models.Registration, error) {
	stmt, err := r.PrepareStmt("SELECT " + registrationColumns + " FROM registrations WHERE registration_id = ?")
	if err != nil {
		return nil, err
	}

	reg, err := scanRegistration(stmt.QueryRow(id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// FindRegistrationByNationalID finds a person's registration for an
// event. Returns nil when absent. Active rows win over cancelled ones.
func (r *Repository) FindRegistrationByNationalID(nationalID, eventID string) (*models.Registration, error) {
	stmt, err := r.PrepareStmt(`
	SELECT ` + registrationColumns + `
	FROM registrations
	WHERE national_id = ? AND event_id = ?
	ORDER BY CASE status WHEN 'active' THEN 0 ELSE 1 END
	LIMIT 1`)
	if err != nil {
		return nil, err
	}

	reg, err := scanRegistration(stmt.QueryRow(nationalID, eventID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// ListRegistrationsByEvent returns all local registrations for an event.
func (r *Repository) ListRegistrationsByEvent(eventID string) ([]*models.Registration, error) {
	rows, err := r.db.Query(
		"SELECT "+registrationColumns+" FROM registrations WHERE event_id = ? ORDER BY name", eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// ReplaceSyncedRegistrations applies a registration refresh for one
// event: synced rows are replaced wholesale, local rows are kept
// because they still back queued operations.
func (r *Repository) ReplaceSyncedRegistrations(eventID string, regs []*models.Registration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return storageErr("begin registration refresh", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM registrations WHERE event_id = ? AND sync_state = ?",
		eventID, models.SyncStateSynced); err != nil {
		return storageErr("clear synced registrations", err)
	}

	now := time.Now().Unix()
	query := `
	INSERT INTO registrations (` + registrationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, reg := range regs {
		reg.EventID = eventID
		reg.SyncState = models.SyncStateSynced
		if reg.Status == "" {
			reg.Status = models.RegistrationActive
		}
		if reg.CreatedAt == 0 {
			reg.CreatedAt = now
		}
		if _, err := tx.Exec(query, reg.RegistrationID, reg.EventID, reg.Name,
			reg.NationalID, reg.Email, reg.SyncState, reg.Status, reg.CreatedAt); err != nil {
			return storageErr("insert refreshed registration", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit registration refresh", err)
	}
	return nil
}

// MarkRegistrationSynced confirms a local registration remotely,
// rewriting its temporary id to the server-issued one. The check-in row
// follows the rename so the correlation survives.
func (r *Repository) MarkRegistrationSynced(oldID, newID models.UUID) error {
	tx, err := r.db.Begin()
	if err != nil {
		return storageErr("begin registration sync", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE registrations SET registration_id = ?, sync_state = ? WHERE registration_id = ?",
		newID, models.SyncStateSynced, oldID); err != nil {
		return storageErr("mark registration synced", err)
	}
	if oldID != newID {
		if _, err := tx.Exec(
			"UPDATE checkins SET registration_id = ? WHERE registration_id = ?",
			newID, oldID); err != nil {
			return storageErr("rename check-in registration id", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit registration sync", err)
	}
	return nil
}

// =====================================================
// CheckIn Operations
// =====================================================

const checkInColumns = `id, registration_id, event_id, ticket_id, staff_user_id, kind, sync_state, occurred_at`

// FindCheckInByRegistration retrieves the check-in for a registration.
// Returns nil when the person has not been admitted.
func (r *Repository) FindCheckInByRegistration(registrationID models.UUID) (*models.CheckIn, error) {
	stmt, err := r.PrepareStmt("SELECT " + checkInColumns + " FROM checkins WHERE registration_id = ?")
	if err != nil {
		return nil, err
	}

	var ci models.CheckIn
	var ticketID, staffUserID sql.NullString
	err = stmt.QueryRow(registrationID).Scan(&ci.ID, &ci.RegistrationID, &ci.EventID,
		&ticketID, &staffUserID, &ci.Kind, &ci.SyncState, &ci.OccurredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ci.TicketID = ticketID.String
	ci.StaffUserID = staffUserID.String
	return &ci, nil
}

// MarkCheckInSynced flips a check-in to synced after remote confirmation.
func (r *Repository) MarkCheckInSynced(registrationID models.UUID) error {
	_, err := r.db.Exec(
		"UPDATE checkins SET sync_state = ? WHERE registration_id = ?",
		models.SyncStateSynced, registrationID)
	if err != nil {
		return storageErr("mark check-in synced", err)
	}
	return nil
}

// =====================================================
// Pairing Transactions
// =====================================================
// A check-in (or quick registration) and the pending operation that
// will replay it remotely commit together or not at all. A local row
// with nothing queued, or a queued call with no local row, would
// desynchronize admission state from the server forever.

// insertCheckInTx inserts a check-in inside a transaction.
func insertCheckInTx(tx *sql.Tx, ci *models.CheckIn) error {
	if ci.OccurredAt == 0 {
		ci.OccurredAt = time.Now().Unix()
	}
	res, err := tx.Exec(`
	INSERT INTO checkins (registration_id, event_id, ticket_id, staff_user_id, kind, sync_state, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ci.RegistrationID, ci.EventID, nullable(ci.TicketID), nullable(ci.StaffUserID),
		ci.Kind, ci.SyncState, ci.OccurredAt)
	if err != nil {
		return err
	}
	ci.ID, _ = res.LastInsertId()
	return nil
}

// insertPendingTx inserts a pending operation inside a transaction.
func insertPendingTx(tx *sql.Tx, op *models.PendingOperation) error {
	if op.CreatedAt == "" {
		op.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	body := string(op.Body)
	if body == "" {
		body = "{}"
	}
	auth := string(op.AuthContext)
	if auth == "" {
		auth = "{}"
	}
	res, err := tx.Exec(`
	INSERT INTO pending_operations (verb, remote_target, body, auth_context, created_at, related_registration_id, related_national_id)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.Verb, op.RemoteTarget, body, auth, op.CreatedAt,
		nullable(string(op.RelatedRegistrationID)), nullable(op.RelatedNationalID))
	if err != nil {
		return err
	}
	op.ID, _ = res.LastInsertId()
	return nil
}

// CreateCheckInWithPending persists a check-in and enqueues its remote
// call in one transaction.
func (r *Repository) CreateCheckInWithPending(ci *models.CheckIn, op *models.PendingOperation) error {
	tx, err := r.db.Begin()
	if err != nil {
		return storageErr("begin check-in", err)
	}
	defer tx.Rollback()

	if err := insertCheckInTx(tx, ci); err != nil {
		return storageErr("insert check-in", err)
	}
	if err := insertPendingTx(tx, op); err != nil {
		return storageErr("enqueue check-in operation", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit check-in", err)
	}
	return nil
}

// CreateQuickAdmissionWithPending persists a quick registration, its
// check-in, and the single combined remote call in one transaction.
func (r *Repository) CreateQuickAdmissionWithPending(reg *models.Registration, ci *models.CheckIn, op *models.PendingOperation) error {
	tx, err := r.db.Begin()
	if err != nil {
		return storageErr("begin quick admission", err)
	}
	defer tx.Rollback()

	if reg.CreatedAt == 0 {
		reg.CreatedAt = time.Now().Unix()
	}
	if _, err := tx.Exec(`
	INSERT INTO registrations (`+registrationColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.RegistrationID, reg.EventID, reg.Name, reg.NationalID,
		reg.Email, reg.SyncState, reg.Status, reg.CreatedAt); err != nil {
		return storageErr("insert quick registration", err)
	}

	if err := insertCheckInTx(tx, ci); err != nil {
		return storageErr("insert quick check-in", err)
	}
	if err := insertPendingTx(tx, op); err != nil {
		return storageErr("enqueue quick admission operation", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit quick admission", err)
	}
	return nil
}

// DeletePendingCascade removes a pending operation together with the
// local rows it was created to support: the related check-in always,
// the related registration only while it is still local. A synced
// registration predates this client and is never deleted here.
func (r *Repository) DeletePendingCascade(id int64) error {
	op, err := r.GetPendingOperation(id)
	if err != nil {
		return err
	}
	if op == nil {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("pending operation %d not found", id))
	}

	tx, err := r.db.Begin()
	if err != nil {
		return storageErr("begin discard", err)
	}
	defer tx.Rollback()

	if op.RelatedRegistrationID != "" {
		if _, err := tx.Exec(
			"DELETE FROM checkins WHERE registration_id = ?", op.RelatedRegistrationID); err != nil {
			return storageErr("delete check-in", err)
		}
		if _, err := tx.Exec(
			"DELETE FROM registrations WHERE registration_id = ? AND sync_state = ?",
			op.RelatedRegistrationID, models.SyncStateLocal); err != nil {
			return storageErr("delete local registration", err)
		}
	}

	if _, err := tx.Exec("DELETE FROM pending_operations WHERE id = ?", id); err != nil {
		return storageErr("delete pending operation", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit discard", err)
	}
	return nil
}

// =====================================================
// PendingOperation Operations
// =====================================================

const pendingColumns = `id, verb, remote_target, body, auth_context, created_at, related_registration_id, related_national_id`

// scanPending scans one pending-operation row.
func scanPending(row interface{ Scan(...interface{}) error }) (*models.PendingOperation, error) {
	var op models.PendingOperation
	var body, auth string
	var relatedReg, relatedNat sql.NullString
	err := row.Scan(&op.ID, &op.Verb, &op.RemoteTarget, &body, &auth,
		&op.CreatedAt, &relatedReg, &relatedNat)
	if err != nil {
		return nil, err
	}
	op.Body = []byte(body)
	op.AuthContext = []byte(auth)
	op.RelatedRegistrationID = models.UUID(relatedReg.String)
	op.RelatedNationalID = relatedNat.String
	return &op, nil
}

// ListPendingOperations returns queued operations in insertion order,
// the order the sync drain must attempt them.
func (r *Repository) ListPendingOperations() ([]*models.PendingOperation, error) {
	rows, err := r.db.Query("SELECT " + pendingColumns + " FROM pending_operations ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*models.PendingOperation
	for rows.Next() {
		op, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// GetPendingOperation retrieves one queued operation. Returns nil when absent.
func (r *Repository) GetPendingOperation(id int64) (*models.PendingOperation, error) {
	op, err := scanPending(r.db.QueryRow(
		"SELECT "+pendingColumns+" FROM pending_operations WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

// DeletePendingOperation removes one queued operation.
func (r *Repository) DeletePendingOperation(id int64) error {
	if _, err := r.db.Exec("DELETE FROM pending_operations WHERE id = ?", id); err != nil {
		return storageErr("delete pending operation", err)
	}
	return nil
}

// CountPendingOperations returns the queue depth.
func (r *Repository) CountPendingOperations() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM pending_operations").Scan(&n)
	return n, err
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
