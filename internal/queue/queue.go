// Package queue manages the durable queue of remote operations this
// client still owes the server. Entries live in the same sqlite file as
// the rows they were created with, so a crash between local write and
// remote call loses nothing: the queue itself is the recovery
// mechanism.
package queue

import (
	"encoding/json"
	"time"

	"github.com/eventdesk/attendant/internal/db"
	"github.com/eventdesk/attendant/internal/logging"
	"github.com/eventdesk/attendant/internal/models"
)

// PendingQueue is a FIFO view over the pending_operations table.
// Insertion order is replay order; entries are appended inside the same
// transaction as the check-in or registration that justified them (see
// the repository pairing helpers) and never mutated afterwards.
type PendingQueue struct {
	repo *db.Repository
}

// NewPendingQueue creates a queue over the given repository.
func NewPendingQueue(repo *db.Repository) *PendingQueue {
	return &PendingQueue{repo: repo}
}

// NewOperation builds a queue entry for a remote call: the wire tuple
// plus the auth context to replay verbatim and the local rows the entry
// correlates with for cascading cleanup.
func NewOperation(verb, target string, body []byte, auth models.AuthContext, relatedRegistrationID models.UUID, relatedNationalID string) (*models.PendingOperation, error) {
	authJSON, err := auth.Marshal()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}

	return &models.PendingOperation{
		Verb:                  verb,
		RemoteTarget:          target,
		Body:                  body,
		AuthContext:           authJSON,
		CreatedAt:             time.Now().UTC().Format(time.RFC3339),
		RelatedRegistrationID: relatedRegistrationID,
		RelatedNationalID:     relatedNationalID,
	}, nil
}

// List returns a point-in-time snapshot of queued operations in
// insertion order. Operations enqueued after the snapshot is taken are
// picked up on the next drain.
func (q *PendingQueue) List() ([]*models.PendingOperation, error) {
	return q.repo.ListPendingOperations()
}

// Get retrieves one entry by id. Returns nil when absent.
func (q *PendingQueue) Get(id int64) (*models.PendingOperation, error) {
	return q.repo.GetPendingOperation(id)
}

// Delete removes one entry. Used by the drain once the server has the
// effect (success or already done) or the operation is permanently
// invalid.
func (q *PendingQueue) Delete(id int64) error {
	if err := q.repo.DeletePendingOperation(id); err != nil {
		return err
	}
	logging.Debug("pending operation removed", map[string]interface{}{"id": id})
	return nil
}

// Count returns the queue depth.
func (q *PendingQueue) Count() (int, error) {
	return q.repo.CountPendingOperations()
}
