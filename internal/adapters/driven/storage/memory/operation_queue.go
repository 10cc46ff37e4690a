package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

// Ensure OperationQueue implements the interface.
var _ driven.OperationQueue = (*OperationQueue)(nil)

// OperationQueue is an in-memory implementation of driven.OperationQueue.
// It mirrors the SQLite queue semantics and backs service tests.
type OperationQueue struct {
	mu     sync.RWMutex
	nextID int64
	ops    map[int64]*domain.SyncOperation
	now    func() time.Time
}

// NewOperationQueue creates a new in-memory queue.
func NewOperationQueue() *OperationQueue {
	return &OperationQueue{
		ops: make(map[int64]*domain.SyncOperation),
		now: time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (q *OperationQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue upserts the PENDING entry for (table, recordID).
func (q *OperationQueue) Enqueue(
	_ context.Context, table, recordID string, kind domain.OperationKind, payload domain.Fields,
) (*domain.SyncOperation, error) {
	if table == "" || recordID == "" {
		return nil, fmt.Errorf("%w: table and record id are required", domain.ErrInvalidInput)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}

	if payload == nil {
		payload = domain.Fields{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now().UTC()
	if op := q.pendingFor(table, recordID); op != nil {
		op.Kind = kind
		op.Payload = payload.Clone()
		op.Attempts = 0
		op.Revision++
		op.LastAttemptedAt = time.Time{}
		op.LastError = ""
		op.UpdatedAt = now
		return copyOperation(op), nil
	}

	q.nextID++
	op := &domain.SyncOperation{
		ID:        q.nextID,
		Table:     table,
		RecordID:  recordID,
		Kind:      kind,
		Payload:   payload.Clone(),
		Status:    domain.StatusPending,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.ops[op.ID] = op
	return copyOperation(op), nil
}

func (q *OperationQueue) pendingFor(table, recordID string) *domain.SyncOperation {
	for _, op := range q.ops {
		if op.Status == domain.StatusPending && op.Table == table && op.RecordID == recordID {
			return op
		}
	}
	return nil
}

// ListPending returns PENDING entries, oldest first.
func (q *OperationQueue) ListPending(_ context.Context) ([]*domain.SyncOperation, error) {
	return q.list(domain.StatusPending), nil
}

// ListFailed returns FAILED entries, oldest first.
func (q *OperationQueue) ListFailed(_ context.Context) ([]*domain.SyncOperation, error) {
	return q.list(domain.StatusFailed), nil
}

func (q *OperationQueue) list(status domain.OperationStatus) []*domain.SyncOperation {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []*domain.SyncOperation
	for _, op := range q.ops {
		if op.Status == status {
			out = append(out, copyOperation(op))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns an entry by ID.
func (q *OperationQueue) Get(_ context.Context, id int64) (*domain.SyncOperation, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	op, ok := q.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: operation %d", domain.ErrNotFound, id)
	}
	return copyOperation(op), nil
}

// MarkDone moves a PENDING entry to DONE.
func (q *OperationQueue) MarkDone(_ context.Context, op *domain.SyncOperation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, err := q.guard(op)
	if err != nil {
		return err
	}
	now := q.now().UTC()
	cur.Status = domain.StatusDone
	cur.LastAttemptedAt = now
	cur.UpdatedAt = now
	return nil
}

// MarkFailed moves a PENDING entry to FAILED and counts the attempt.
func (q *OperationQueue) MarkFailed(_ context.Context, op *domain.SyncOperation, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, err := q.guard(op)
	if err != nil {
		return err
	}
	now := q.now().UTC()
	cur.Status = domain.StatusFailed
	cur.Attempts++
	cur.LastAttemptedAt = now
	cur.LastError = errMsg
	cur.UpdatedAt = now
	return nil
}

// RecordAttempt counts a transient failure and keeps the entry PENDING.
func (q *OperationQueue) RecordAttempt(_ context.Context, op *domain.SyncOperation, errMsg string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, err := q.guard(op)
	if err != nil {
		return 0, err
	}
	cur.Attempts++
	cur.LastAttemptedAt = q.now().UTC()
	cur.LastError = errMsg
	return cur.Attempts, nil
}

// guard returns the stored entry if op may still transition it. Caller holds mu.
func (q *OperationQueue) guard(op *domain.SyncOperation) (*domain.SyncOperation, error) {
	cur, ok := q.ops[op.ID]
	if !ok {
		return nil, fmt.Errorf("%w: operation %d", domain.ErrNotFound, op.ID)
	}
	if cur.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: operation %d is %s", domain.ErrInvalidInput, op.ID, cur.Status)
	}
	if cur.Revision != op.Revision {
		return nil, fmt.Errorf("%w: operation %d is at revision %d", domain.ErrSuperseded, op.ID, cur.Revision)
	}
	return cur, nil
}

// ResetFailed revives the newest FAILED entry of every key without a PENDING entry.
func (q *OperationQueue) ResetFailed(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	newest := make(map[string]*domain.SyncOperation)
	for _, op := range q.ops {
		if op.Status != domain.StatusFailed {
			continue
		}
		if cur, ok := newest[op.Key()]; !ok || op.ID > cur.ID {
			newest[op.Key()] = op
		}
	}

	now := q.now().UTC()
	n := 0
	for _, op := range newest {
		if q.pendingFor(op.Table, op.RecordID) != nil {
			continue
		}
		op.Status = domain.StatusPending
		op.Attempts = 0
		op.LastAttemptedAt = time.Time{}
		op.UpdatedAt = now
		n++
	}
	return n, nil
}

// PurgeDone deletes DONE entries whose last transition is older than olderThan.
func (q *OperationQueue) PurgeDone(_ context.Context, olderThan time.Duration) (int, error) {
	if olderThan < 0 {
		return 0, fmt.Errorf("%w: negative retention %s", domain.ErrInvalidInput, olderThan)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.now().Add(-olderThan)
	n := 0
	for id, op := range q.ops {
		if op.Status == domain.StatusDone && op.UpdatedAt.Before(cutoff) {
			delete(q.ops, id)
			n++
		}
	}
	return n, nil
}

// Stats counts entries per status.
func (q *OperationQueue) Stats(_ context.Context) (domain.QueueStats, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var s domain.QueueStats
	for _, op := range q.ops {
		switch op.Status {
		case domain.StatusPending:
			s.Pending++
		case domain.StatusFailed:
			s.Failed++
		case domain.StatusDone:
			s.Done++
		}
	}
	return s, nil
}

func copyOperation(op *domain.SyncOperation) *domain.SyncOperation {
	c := *op
	c.Payload = op.Payload.Clone()
	return &c
}
