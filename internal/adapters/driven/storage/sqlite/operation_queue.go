package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

// operationQueue implements driven.OperationQueue.
type operationQueue struct {
	store *Store
}

var _ driven.OperationQueue = (*operationQueue)(nil)

const operationColumns = `id, table_name, record_id, kind, payload, status, attempts, revision,
	created_at, last_attempted_at, last_error, updated_at`

// Enqueue upserts the PENDING entry for (table, recordID).
// The partial unique index on PENDING rows is the conflict target, so
// coalescing happens in a single statement.
func (q *operationQueue) Enqueue(
	ctx context.Context, table, recordID string, kind domain.OperationKind, payload domain.Fields,
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
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}

	now := formatTime(q.store.now())
	var id int64
	err = q.store.db.QueryRowContext(ctx, `
		INSERT INTO sync_operations (table_name, record_id, kind, payload, status, attempts, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'PENDING', 0, 1, ?, ?)
		ON CONFLICT (table_name, record_id) WHERE status = 'PENDING' DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			attempts = 0,
			revision = sync_operations.revision + 1,
			last_attempted_at = NULL,
			last_error = NULL,
			updated_at = excluded.updated_at
		RETURNING id
	`, table, recordID, string(kind), string(body), now, now).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("enqueueing %s/%s: %w", table, recordID, err)
	}

	return q.Get(ctx, id)
}

// ListPending returns PENDING entries, oldest first.
func (q *operationQueue) ListPending(ctx context.Context) ([]*domain.SyncOperation, error) {
	return q.listByStatus(ctx, domain.StatusPending)
}

// ListFailed returns FAILED entries, oldest first.
func (q *operationQueue) ListFailed(ctx context.Context) ([]*domain.SyncOperation, error) {
	return q.listByStatus(ctx, domain.StatusFailed)
}

func (q *operationQueue) listByStatus(ctx context.Context, status domain.OperationStatus) ([]*domain.SyncOperation, error) {
	rows, err := q.store.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM sync_operations WHERE status = ? ORDER BY created_at, id`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("querying %s operations: %w", status, err)
	}
	defer rows.Close()

	var ops []*domain.SyncOperation //nolint:prealloc // size unknown from query
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s operations: %w", status, err)
	}
	return ops, nil
}

// Get returns an entry by ID.
func (q *operationQueue) Get(ctx context.Context, id int64) (*domain.SyncOperation, error) {
	row := q.store.db.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM sync_operations WHERE id = ?`, id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: operation %d", domain.ErrNotFound, id)
	}
	return op, err
}

// MarkDone moves a PENDING entry to DONE.
func (q *operationQueue) MarkDone(ctx context.Context, op *domain.SyncOperation) error {
	now := formatTime(q.store.now())
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE sync_operations
		SET status = 'DONE', last_attempted_at = ?, updated_at = ?
		WHERE id = ? AND status = 'PENDING' AND revision = ?
	`, now, now, op.ID, op.Revision)
	if err != nil {
		return fmt.Errorf("marking operation %d done: %w", op.ID, err)
	}
	return q.checkTransition(ctx, res, op.ID)
}

// MarkFailed moves a PENDING entry to FAILED.
func (q *operationQueue) MarkFailed(ctx context.Context, op *domain.SyncOperation, errMsg string) error {
	now := formatTime(q.store.now())
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE sync_operations
		SET status = 'FAILED', attempts = attempts + 1, last_attempted_at = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = 'PENDING' AND revision = ?
	`, now, nullString(errMsg), now, op.ID, op.Revision)
	if err != nil {
		return fmt.Errorf("marking operation %d failed: %w", op.ID, err)
	}
	return q.checkTransition(ctx, res, op.ID)
}

// RecordAttempt counts a transient failure and keeps the entry PENDING.
func (q *operationQueue) RecordAttempt(ctx context.Context, op *domain.SyncOperation, errMsg string) (int, error) {
	var attempts int
	err := q.store.db.QueryRowContext(ctx, `
		UPDATE sync_operations
		SET attempts = attempts + 1, last_attempted_at = ?, last_error = ?
		WHERE id = ? AND status = 'PENDING' AND revision = ?
		RETURNING attempts
	`, formatTime(q.store.now()), nullString(errMsg), op.ID, op.Revision).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, q.missedTransition(ctx, op.ID)
	}
	if err != nil {
		return 0, fmt.Errorf("recording attempt for operation %d: %w", op.ID, err)
	}
	return attempts, nil
}

// ResetFailed revives the newest FAILED entry of every key that has no
// PENDING entry. Older failures for the same key stay FAILED.
func (q *operationQueue) ResetFailed(ctx context.Context) (int, error) {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE sync_operations
		SET status = 'PENDING', attempts = 0, last_attempted_at = NULL, updated_at = ?
		WHERE status = 'FAILED'
		  AND id IN (
			SELECT MAX(id) FROM sync_operations WHERE status = 'FAILED' GROUP BY table_name, record_id
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM sync_operations p
			WHERE p.status = 'PENDING'
			  AND p.table_name = sync_operations.table_name
			  AND p.record_id = sync_operations.record_id
		  )
	`, formatTime(q.store.now()))
	if err != nil {
		return 0, fmt.Errorf("resetting failed operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting reset operations: %w", err)
	}
	return int(n), nil
}

// PurgeDone deletes DONE entries whose last transition is older than olderThan.
func (q *operationQueue) PurgeDone(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan < 0 {
		return 0, fmt.Errorf("%w: negative retention %s", domain.ErrInvalidInput, olderThan)
	}
	cutoff := formatTime(q.store.now().Add(-olderThan))
	res, err := q.store.db.ExecContext(ctx,
		`DELETE FROM sync_operations WHERE status = 'DONE' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging done operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged operations: %w", err)
	}
	return int(n), nil
}

// Stats counts entries per status.
func (q *operationQueue) Stats(ctx context.Context) (domain.QueueStats, error) {
	var stats domain.QueueStats
	rows, err := q.store.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM sync_operations GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("querying queue stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("scanning queue stats: %w", err)
		}
		switch domain.OperationStatus(status) {
		case domain.StatusPending:
			stats.Pending = n
		case domain.StatusFailed:
			stats.Failed = n
		case domain.StatusDone:
			stats.Done = n
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterating queue stats: %w", err)
	}
	return stats, nil
}

func (q *operationQueue) checkTransition(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking transition of operation %d: %w", id, err)
	}
	if n == 1 {
		return nil
	}
	return q.missedTransition(ctx, id)
}

// missedTransition explains why a guarded update matched no row.
func (q *operationQueue) missedTransition(ctx context.Context, id int64) error {
	cur, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if cur.Status != domain.StatusPending {
		return fmt.Errorf("%w: operation %d is %s", domain.ErrInvalidInput, id, cur.Status)
	}
	return fmt.Errorf("%w: operation %d is at revision %d", domain.ErrSuperseded, id, cur.Revision)
}

func scanOperation(r rowScanner) (*domain.SyncOperation, error) {
	var op domain.SyncOperation
	var kind, status, payload, createdAt, updatedAt string
	var lastAttempted, lastError sql.NullString

	if err := r.Scan(&op.ID, &op.Table, &op.RecordID, &kind, &payload, &status,
		&op.Attempts, &op.Revision, &createdAt, &lastAttempted, &lastError, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning operation: %w", err)
	}

	op.Kind = domain.OperationKind(kind)
	op.Status = domain.OperationStatus(status)
	if err := json.Unmarshal([]byte(payload), &op.Payload); err != nil {
		return nil, fmt.Errorf("unmarshalling payload of operation %d: %w", op.ID, err)
	}
	op.CreatedAt = parseNullableTime(sql.NullString{String: createdAt, Valid: true})
	op.UpdatedAt = parseNullableTime(sql.NullString{String: updatedAt, Valid: true})
	op.LastAttemptedAt = parseNullableTime(lastAttempted)
	if lastError.Valid {
		op.LastError = lastError.String
	}
	return &op, nil
}
