package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driving"
	"github.com/rajeeshbabu/mahal-sync/internal/logger"
)

// Ensure ChangeTracker implements the interface.
var _ driving.ChangeTracker = (*ChangeTracker)(nil)

// ChangeTracker is the write path for synced tables: each mutation lands in
// the local store first and is then queued for the remote store.
type ChangeTracker struct {
	records driven.RecordStore
	queue   driven.OperationQueue
	catalog *domain.TableCatalog
	now     func() time.Time
}

// NewChangeTracker creates a change tracker.
func NewChangeTracker(records driven.RecordStore, queue driven.OperationQueue, catalog *domain.TableCatalog) *ChangeTracker {
	return &ChangeTracker{
		records: records,
		queue:   queue,
		catalog: catalog,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (t *ChangeTracker) SetClock(now func() time.Time) {
	t.now = now
}

// Create inserts a record locally and queues an INSERT.
func (t *ChangeTracker) Create(ctx context.Context, table string, fields domain.Fields) (*domain.Record, error) {
	spec, err := t.catalog.Lookup(table)
	if err != nil {
		return nil, err
	}
	key, err := spec.IdentityOf(fields)
	if err != nil {
		return nil, err
	}

	rec := domain.Record{
		ID:          uuid.NewString(),
		IdentityKey: key,
		UpdatedAt:   domain.NormaliseTimestamp(t.now()),
		Fields:      fields.Clone(),
	}
	if _, err := t.records.Create(ctx, table, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	if err := t.enqueue(ctx, table, domain.OperationInsert, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update merges fields into a record, stamps it and queues an UPDATE.
func (t *ChangeTracker) Update(ctx context.Context, table, id string, fields domain.Fields) (*domain.Record, error) {
	spec, err := t.catalog.Lookup(table)
	if err != nil {
		return nil, err
	}
	existing, err := t.records.GetByID(ctx, table, id)
	if err != nil {
		return nil, err
	}

	rec := existing.Clone()
	if rec.Fields == nil {
		rec.Fields = domain.Fields{}
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	key, err := spec.IdentityOf(rec.Fields)
	if err != nil {
		return nil, err
	}
	rec.IdentityKey = key
	rec.UpdatedAt = domain.NormaliseTimestamp(t.now())

	ok, err := t.records.Update(ctx, table, rec)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", table, id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, table, id)
	}
	if err := t.enqueue(ctx, table, domain.OperationUpdate, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record locally and queues a DELETE carrying its identity key.
func (t *ChangeTracker) Delete(ctx context.Context, table, id string) error {
	if _, err := t.catalog.Lookup(table); err != nil {
		return err
	}
	existing, err := t.records.GetByID(ctx, table, id)
	if err != nil {
		return err
	}

	ok, err := t.records.Delete(ctx, table, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, table, id)
	}
	return t.enqueue(ctx, table, domain.OperationDelete, *existing)
}

func (t *ChangeTracker) enqueue(ctx context.Context, table string, kind domain.OperationKind, rec domain.Record) error {
	op, err := t.queue.Enqueue(ctx, table, rec.ID, kind, domain.RecordPayload(rec))
	if err != nil {
		// The local write stands; reconciliation will converge the remote side.
		logger.Error("queue %s %s/%s: %v", kind, table, rec.ID, err)
		return fmt.Errorf("queue %s %s/%s: %w", kind, table, rec.ID, err)
	}
	logger.Debug("queued %s %s (revision %d)", op.Kind, op.Key(), op.Revision)
	return nil
}
