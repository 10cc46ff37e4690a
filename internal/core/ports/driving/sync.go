package driving

import (
	"context"
	"time"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

// SyncManager replays the operation queue against the remote store.
type SyncManager interface {
	// Drain dispatches every due PENDING entry once.
	// Overlapping calls share a single in-flight pass.
	Drain(ctx context.Context) (domain.DrainResult, error)

	// RetryFailed moves FAILED entries back to PENDING.
	RetryFailed(ctx context.Context) (int, error)

	// Purge deletes DONE entries older than olderThan.
	Purge(ctx context.Context, olderThan time.Duration) (int, error)
}

// Reconciler converges local tables with the remote store.
type Reconciler interface {
	// Reconcile runs a full pass over every configured table.
	// Overlapping calls share a single in-flight pass.
	Reconcile(ctx context.Context) (domain.ReconcileResult, error)

	// ReconcileTable runs a full pass over one table.
	ReconcileTable(ctx context.Context, table string) (domain.TableResult, error)
}

// ChangeTracker writes local mutations and queues them for the remote store.
type ChangeTracker interface {
	// Create inserts a record locally and queues an INSERT.
	Create(ctx context.Context, table string, fields domain.Fields) (*domain.Record, error)

	// Update overwrites a record locally and queues an UPDATE.
	Update(ctx context.Context, table, id string, fields domain.Fields) (*domain.Record, error)

	// Delete removes a record locally and queues a DELETE.
	Delete(ctx context.Context, table, id string) error
}
