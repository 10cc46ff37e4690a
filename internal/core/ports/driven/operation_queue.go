package driven

import (
	"context"
	"time"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

// OperationQueue is the durable queue of local mutations awaiting the remote store.
// Implementations never touch the network. Every transition is a single-row
// read-modify-write.
type OperationQueue interface {
	// Enqueue records a mutation for (table, recordID). When a PENDING entry
	// already exists for the key, its kind and payload are replaced, attempts
	// reset to zero and its original position is kept.
	Enqueue(ctx context.Context, table, recordID string, kind domain.OperationKind, payload domain.Fields) (*domain.SyncOperation, error)

	// ListPending returns PENDING entries, oldest first.
	ListPending(ctx context.Context) ([]*domain.SyncOperation, error)

	// ListFailed returns FAILED entries, oldest first.
	ListFailed(ctx context.Context) ([]*domain.SyncOperation, error)

	// Get returns an entry by ID, or domain.ErrNotFound.
	Get(ctx context.Context, id int64) (*domain.SyncOperation, error)

	// MarkDone moves a PENDING entry to DONE.
	//
	// Transitions apply to the revision held by op. If the entry was coalesced
	// with a newer mutation since it was read, they return domain.ErrSuperseded
	// and leave the entry PENDING.
	MarkDone(ctx context.Context, op *domain.SyncOperation) error

	// MarkFailed moves a PENDING entry to FAILED, keeping errMsg for inspection.
	// The failed dispatch is counted as an attempt.
	MarkFailed(ctx context.Context, op *domain.SyncOperation, errMsg string) error

	// RecordAttempt counts a transient failure. The entry stays PENDING.
	// Returns the updated attempt count.
	RecordAttempt(ctx context.Context, op *domain.SyncOperation, errMsg string) (int, error)

	// ResetFailed moves FAILED entries back to PENDING with attempts reset.
	// Returns how many entries were revived.
	ResetFailed(ctx context.Context) (int, error)

	// PurgeDone deletes DONE entries whose last transition is older than olderThan.
	PurgeDone(ctx context.Context, olderThan time.Duration) (int, error)

	// Stats counts entries per status.
	Stats(ctx context.Context) (domain.QueueStats, error)
}
