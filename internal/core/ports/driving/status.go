package driving

import (
	"context"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

// StatusService reports sync health for status indicators.
type StatusService interface {
	// Status returns a snapshot of queue counts, last pass results and configuration.
	Status(ctx context.Context) (*domain.SyncStatus, error)

	// Queue lists PENDING entries, or FAILED entries when failed is set.
	Queue(ctx context.Context, failed bool) ([]*domain.SyncOperation, error)
}
