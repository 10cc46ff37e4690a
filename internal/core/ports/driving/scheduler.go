package driving

import (
	"context"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

// Scheduler runs the background drain, reconcile and purge passes.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or an error occurs.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error

	// RunNow executes a task immediately, outside its schedule.
	RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error)

	// Tasks returns the persisted state of every registered task.
	Tasks(ctx context.Context) ([]*domain.ScheduledTask, error)
}
