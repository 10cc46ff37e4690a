package services

import (
	"context"
	"fmt"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driving"
)

// Ensure StatusService implements the interface.
var _ driving.StatusService = (*StatusService)(nil)

// StatusService assembles the sync status shown by status indicators.
type StatusService struct {
	queue      driven.OperationQueue
	settings   driven.SettingsProvider
	tasks      driven.SchedulerStore
	manager    *SyncManager
	reconciler *Reconciler
}

// NewStatusService creates a status service. tasks, manager and reconciler may be nil.
func NewStatusService(
	queue driven.OperationQueue,
	settings driven.SettingsProvider,
	tasks driven.SchedulerStore,
	manager *SyncManager,
	reconciler *Reconciler,
) *StatusService {
	return &StatusService{
		queue:      queue,
		settings:   settings,
		tasks:      tasks,
		manager:    manager,
		reconciler: reconciler,
	}
}

// Status returns a snapshot of the engine state.
func (s *StatusService) Status(ctx context.Context) (*domain.SyncStatus, error) {
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	settings := s.settings.Settings()
	status := &domain.SyncStatus{
		Configured: settings.IsConfigured(),
		Source:     settings.Remote.Source,
		Queue:      stats,
	}
	if s.manager != nil {
		status.LastDrain = s.manager.LastDrain()
	}
	if s.reconciler != nil {
		status.LastReconcile = s.reconciler.LastReconcile()
	}
	if s.tasks != nil {
		tasks, err := s.tasks.ListTasks(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for i := range tasks {
			status.Tasks = append(status.Tasks, &tasks[i])
		}
	}
	return status, nil
}

// Queue lists PENDING entries, or FAILED entries when failed is set.
func (s *StatusService) Queue(ctx context.Context, failed bool) ([]*domain.SyncOperation, error) {
	if failed {
		return s.queue.ListFailed(ctx)
	}
	return s.queue.ListPending(ctx)
}
