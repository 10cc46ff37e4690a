package cli

import (
	"context"
	"sync"
	"time"

	"github.com/rajeeshbabu/mahal-sync/internal/adapters/driven/storage/memory"
	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driving"
)

// mockSyncManager implements driving.SyncManager for testing.
type mockSyncManager struct {
	drainRes  domain.DrainResult
	drainErr  error
	retried   int
	purgedFor time.Duration
}

func (m *mockSyncManager) Drain(_ context.Context) (domain.DrainResult, error) {
	return m.drainRes, m.drainErr
}

func (m *mockSyncManager) RetryFailed(_ context.Context) (int, error) {
	return m.retried, nil
}

func (m *mockSyncManager) Purge(_ context.Context, olderThan time.Duration) (int, error) {
	m.purgedFor = olderThan
	return 2, nil
}

// mockReconciler implements driving.Reconciler for testing.
type mockReconciler struct {
	res      domain.ReconcileResult
	err      error
	tableErr error
	tables   []string

	tableNotConfigured bool
}

func (m *mockReconciler) Reconcile(_ context.Context) (domain.ReconcileResult, error) {
	return m.res, m.err
}

func (m *mockReconciler) ReconcileTable(_ context.Context, table string) (domain.TableResult, error) {
	m.tables = append(m.tables, table)
	if m.tableNotConfigured {
		return domain.TableResult{Table: table, NotConfigured: true}, nil
	}
	return domain.TableResult{Table: table, Fetched: 1, Unchanged: 1}, m.tableErr
}

// mockStatusService implements driving.StatusService for testing.
type mockStatusService struct {
	status  *domain.SyncStatus
	pending []*domain.SyncOperation
	failed  []*domain.SyncOperation
}

func (m *mockStatusService) Status(_ context.Context) (*domain.SyncStatus, error) {
	return m.status, nil
}

func (m *mockStatusService) Queue(_ context.Context, failed bool) ([]*domain.SyncOperation, error) {
	if failed {
		return m.failed, nil
	}
	return m.pending, nil
}

// mockChangeTracker implements driving.ChangeTracker for testing.
type mockChangeTracker struct {
	created domain.Fields
	updated domain.Fields
	deleted string
	err     error
}

func (m *mockChangeTracker) Create(_ context.Context, _ string, fields domain.Fields) (*domain.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = fields
	return &domain.Record{ID: "rec-1", IdentityKey: fields.String("userId"), Fields: fields}, nil
}

func (m *mockChangeTracker) Update(_ context.Context, _, id string, fields domain.Fields) (*domain.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.updated = fields
	return &domain.Record{ID: id, Fields: fields}, nil
}

func (m *mockChangeTracker) Delete(_ context.Context, _, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = id
	return nil
}

// mockScheduler implements driving.Scheduler for testing.
type mockScheduler struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockScheduler) RunNow(_ context.Context, taskID string) (*domain.TaskResult, error) {
	return &domain.TaskResult{TaskID: taskID, Success: true}, nil
}

func (m *mockScheduler) Tasks(_ context.Context) ([]*domain.ScheduledTask, error) {
	return nil, nil
}

var (
	_ driving.SyncManager   = (*mockSyncManager)(nil)
	_ driving.Reconciler    = (*mockReconciler)(nil)
	_ driving.StatusService = (*mockStatusService)(nil)
	_ driving.ChangeTracker = (*mockChangeTracker)(nil)
	_ driving.Scheduler     = (*mockScheduler)(nil)
)

type testServices struct {
	sync     *mockSyncManager
	recon    *mockReconciler
	status   *mockStatusService
	tracker  *mockChangeTracker
	config   *memory.ConfigStore
	schedule *mockScheduler
}

// setupTestServices installs mocks and returns them with a restore func.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		sync:  &mockSyncManager{},
		recon: &mockReconciler{},
		status: &mockStatusService{status: &domain.SyncStatus{
			Configured: true,
			Source:     domain.SourceFile,
			Queue:      domain.QueueStats{Pending: 2, Failed: 1, Done: 1234},
		}},
		tracker:  &mockChangeTracker{},
		config:   memory.NewConfigStore(),
		schedule: &mockScheduler{},
	}
	SetServices(&Services{
		SyncManager:   ts.sync,
		Reconciler:    ts.recon,
		Status:        ts.status,
		ChangeTracker: ts.tracker,
		ConfigStore:   ts.config,
		Daemon:        &DaemonConfig{Scheduler: ts.schedule},
	})
	return ts, func() { SetServices(nil) }
}
