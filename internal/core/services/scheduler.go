package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driving"
	"github.com/rajeeshbabu/mahal-sync/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

const (
	// DefaultSchedulerTick is how often the loop looks for due tasks.
	DefaultSchedulerTick = 10 * time.Second

	// historyKeep is the number of results kept per task.
	historyKeep = 100
)

// Scheduler runs the queue drain, reconciliation and purge passes on their
// intervals and persists task state so schedules survive restarts.
type Scheduler struct {
	config     domain.SchedulerConfig
	store      driven.SchedulerStore
	manager    driving.SyncManager
	reconciler driving.Reconciler
	settings   driven.SettingsProvider
	tick       time.Duration
	now        func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// inFlight guards against a slow task being started twice.
	inFlight map[string]bool
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	manager driving.SyncManager,
	reconciler driving.Reconciler,
	settings driven.SettingsProvider,
) *Scheduler {
	return &Scheduler{
		config:     config,
		store:      store,
		manager:    manager,
		reconciler: reconciler,
		settings:   settings,
		tick:       DefaultSchedulerTick,
		now:        time.Now,
		inFlight:   make(map[string]bool),
	}
}

// SetTick changes the polling period. Used by tests.
func (s *Scheduler) SetTick(d time.Duration) {
	s.tick = d
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		logger.Info("scheduler: disabled")
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Error("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx, stopCh)
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Tasks returns the persisted state of every task.
func (s *Scheduler) Tasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ScheduledTask, len(tasks))
	for i := range tasks {
		out[i] = &tasks[i]
	}
	return out, nil
}

// RunNow executes a task synchronously outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	if _, ok := domain.TaskNames[taskID]; !ok {
		return nil, fmt.Errorf("%w: unknown task %q", domain.ErrInvalidInput, taskID)
	}

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		cfg := s.config.GetTaskConfig(taskID)
		task = &domain.ScheduledTask{ID: taskID, Name: domain.TaskNames[taskID], Interval: cfg.Interval, Enabled: cfg.Enabled}
	}

	if !s.claim(taskID) {
		return nil, fmt.Errorf("task %s is already running", taskID)
	}
	defer s.release(taskID)

	return s.execute(ctx, task), nil
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, id := range []string{domain.TaskIDQueueDrain, domain.TaskIDReconcile, domain.TaskIDQueuePurge} {
		if err := s.ensureTask(ctx, id, domain.TaskNames[id], s.config.GetTaskConfig(id)); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if task == nil {
		// First run happens on the first tick.
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  now,
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = now.Add(cfg.Interval)
		}
		task.Name = name
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and starts tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.IsDue(now) {
			continue
		}
		if !s.claim(task.ID) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(task.ID)
			s.execute(ctx, &task)
		}()
	}
}

func (s *Scheduler) claim(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[taskID] {
		return false
	}
	s.inFlight[taskID] = true
	return true
}

func (s *Scheduler) release(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, taskID)
}

// execute runs one task and records its outcome.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) *domain.TaskResult {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
	}

	var err error
	switch task.ID {
	case domain.TaskIDQueueDrain:
		result.ItemsProcessed, err = s.runDrain(ctx)
	case domain.TaskIDReconcile:
		result.ItemsProcessed, err = s.runReconcile(ctx)
	case domain.TaskIDQueuePurge:
		result.ItemsProcessed, err = s.runPurge(ctx)
	default:
		err = fmt.Errorf("unknown task ID: %s", task.ID)
	}

	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		task.LastError = err.Error()
		logger.Warn("scheduler: %s failed: %v", task.ID, err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
	}

	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)

	// Record with a fresh context so a shutdown still persists the outcome.
	saveCtx := context.WithoutCancel(ctx)
	if saveErr := s.store.SaveTask(saveCtx, task); saveErr != nil {
		logger.Error("scheduler: failed to save task %s: %v", task.ID, saveErr)
	}
	if recordErr := s.store.RecordResult(saveCtx, result); recordErr != nil {
		logger.Error("scheduler: failed to record result for %s: %v", task.ID, recordErr)
	}
	if pruneErr := s.store.PruneHistory(saveCtx, historyKeep); pruneErr != nil {
		logger.Error("scheduler: failed to prune history: %v", pruneErr)
	}
	return result
}

func (s *Scheduler) runDrain(ctx context.Context) (int, error) {
	if s.manager == nil {
		return 0, nil
	}
	res, err := s.manager.Drain(ctx)
	return res.Attempted, err
}

func (s *Scheduler) runReconcile(ctx context.Context) (int, error) {
	if s.reconciler == nil {
		return 0, nil
	}
	res, err := s.reconciler.Reconcile(ctx)
	t := res.Totals()
	return t.LocalChanges() + t.RemoteChanges(), err
}

func (s *Scheduler) runPurge(ctx context.Context) (int, error) {
	if s.manager == nil {
		return 0, nil
	}
	retention := domain.DefaultRetention
	if s.settings != nil {
		retention = s.settings.Settings().Normalise().Retention
	}
	return s.manager.Purge(ctx, retention)
}
