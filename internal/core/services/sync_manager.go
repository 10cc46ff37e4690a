package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driving"
	"github.com/rajeeshbabu/mahal-sync/internal/logger"
)

// Ensure SyncManager implements the interface.
var _ driving.SyncManager = (*SyncManager)(nil)

// SyncManager drains the operation queue against the remote store.
//
// Each PENDING entry is dispatched at most once per pass. A 2xx marks it DONE,
// a 4xx or an undispatchable payload marks it FAILED at once, and a transient
// failure keeps it PENDING under linear backoff until MaxAttempts is reached.
type SyncManager struct {
	queue    driven.OperationQueue
	catalog  *domain.TableCatalog
	remote   *RemoteProvider
	notifier driven.EventNotifier
	now      func() time.Time

	group singleflight.Group

	mu   sync.RWMutex
	last *domain.DrainResult
}

// NewSyncManager creates a sync manager.
func NewSyncManager(
	queue driven.OperationQueue,
	catalog *domain.TableCatalog,
	remote *RemoteProvider,
	notifier driven.EventNotifier,
) *SyncManager {
	return &SyncManager{
		queue:    queue,
		catalog:  catalog,
		remote:   remote,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (m *SyncManager) SetClock(now func() time.Time) {
	m.now = now
}

// Drain dispatches every due PENDING entry once.
// Concurrent callers share the in-flight pass.
func (m *SyncManager) Drain(ctx context.Context) (domain.DrainResult, error) {
	v, err, shared := m.group.Do("drain", func() (any, error) {
		return m.drain(ctx)
	})
	if shared {
		logger.Debug("drain: joined in-flight pass")
	}
	res, _ := v.(domain.DrainResult)
	return res, err
}

// LastDrain returns the result of the most recent completed pass, or nil.
func (m *SyncManager) LastDrain() *domain.DrainResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return nil
	}
	r := *m.last
	return &r
}

func (m *SyncManager) drain(ctx context.Context) (domain.DrainResult, error) {
	res := domain.DrainResult{StartedAt: m.now()}

	settings := m.remote.Settings()
	store, err := m.remote.Store(settings)
	if errors.Is(err, domain.ErrNotConfigured) {
		logger.Debug("drain: remote not configured, skipping")
		res.NotConfigured = true
		res.EndedAt = m.now()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("drain: remote store: %w", err)
	}

	ops, err := m.queue.ListPending(ctx)
	if err != nil {
		return res, fmt.Errorf("drain: list pending: %w", err)
	}

	logger.Section("Queue drain")
	logger.Debug("drain: %d pending entries", len(ops))

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			res.EndedAt = m.now()
			return res, err
		}
		if !op.Due(m.now(), settings.Retry.BaseDelay) {
			res.Deferred++
			continue
		}

		res.Attempted++
		dispatchErr := m.dispatch(ctx, store, op)
		m.settle(ctx, op, dispatchErr, settings.Retry.MaxAttempts, &res)
	}

	res.EndedAt = m.now()
	logger.Info("drain: %d attempted, %d done, %d retried, %d failed, %d deferred",
		res.Attempted, res.Done, res.Retried, res.Failed, res.Deferred)

	m.mu.Lock()
	last := res
	m.last = &last
	m.mu.Unlock()

	if m.notifier != nil {
		m.notifier.Publish(domain.Event{Type: domain.EventDrainCompleted, Data: res, Timestamp: res.EndedAt})
	}
	return res, nil
}

// dispatch replays one entry against the remote store.
func (m *SyncManager) dispatch(ctx context.Context, store driven.RemoteStore, op *domain.SyncOperation) error {
	spec, err := m.catalog.Lookup(op.Table)
	if err != nil {
		return err
	}
	rec, err := spec.RecordFromPayload(op.RecordID, op.Payload)
	if err != nil {
		return err
	}

	switch op.Kind {
	case domain.OperationInsert:
		return store.Create(ctx, spec, rec)
	case domain.OperationUpdate:
		return store.Update(ctx, spec, rec)
	case domain.OperationDelete:
		return store.Delete(ctx, spec, rec.IdentityKey)
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, op.Kind)
	}
}

// settle records the outcome of one dispatch.
func (m *SyncManager) settle(
	ctx context.Context,
	op *domain.SyncOperation,
	dispatchErr error,
	maxAttempts int,
	res *domain.DrainResult,
) {
	var err error
	switch {
	case dispatchErr == nil:
		if err = m.queue.MarkDone(ctx, op); err == nil {
			res.Done++
			logger.Debug("drain: %s %s done", op.Kind, op.Key())
		}

	case domain.IsRetryable(dispatchErr):
		if op.Attempts+1 >= maxAttempts {
			if err = m.queue.MarkFailed(ctx, op, dispatchErr.Error()); err == nil {
				res.Failed++
				logger.Warn("drain: %s %s failed after %d attempts: %v", op.Kind, op.Key(), op.Attempts+1, dispatchErr)
			}
			break
		}
		var attempts int
		if attempts, err = m.queue.RecordAttempt(ctx, op, dispatchErr.Error()); err == nil {
			res.Retried++
			logger.Debug("drain: %s %s attempt %d/%d: %v", op.Kind, op.Key(), attempts, maxAttempts, dispatchErr)
		}

	default:
		if err = m.queue.MarkFailed(ctx, op, dispatchErr.Error()); err == nil {
			res.Failed++
			logger.Warn("drain: %s %s rejected: %v", op.Kind, op.Key(), dispatchErr)
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSuperseded):
		res.Superseded++
		logger.Debug("drain: %s superseded while in flight, left pending", op.Key())
	default:
		res.StoreErrors++
		logger.Error("drain: record outcome of %s: %v", op.Key(), err)
	}
}

// RetryFailed moves FAILED entries back to PENDING.
func (m *SyncManager) RetryFailed(ctx context.Context) (int, error) {
	n, err := m.queue.ResetFailed(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry failed: %w", err)
	}
	logger.Info("queue: %d failed entries reset", n)
	return n, nil
}

// Purge deletes DONE entries older than olderThan.
func (m *SyncManager) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	n, err := m.queue.PurgeDone(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	logger.Debug("queue: purged %d done entries older than %s", n, olderThan)
	return n, nil
}
