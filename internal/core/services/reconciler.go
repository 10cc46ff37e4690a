package services

import (
	"context"
	"encoding/json"
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

// Ensure Reconciler implements the interface.
var _ driving.Reconciler = (*Reconciler)(nil)

// Reconciler converges local tables with the remote store using
// last-writer-wins on the updated_at timestamp.
type Reconciler struct {
	records  driven.RecordStore
	catalog  *domain.TableCatalog
	remote   *RemoteProvider
	notifier driven.EventNotifier
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	group singleflight.Group

	// pass is held for the whole of any pass, full or single table.
	pass sync.Mutex

	mu   sync.RWMutex
	last *domain.ReconcileResult
}

// NewReconciler creates a reconciler.
func NewReconciler(
	records driven.RecordStore,
	catalog *domain.TableCatalog,
	remote *RemoteProvider,
	notifier driven.EventNotifier,
) *Reconciler {
	return &Reconciler{
		records:  records,
		catalog:  catalog,
		remote:   remote,
		notifier: notifier,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// SetClock replaces the time source. Used by tests.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// SetSleep replaces the backoff sleep between fetch attempts. Used by tests.
func (r *Reconciler) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	r.sleep = sleep
}

// LastReconcile returns the result of the most recent completed pass, or nil.
func (r *Reconciler) LastReconcile() *domain.ReconcileResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	res := *r.last
	res.Tables = append([]domain.TableResult(nil), r.last.Tables...)
	return &res
}

// Reconcile runs a pass over every table in catalog order. A table whose
// fetch fails is reported and skipped; the returned error joins those failures.
func (r *Reconciler) Reconcile(ctx context.Context) (domain.ReconcileResult, error) {
	v, err, _ := r.group.Do("reconcile", func() (any, error) {
		return r.reconcileAll(ctx)
	})
	res, _ := v.(domain.ReconcileResult)
	return res, err
}

// ReconcileTable runs a pass over one table. It waits for any running pass
// to finish first.
func (r *Reconciler) ReconcileTable(ctx context.Context, table string) (domain.TableResult, error) {
	spec, err := r.catalog.Lookup(table)
	if err != nil {
		return domain.TableResult{Table: table}, err
	}

	v, err, _ := r.group.Do("table:"+table, func() (any, error) {
		r.pass.Lock()
		defer r.pass.Unlock()

		res := domain.ReconcileResult{StartedAt: r.now()}
		settings := r.remote.Settings()
		store, err := r.remote.Store(settings)
		if errors.Is(err, domain.ErrNotConfigured) {
			logger.Debug("reconcile %s: remote not configured, skipping", table)
			return domain.TableResult{Table: table, NotConfigured: true}, nil
		}
		if err != nil {
			return domain.TableResult{Table: table}, fmt.Errorf("reconcile %s: remote store: %w", table, err)
		}

		tr, err := r.reconcileTable(ctx, store, settings, spec)
		res.Tables = []domain.TableResult{tr}
		res.EndedAt = r.now()
		r.finish(res)
		return tr, err
	})
	res, _ := v.(domain.TableResult)
	return res, err
}

func (r *Reconciler) reconcileAll(ctx context.Context) (domain.ReconcileResult, error) {
	r.pass.Lock()
	defer r.pass.Unlock()

	res := domain.ReconcileResult{StartedAt: r.now()}

	settings := r.remote.Settings()
	store, err := r.remote.Store(settings)
	if errors.Is(err, domain.ErrNotConfigured) {
		logger.Debug("reconcile: remote not configured, skipping")
		res.NotConfigured = true
		res.EndedAt = r.now()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("reconcile: remote store: %w", err)
	}

	logger.Section("Reconciliation")

	var errs []error
	for _, spec := range r.catalog.Specs() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		tr, err := r.reconcileTable(ctx, store, settings, spec)
		res.Tables = append(res.Tables, tr)
		if err != nil {
			errs = append(errs, err)
		}
	}
	res.EndedAt = r.now()
	r.finish(res)
	return res, errors.Join(errs...)
}

// finish records res as the last pass and announces it.
func (r *Reconciler) finish(res domain.ReconcileResult) {
	r.mu.Lock()
	last := res
	r.last = &last
	r.mu.Unlock()

	if r.notifier != nil {
		r.notifier.Publish(domain.Event{Type: domain.EventReconcileCompleted, Data: res, Timestamp: res.EndedAt})
	}
}

func (r *Reconciler) reconcileTable(
	ctx context.Context,
	store driven.RemoteStore,
	settings domain.SyncSettings,
	spec domain.TableSpec,
) (domain.TableResult, error) {
	tr := domain.TableResult{Table: spec.Name}

	rows, err := r.fetchAll(ctx, store, settings.Retry, spec)
	if err != nil {
		tr.Aborted = err.Error()
		logger.Warn("reconcile %s: aborted: %v", spec.Name, err)
		return tr, fmt.Errorf("reconcile %s: %w", spec.Name, err)
	}
	tr.Fetched = len(rows)

	locals, err := r.records.GetAll(ctx, spec.Name)
	if err != nil {
		tr.Aborted = err.Error()
		logger.Error("reconcile %s: load local records: %v", spec.Name, err)
		return tr, fmt.Errorf("reconcile %s: load local records: %w", spec.Name, err)
	}
	byKey, keys := indexLocal(spec, locals, &tr)

	seen := make(map[string]bool, len(rows))
	for i, raw := range rows {
		if err := ctx.Err(); err != nil {
			return tr, err
		}

		remote, err := spec.FromRemote(raw)
		if err != nil {
			tr.Malformed++
			logger.Warn("reconcile %s: skipping row %d: %v", spec.Name, i, err)
			// Its key still counts as remote so phase 2 does not create over it.
			if key := spec.IdentityOfRow(raw); key != "" {
				seen[key] = true
			}
			continue
		}
		if seen[remote.IdentityKey] {
			tr.Duplicates++
			logger.Warn("reconcile %s: duplicate identity key %s in snapshot, keeping the most recent row",
				spec.Name, remote.IdentityKey)
			continue
		}
		seen[remote.IdentityKey] = true

		r.apply(ctx, store, spec, byKey[remote.IdentityKey], remote, &tr)
	}

	// Local-only records.
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return tr, err
		}
		if seen[key] {
			continue
		}
		local := byKey[key]
		if err := store.Create(ctx, spec, *local); err != nil {
			tr.Errors++
			logger.Warn("reconcile %s: create %s remotely: %v", spec.Name, key, err)
			continue
		}
		tr.Created++
	}

	logger.Info("reconcile %s: fetched %d, inserted %d, pulled %d, pushed %d, created %d",
		spec.Name, tr.Fetched, tr.Inserted, tr.Pulled, tr.Pushed, tr.Created)

	if tr.LocalChanges() > 0 && r.notifier != nil {
		r.notifier.Publish(domain.Event{Type: domain.EventTableChanged, Table: spec.Name, Timestamp: r.now()})
	}
	return tr, nil
}

// apply carries out the last-writer-wins decision for one identity key.
func (r *Reconciler) apply(
	ctx context.Context,
	store driven.RemoteStore,
	spec domain.TableSpec,
	local *domain.Record,
	remote domain.Record,
	tr *domain.TableResult,
) {
	decision := domain.Decide(local, &remote)
	switch decision {
	case domain.DecisionInsertLocal:
		if _, err := r.records.Create(ctx, spec.Name, remote); err != nil {
			tr.Errors++
			logger.Warn("reconcile %s: insert %s locally: %v", spec.Name, remote.IdentityKey, err)
			return
		}
		tr.Inserted++

	case domain.DecisionPull:
		ok, err := r.records.Update(ctx, spec.Name, local.ApplyRemote(remote))
		if err == nil && !ok {
			err = domain.ErrNotFound
		}
		if err != nil {
			tr.Errors++
			logger.Warn("reconcile %s: pull %s: %v", spec.Name, remote.IdentityKey, err)
			return
		}
		tr.Pulled++

	case domain.DecisionPush:
		if err := store.Update(ctx, spec, *local); err != nil {
			tr.Errors++
			logger.Warn("reconcile %s: push %s: %v", spec.Name, remote.IdentityKey, err)
			return
		}
		tr.Pushed++

	default:
		tr.Unchanged++
		if domain.SameTick(local, &remote) {
			logger.Debug("reconcile %s: %s has the same timestamp on both sides, left as is",
				spec.Name, remote.IdentityKey)
		}
	}
}

// fetchAll reads the remote table with linear backoff between attempts.
func (r *Reconciler) fetchAll(
	ctx context.Context,
	store driven.RemoteStore,
	policy domain.RetrySettings,
	spec domain.TableSpec,
) ([]json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= policy.FetchAttempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, time.Duration(attempt-1)*policy.FetchBaseDelay); err != nil {
				return nil, err
			}
		}
		rows, err := store.FetchAll(ctx, spec)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !domain.IsRetryable(err) {
			return nil, err
		}
		logger.Debug("reconcile %s: fetch attempt %d/%d: %v", spec.Name, attempt, policy.FetchAttempts, err)
	}
	return nil, lastErr
}

// indexLocal maps identity keys to the most recently updated local record and
// returns the keys in first-seen order.
func indexLocal(spec domain.TableSpec, locals []domain.Record, tr *domain.TableResult) (map[string]*domain.Record, []string) {
	byKey := make(map[string]*domain.Record, len(locals))
	var keys []string
	for i := range locals {
		rec := &locals[i]
		if rec.IdentityKey == "" {
			rec.IdentityKey = rec.Fields.String(spec.IdentityField)
		}
		if rec.IdentityKey == "" {
			tr.MissingIdentity++
			logger.Warn("reconcile %s: local record %s has no %s, skipping", spec.Name, rec.ID, spec.IdentityField)
			continue
		}
		cur, ok := byKey[rec.IdentityKey]
		if !ok {
			byKey[rec.IdentityKey] = rec
			keys = append(keys, rec.IdentityKey)
			continue
		}
		if rec.UpdatedAt.After(cur.UpdatedAt) {
			byKey[rec.IdentityKey] = rec
		}
	}
	return byKey, keys
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
