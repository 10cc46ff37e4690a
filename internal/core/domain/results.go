package domain

import "time"

// DrainResult summarises one queue drain pass.
type DrainResult struct {
	// NotConfigured is set when the pass was skipped because the remote is not configured.
	NotConfigured bool

	// Attempted counts entries dispatched to the remote store.
	Attempted int

	// Done counts entries acknowledged by the remote store.
	Done int

	// Retried counts entries left PENDING after a transient failure.
	Retried int

	// Failed counts entries moved to FAILED.
	Failed int

	// Deferred counts entries still inside their backoff window.
	Deferred int

	// Superseded counts entries replaced by a newer mutation while in flight.
	// They stay PENDING for the next pass.
	Superseded int

	// StoreErrors counts entries whose local transition could not be recorded.
	StoreErrors int

	StartedAt time.Time
	EndedAt   time.Time
}

// Duration returns how long the pass took.
func (r DrainResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// TableResult summarises one table's reconciliation pass.
type TableResult struct {
	Table string

	// NotConfigured is set when the pass was skipped because the remote is not configured.
	NotConfigured bool

	// Fetched counts remote rows returned by the full-table fetch.
	Fetched int

	// Inserted counts remote-only records written locally.
	Inserted int

	// Pulled counts local records overwritten with newer remote values.
	Pulled int

	// Pushed counts remote records updated from newer local values.
	Pushed int

	// Created counts local-only records created on the remote store.
	Created int

	// Unchanged counts keys already converged.
	Unchanged int

	// Malformed counts remote rows that could not be parsed.
	Malformed int

	// Duplicates counts remote rows skipped because their identity key was already seen.
	Duplicates int

	// MissingIdentity counts local records skipped for lacking an identity key.
	MissingIdentity int

	// Errors counts per-record push or pull failures.
	Errors int

	// Aborted holds the fetch error that stopped the table pass, if any.
	Aborted string
}

// LocalChanges returns how many local rows the pass wrote.
func (r TableResult) LocalChanges() int {
	return r.Inserted + r.Pulled
}

// RemoteChanges returns how many remote writes the pass made.
func (r TableResult) RemoteChanges() int {
	return r.Pushed + r.Created
}

// ReconcileResult summarises a reconciliation pass over every table.
type ReconcileResult struct {
	NotConfigured bool
	Tables        []TableResult
	StartedAt     time.Time
	EndedAt       time.Time
}

// Totals folds the per-table counters into one TableResult with an empty name.
func (r ReconcileResult) Totals() TableResult {
	var t TableResult
	for _, tr := range r.Tables {
		t.Fetched += tr.Fetched
		t.Inserted += tr.Inserted
		t.Pulled += tr.Pulled
		t.Pushed += tr.Pushed
		t.Created += tr.Created
		t.Unchanged += tr.Unchanged
		t.Malformed += tr.Malformed
		t.Duplicates += tr.Duplicates
		t.MissingIdentity += tr.MissingIdentity
		t.Errors += tr.Errors
	}
	return t
}

// Duration returns how long the pass took.
func (r ReconcileResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SyncStatus is a point-in-time view for status indicators.
type SyncStatus struct {
	Configured    bool
	Source        SettingsSource
	Queue         QueueStats
	LastDrain     *DrainResult
	LastReconcile *ReconcileResult
	Tasks         []*ScheduledTask
}
