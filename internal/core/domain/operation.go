package domain

import (
	"fmt"
	"time"
)

// OperationKind is the kind of local mutation a queue entry replays.
type OperationKind string

// Operation kinds.
const (
	OperationInsert OperationKind = "INSERT"
	OperationUpdate OperationKind = "UPDATE"
	OperationDelete OperationKind = "DELETE"
)

// Valid reports whether k is one of the known operation kinds.
func (k OperationKind) Valid() bool {
	switch k {
	case OperationInsert, OperationUpdate, OperationDelete:
		return true
	default:
		return false
	}
}

// ParseOperationKind converts a stored string into an OperationKind.
func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// OperationStatus is the lifecycle state of a queue entry.
type OperationStatus string

// Operation statuses.
const (
	StatusPending OperationStatus = "PENDING"
	StatusFailed  OperationStatus = "FAILED"
	StatusDone    OperationStatus = "DONE"
)

// SyncOperation is a queued local mutation awaiting propagation to the remote store.
//
// At most one PENDING entry exists per (Table, RecordID): a newer mutation of the
// same record replaces the pending payload instead of appending a second entry.
type SyncOperation struct {
	// ID is the local auto-increment identifier.
	ID int64

	// Table is the synced table name.
	Table string

	// RecordID is the local primary key, normalised to a string.
	RecordID string

	// Kind is the mutation to replay.
	Kind OperationKind

	// Payload holds the record fields keyed by domain field name.
	Payload Fields

	// Status is the lifecycle state.
	Status OperationStatus

	// Attempts counts remote dispatches that failed transiently.
	Attempts int

	// CreatedAt is when the entry was first enqueued. Coalescing keeps it.
	CreatedAt time.Time

	// LastAttemptedAt is when the entry was last dispatched. Zero if never.
	LastAttemptedAt time.Time

	// LastError holds the message of the most recent failure.
	LastError string

	// UpdatedAt is when the entry last changed state.
	UpdatedAt time.Time

	// Revision increments whenever a newer mutation replaces the payload.
	// Status transitions only apply to the revision that was dispatched.
	Revision int
}

// Key returns the coalescing key of the entry.
func (o *SyncOperation) Key() string {
	return o.Table + "/" + o.RecordID
}

// NextAttemptAt returns the earliest time the entry may be dispatched again
// under linear backoff: LastAttemptedAt + base × Attempts.
func (o *SyncOperation) NextAttemptAt(base time.Duration) time.Time {
	if o.Attempts == 0 || o.LastAttemptedAt.IsZero() {
		return time.Time{}
	}
	return o.LastAttemptedAt.Add(base * time.Duration(o.Attempts))
}

// Due reports whether the entry is outside its backoff window at now.
func (o *SyncOperation) Due(now time.Time, base time.Duration) bool {
	next := o.NextAttemptAt(base)
	return next.IsZero() || !now.Before(next)
}

// QueueStats counts queue entries per status.
type QueueStats struct {
	Pending int
	Failed  int
	Done    int
}

// Total returns the number of entries across all statuses.
func (s QueueStats) Total() int {
	return s.Pending + s.Failed + s.Done
}
