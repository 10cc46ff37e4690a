package domain

import "time"

// EventType names a notification published after a sync pass.
type EventType string

// Event types.
const (
	// EventTableChanged tells read-only views that a local table was rewritten.
	EventTableChanged EventType = "table.changed"

	// EventDrainCompleted carries a DrainResult.
	EventDrainCompleted EventType = "sync.drain.completed"

	// EventReconcileCompleted carries a ReconcileResult.
	EventReconcileCompleted EventType = "sync.reconcile.completed"
)

// Event is a notification fanned out to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Table     string    `json:"table,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
