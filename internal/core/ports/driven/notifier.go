package driven

import "github.com/rajeeshbabu/mahal-sync/internal/core/domain"

// EventNotifier publishes sync events to dependent views.
// Publish must not block the caller.
type EventNotifier interface {
	Publish(event domain.Event)
}
