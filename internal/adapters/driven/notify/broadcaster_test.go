package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster()
	a, cancelA := b.Subscribe(4)
	defer cancelA()
	c, cancelC := b.Subscribe(4)
	defer cancelC()

	ev := domain.Event{Type: domain.EventTableChanged, Table: "members", Timestamp: time.Now()}
	b.Publish(ev)

	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-c)
	assert.Equal(t, 2, b.Subscribers())
}

func TestBroadcaster_FullSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(domain.Event{Type: domain.EventTableChanged, Table: "a"})
	b.Publish(domain.Event{Type: domain.EventTableChanged, Table: "b"})

	got := <-ch
	assert.Equal(t, "a", got.Table)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestBroadcaster_CancelClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(0)

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())

	// Publishing with no subscribers is a no-op.
	b.Publish(domain.Event{Type: domain.EventDrainCompleted})
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)

	b.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, _ := b.Subscribe(1)
	_, ok = <-late
	require.False(t, ok, "subscriptions after Close are closed immediately")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop{}.Publish(domain.Event{}) })
}
