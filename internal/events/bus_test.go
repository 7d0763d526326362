package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) handle(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *eventRecorder) waitFor(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.events) >= n {
			out := append([]Event(nil), r.events...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, r.count())
	return nil
}

func startTestBus(t *testing.T) EventBus {
	t.Helper()
	bus := NewEventBus(DefaultBusConfig())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop() })
	return bus
}

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := startTestBus(t)
	rec := &eventRecorder{}

	_, err := bus.Subscribe(EventFilter{}, rec.handle)
	require.NoError(t, err)

	bus.PublishAsync(NewScanEvent(EventScanStarted, "Scan started", "start", nil))

	got := rec.waitFor(t, 1)
	assert.Equal(t, EventScanStarted, got[0].Type)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestBusFiltersByType(t *testing.T) {
	bus := startTestBus(t)
	rec := &eventRecorder{}

	_, err := bus.Subscribe(EventFilter{Types: []EventType{EventScanCompleted}}, rec.handle)
	require.NoError(t, err)

	bus.PublishAsync(NewScanEvent(EventScanStarted, "t", "m", nil))
	bus.PublishAsync(NewScanEvent(EventScanProgress, "t", "m", nil))
	bus.PublishAsync(NewScanEvent(EventScanCompleted, "t", "m", nil))

	got := rec.waitFor(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, EventScanCompleted, got[0].Type)
}

func TestBusFiltersBySource(t *testing.T) {
	bus := startTestBus(t)
	rec := &eventRecorder{}

	_, err := bus.Subscribe(EventFilter{Sources: []string{"scanner"}}, rec.handle)
	require.NoError(t, err)

	bus.PublishAsync(NewSystemEvent(EventSystemStarted, "t", "m"))
	bus.PublishAsync(NewScanEvent(EventScanStarted, "t", "m", nil))

	got := rec.waitFor(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "scanner", got[0].Source)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := startTestBus(t)
	rec := &eventRecorder{}

	sub, err := bus.Subscribe(EventFilter{}, rec.handle)
	require.NoError(t, err)

	bus.PublishAsync(NewScanEvent(EventScanStarted, "t", "m", nil))
	rec.waitFor(t, 1)

	require.NoError(t, bus.Unsubscribe(sub.ID))
	bus.PublishAsync(NewScanEvent(EventScanStarted, "t", "m", nil))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestBusKeepsRecentEvents(t *testing.T) {
	bus := startTestBus(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(),
			NewScanEvent(EventScanProgress, "t", "m", map[string]interface{}{"i": i})))
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(bus.RecentEvents(10)) >= 5 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	recent := bus.RecentEvents(3)
	assert.Len(t, recent, 3)
}

func TestPublishAsyncSafeWhenStopped(t *testing.T) {
	bus := NewEventBus(DefaultBusConfig())

	// Must not block or panic without a running dispatch loop.
	bus.PublishAsync(NewScanEvent(EventScanStarted, "t", "m", nil))
}

func TestMatchesFilter(t *testing.T) {
	e := Event{Type: EventScanStarted, Source: "scanner"}

	assert.True(t, MatchesFilter(e, EventFilter{}))
	assert.True(t, MatchesFilter(e, EventFilter{Types: []EventType{EventScanStarted}}))
	assert.False(t, MatchesFilter(e, EventFilter{Types: []EventType{EventScanCompleted}}))
	assert.True(t, MatchesFilter(e, EventFilter{Sources: []string{"scanner"}}))
	assert.False(t, MatchesFilter(e, EventFilter{Sources: []string{"system"}}))
}
