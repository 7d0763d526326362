package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curatorapp/curator/internal/logger"
)

// EventBus is the interface for publishing and subscribing to events.
type EventBus interface {
	// Publish delivers an event to all matching subscribers, blocking if the
	// bus buffer is full.
	Publish(ctx context.Context, event Event) error
	// PublishAsync delivers an event without blocking; events are dropped if
	// the bus buffer is full.
	PublishAsync(event Event)
	// Subscribe registers a handler for events matching the filter.
	Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error)
	// Unsubscribe removes a subscription by ID.
	Unsubscribe(subscriptionID string) error
	// RecentEvents returns the most recently published events, newest first.
	RecentEvents(limit int) []Event
	// Start begins event processing.
	Start(ctx context.Context) error
	// Stop halts event processing and drains the buffer.
	Stop() error
}

type eventBus struct {
	config        BusConfig
	eventChan     chan Event
	subscriptions map[string]*Subscription
	recent        []Event
	mu            sync.RWMutex
	running       bool
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewEventBus creates a new event bus with the given configuration.
func NewEventBus(config BusConfig) EventBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig().BufferSize
	}
	if config.RecentEvents <= 0 {
		config.RecentEvents = DefaultBusConfig().RecentEvents
	}
	return &eventBus{
		config:        config,
		eventChan:     make(chan Event, config.BufferSize),
		subscriptions: make(map[string]*Subscription),
		recent:        make([]Event, 0, config.RecentEvents),
	}
}

func (b *eventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return fmt.Errorf("event bus already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true
	go b.processEvents(ctx)
	logger.Debug("Event bus started (buffer=%d)", b.config.BufferSize)
	return nil
}

func (b *eventBus) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.cancel()
	done := b.done
	b.mu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("Event bus stop timed out waiting for drain")
	}
	return nil
}

func (b *eventBus) Publish(ctx context.Context, event Event) error {
	b.prepare(&event)
	select {
	case b.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *eventBus) PublishAsync(event Event) {
	b.prepare(&event)
	select {
	case b.eventChan <- event:
	default:
		logger.Warn("Event bus buffer full, dropping event type=%s", event.Type)
	}
}

func (b *eventBus) prepare(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
}

func (b *eventBus) Subscribe(filter EventFilter, handler EventHandler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("event handler cannot be nil")
	}
	sub := &Subscription{
		ID:      uuid.New().String(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}
	b.mu.Lock()
	b.subscriptions[sub.ID] = sub
	b.mu.Unlock()
	return sub, nil
}

func (b *eventBus) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscriptions[subscriptionID]; !ok {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(b.subscriptions, subscriptionID)
	return nil
}

func (b *eventBus) RecentEvents(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if limit <= 0 || limit > len(b.recent) {
		limit = len(b.recent)
	}
	out := make([]Event, limit)
	for i := 0; i < limit; i++ {
		out[i] = b.recent[len(b.recent)-1-i]
	}
	return out
}

func (b *eventBus) processEvents(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case event := <-b.eventChan:
			b.dispatch(event)
		case <-ctx.Done():
			// Drain whatever is buffered before shutting down.
			for {
				select {
				case event := <-b.eventChan:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *eventBus) dispatch(event Event) {
	b.mu.Lock()
	b.recent = append(b.recent, event)
	if len(b.recent) > b.config.RecentEvents {
		b.recent = b.recent[len(b.recent)-b.config.RecentEvents:]
	}
	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if MatchesFilter(event, sub.Filter) {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.TriggerCount++
		if err := sub.Handler(event); err != nil {
			logger.Warn("Event handler error for subscription %s: %v", sub.ID, err)
		}
	}
}
