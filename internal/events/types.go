// Package events provides the in-process event bus the scan pipeline
// publishes its lifecycle events into. Transports (websocket feed) subscribe
// to the bus; the pipeline itself never talks to a transport directly.
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Scan lifecycle events
	EventScanStarted   EventType = "scan.started"
	EventScanProgress  EventType = "scan.progress"
	EventScanCompleted EventType = "scan.completed"
	EventScanError     EventType = "scan.error"
	EventScanResumed   EventType = "scan.resumed"

	// Metadata enrichment events
	EventMetadataStarted   EventType = "metadata.started"
	EventMetadataCompleted EventType = "metadata.completed"

	// Library watcher events
	EventLibraryFileChanged EventType = "library.file.changed"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"

	// General events
	EventInfo    EventType = "info"
	EventWarning EventType = "warning"
	EventError   EventType = "error"
)

// Event represents a system event.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler is a function that handles events.
type EventHandler func(event Event) error

// EventFilter selects events for a subscription. Empty fields match
// everything.
type EventFilter struct {
	Types   []EventType `json:"types,omitempty"`
	Sources []string    `json:"sources,omitempty"`
}

// Subscription represents an event subscription.
type Subscription struct {
	ID           string       `json:"id"`
	Filter       EventFilter  `json:"filter"`
	Handler      EventHandler `json:"-"`
	Created      time.Time    `json:"created"`
	TriggerCount int64        `json:"trigger_count"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	BufferSize   int `json:"buffer_size"`
	RecentEvents int `json:"recent_events"`
}

// DefaultBusConfig returns the default bus configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		BufferSize:   1000,
		RecentEvents: 100,
	}
}

// MatchesFilter reports whether an event matches a subscription filter.
func MatchesFilter(event Event, filter EventFilter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Sources) > 0 {
		found := false
		for _, s := range filter.Sources {
			if event.Source == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
