package service

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/theredcat/heimdall/internal/domain"
	"github.com/theredcat/heimdall/internal/metrics"
)

// EventType defines the type of event
type EventType string

const (
	EventTopologyChanged EventType = "topology_changed"
	EventActionCompleted EventType = "action_completed"
	EventOptionsChanged  EventType = "options_changed"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// TopologyChanged is the payload of EventTopologyChanged
type TopologyChanged struct {
	Topology *domain.Topology `json:"topology"`
	Graph    *domain.Graph    `json:"graph"`
}

// ActionCompleted is the payload of EventActionCompleted
type ActionCompleted struct {
	HostID string              `json:"host_id"`
	Action domain.Action       `json:"action"`
	Status domain.ActionStatus `json:"status"`
	Error  string              `json:"error,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	next        int
	subscribers map[int]chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[int]chan<- Event),
	}
}

// Subscribe adds a subscriber to receive events. The returned function
// removes it again; ch is never closed by the bus.
func (eb *EventBus) Subscribe(ch chan<- Event) (unsubscribe func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.next
	eb.next++
	eb.subscribers[id] = ch

	var once sync.Once
	return func() {
		once.Do(func() {
			eb.mu.Lock()
			delete(eb.subscribers, id)
			eb.mu.Unlock()
		})
	}
}

// Publish sends an event to all subscribers. A subscriber whose buffer is
// full misses the event; the drop is logged and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for id, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			metrics.RecordDroppedEvent(string(event.Type))
			log.Debug().Int("subscriber", id).Str("event", string(event.Type)).Msg("Dropped event for slow subscriber")
		}
	}
}

// Len returns the number of subscribers
func (eb *EventBus) Len() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}
