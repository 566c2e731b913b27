package event

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dcrane/ghostwriter/internal/logging"
)

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id        string
	eventType string
	handler   Handler
}

// Bus is a simple synchronous pub-sub event bus. It lets the job
// controller announce lifecycle transitions without knowing which hosts
// are listening.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	logger        *logging.Logger
	nextID        atomic.Uint64
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
		logger:        logging.NopLogger(),
	}
}

// SetLogger sets the logger used to report handler panics.
func (b *Bus) SetLogger(logger *logging.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if logger == nil {
		logger = logging.NopLogger()
	}
	b.logger = logger
}

// Subscribe registers a handler for a specific event type.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.generateID()
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})
	return id
}

// SubscribeAll registers a handler for all event types.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("*", handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[eventType] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to all registered handlers. Specific
// handlers are called first, then wildcard handlers, each in
// registration order. A panicking handler is recovered and logged so it
// cannot block delivery to the rest.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	eventType := event.EventType()

	specificSubs := make([]subscription, len(b.subscriptions[eventType]))
	copy(specificSubs, b.subscriptions[eventType])

	wildcardSubs := make([]subscription, len(b.subscriptions["*"]))
	copy(wildcardSubs, b.subscriptions["*"])

	logger := b.logger
	b.mu.RUnlock()

	for _, sub := range specificSubs {
		b.safeCall(logger, sub.handler, event)
	}
	for _, sub := range wildcardSubs {
		b.safeCall(logger, sub.handler, event)
	}
}

// safeCall invokes a handler and recovers from any panic.
func (b *Bus) safeCall(logger *logging.Logger, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				"event_type", event.EventType(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	handler(event)
}

// generateID creates a unique subscription ID.
func (b *Bus) generateID() string {
	id := b.nextID.Add(1)
	return string(rune('a'+id%26)) + string(rune('0'+id/26%10)) + string(rune('a'+id/260%26))
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
