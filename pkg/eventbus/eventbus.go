package eventbus

import (
	"reflect"
	"sync"
)

// Handler is a function that handles an event
type Handler func(event interface{})

// Subscription identifies a registered handler so it can be removed later.
type Subscription struct {
	eventType reflect.Type
	id        uint64
}

type entry struct {
	id uint64
	fn Handler
}

// EventBus provides in-process pub/sub keyed by event type.
// Handlers for an event type are dispatched in subscription order.
type EventBus struct {
	handlers map[reflect.Type][]entry
	nextID   uint64
	mu       sync.RWMutex
}

// New creates a new EventBus
func New() *EventBus {
	return &EventBus{
		handlers: make(map[reflect.Type][]entry),
	}
}

// keyOf normalizes pointer and value events to the same type key.
func keyOf(eventType interface{}) reflect.Type {
	t := reflect.TypeOf(eventType)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Subscribe registers a handler for a specific event type and returns a
// Subscription that can be passed to Unsubscribe.
func (e *EventBus) Subscribe(eventType interface{}, handler Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := keyOf(eventType)
	e.nextID++
	e.handlers[t] = append(e.handlers[t], entry{id: e.nextID, fn: handler})
	return Subscription{eventType: t, id: e.nextID}
}

// Unsubscribe removes a previously registered handler. A dispatch pass that is
// already in flight still delivers to the removed handler; subsequent
// publishes do not.
func (e *EventBus) Unsubscribe(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.handlers[sub.eventType]
	for i, en := range entries {
		if en.id == sub.id {
			e.handlers[sub.eventType] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// snapshot copies the handler list so that Subscribe/Unsubscribe calls made
// during dispatch do not affect the current pass.
func (e *EventBus) snapshot(event interface{}) []entry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entries := e.handlers[keyOf(event)]
	if len(entries) == 0 {
		return nil
	}
	out := make([]entry, len(entries))
	copy(out, entries)
	return out
}

// Publish publishes an event to all subscribers asynchronously. No delivery
// order is guaranteed across handlers; use PublishSync where ordering matters.
func (e *EventBus) Publish(event interface{}) {
	for _, en := range e.snapshot(event) {
		go en.fn(event)
	}
}

// PublishSync publishes an event synchronously, invoking handlers in
// subscription order before returning.
func (e *EventBus) PublishSync(event interface{}) {
	for _, en := range e.snapshot(event) {
		en.fn(event)
	}
}

// HasSubscribers returns true if there are subscribers for the event type
func (e *EventBus) HasSubscribers(eventType interface{}) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[keyOf(eventType)]) > 0
}

// SubscriberCount returns the number of subscribers for an event type
func (e *EventBus) SubscriberCount(eventType interface{}) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[keyOf(eventType)])
}
