package wizard

import "sync"

// Event is a typed wizard notification.
type Event interface {
	eventName() string
}

// FieldChanged fires on every answer change.
type FieldChanged struct {
	Field string
	Value string
}

func (FieldChanged) eventName() string { return "field_changed" }

// StepChanged fires on every step transition, including Reset.
type StepChanged struct {
	From Step
	To   Step
}

func (StepChanged) eventName() string { return "step_changed" }

// VerdictReceived fires when a server verification verdict arrives.
type VerdictReceived struct {
	Valid   bool
	Message string
}

func (VerdictReceived) eventName() string { return "verdict_received" }

// Bus is a small synchronous publish/subscribe channel for wizard events.
// Handlers run on the publisher's goroutine in subscription order.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns an unsubscribe function.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers the event to all current subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	handlers := make([]func(Event), 0, len(b.subs))
	for i := 0; i < b.next; i++ {
		if fn, ok := b.subs[i]; ok {
			handlers = append(handlers, fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(e)
	}
}
