// Package events provides the change-notification bus between the navigation
// core and its consumers. Events are coarse-grained on purpose: core state
// transitions publish here, and presentation layers subscribe, with no other
// coupling between them.
package events

import (
	"sync"
)

// Type identifies an event category.
type Type string

// Event types published by the core.
const (
	// Tree events
	TypeChildrenLoaded Type = "tree.children_loaded"
	TypeNodeEvicted    Type = "tree.node_evicted"
	TypeLoadFailed     Type = "tree.load_failed"

	// Memory events
	TypeMemoryLevel   Type = "memory.level_changed"
	TypeEvictionSweep Type = "memory.eviction_sweep"

	// Document events
	TypeDocumentChanged  Type = "document.changed"
	TypeDocumentReplaced Type = "document.replaced"
)

// An Event is one published notification.
type Event struct {
	Type Type
	Data map[string]any
}

// Handler is a function that handles events.
type Handler func(Event)

// Bus is a simple pub/sub event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe adds a handler for an event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish sends an event to all subscribed handlers. Handlers run on the
// publisher's goroutine; they must not block.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[e.Type]))
	copy(handlers, b.handlers[e.Type])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Clear removes all handlers.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Type][]Handler)
}
