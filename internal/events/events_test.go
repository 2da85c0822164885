package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesOnlyMatchingSubscribers(t *testing.T) {
	bus := NewBus()

	var loaded, evicted int
	bus.Subscribe(TypeChildrenLoaded, func(Event) { loaded++ })
	bus.Subscribe(TypeNodeEvicted, func(Event) { evicted++ })

	bus.Publish(Event{Type: TypeChildrenLoaded})
	bus.Publish(Event{Type: TypeChildrenLoaded})
	bus.Publish(Event{Type: TypeMemoryLevel})

	assert.Equal(t, 2, loaded)
	assert.Equal(t, 0, evicted)
}

func TestMultipleSubscribersSameType(t *testing.T) {
	bus := NewBus()

	var a, b int
	bus.Subscribe(TypeEvictionSweep, func(Event) { a++ })
	bus.Subscribe(TypeEvictionSweep, func(Event) { b++ })

	bus.Publish(Event{Type: TypeEvictionSweep, Data: map[string]any{"evicted": 3}})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestClear(t *testing.T) {
	bus := NewBus()

	var n int
	bus.Subscribe(TypeChildrenLoaded, func(Event) { n++ })
	bus.Clear()
	bus.Publish(Event{Type: TypeChildrenLoaded})
	assert.Equal(t, 0, n)
}
