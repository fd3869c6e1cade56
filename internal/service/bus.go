package service

import (
	"sync"
	"sync/atomic"

	"github.com/joeblew999/plat-pyro/internal/scene"
)

// Event resources.
const (
	ResourceScene   = "scene"
	ResourcePalette = "palette"
)

// busBuffer is per subscriber. A drag streams one scene event per move.
const busBuffer = 64

// Event is one change announced to editor streams.
type Event struct {
	Resource string   // ResourceScene or ResourcePalette
	Action   string   // scene.ChangeKind for scenes; created, updated or deleted for palette
	IDs      []string // may be empty
}

// EventBus fans events out to every editor stream.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	dropped atomic.Int64
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish never blocks. A subscriber with a full buffer misses the event;
// the editor repaints from the store on its next event anyway.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, busBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe closes ch. Calling it twice is harmless.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts events lost to full subscriber buffers.
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// PublishScene forwards every store change onto the bus.
func PublishScene(store *scene.Store, bus *EventBus) {
	store.Subscribe(func(c scene.Change) {
		bus.Publish(Event{Resource: ResourceScene, Action: string(c.Kind), IDs: c.IDs})
	})
}
