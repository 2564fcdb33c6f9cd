// Package events provides the in-process publish/subscribe bus that
// keeps the map, the instruction banner, and the form consistent
// without direct references to each other.
package events

import (
	"log/slog"
	"sync"
)

// TopicAll subscribes to every topic.
const TopicAll = "*"

type subscriber struct {
	id int
	fn func(topic string, payload any)
}

// Bus implements ports.EventBus. Delivery is synchronous and
// best-effort: there is no persistence, no replay, and no ordering
// guarantee between subscribers of the same event. A panicking
// subscriber is logged and skipped so one broken region cannot take
// the others down with it.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// Subscribe registers fn for a topic (or TopicAll). The returned
// function removes the subscription; calling it twice is harmless.
func (b *Bus) Subscribe(topic string, fn func(topic string, payload any)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers payload to every subscriber of topic and of
// TopicAll, synchronously on the caller's goroutine.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	list := make([]subscriber, 0, len(b.subs[topic])+len(b.subs[TopicAll]))
	list = append(list, b.subs[topic]...)
	list = append(list, b.subs[TopicAll]...)
	b.mu.RUnlock()

	for _, s := range list {
		deliver(topic, payload, s)
	}
}

func deliver(topic string, payload any, s subscriber) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked", "topic", topic, "panic", r)
		}
	}()
	s.fn(topic, payload)
}
