// Package eventbus implements a keyed publish/subscribe broadcaster.
// Subscribers attach to a key (a request identifier) and receive every
// event published under that key. Delivery is non-blocking: a slow
// subscriber drops events instead of stalling the publisher or its peers.
package eventbus

import "sync"

// Bus fans events out to per-key subscriber sets. Safe for concurrent use.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[string][]chan T
	closed bool
}

// New creates an empty Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[string][]chan T)}
}

// Publish delivers the event to every subscriber of key. A full subscriber
// channel is skipped; one stuck consumer never affects the others.
func (b *Bus[T]) Publish(key string, e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[key] {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber under key and returns its channel.
func (b *Bus[T]) Subscribe(key string) <-chan T {
	ch := make(chan T, 16)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs[key] = append(b.subs[key], ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber from key and closes its channel.
func (b *Bus[T]) Unsubscribe(key string, sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans := b.subs[key]
	for i, ch := range chans {
		if ch == sub {
			b.subs[key] = append(chans[:i], chans[i+1:]...)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Subscribers returns the number of subscribers attached to key.
func (b *Bus[T]) Subscribers(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}

// Close closes every subscriber channel and rejects further use.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = make(map[string][]chan T)
}
