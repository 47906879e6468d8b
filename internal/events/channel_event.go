package events

import (
	"sync"
)

type subscriber[T any] struct {
	id uint64
	ch chan<- T
}

// ChannelEvent fans values out to registered channels. Sends never block:
// a subscriber whose channel is full misses that notification.
type ChannelEvent[T any] struct {
	mu         sync.Mutex
	subs       []subscriber[T]
	nextID     uint64
	replayLast bool
	last       T
	hasLast    bool
}

// NewChannelEvent creates an event. With replayLast set, each new listener
// immediately receives the most recent value once Notify has run at least
// once, so late subscribers still see current state.
func NewChannelEvent[T any](replayLast bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{replayLast: replayLast}
}

// Listen registers ch and returns the function that removes it again.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("events: nil listener channel")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs = append(e.subs, subscriber[T]{id: id, ch: ch})
	replay := e.replayLast && e.hasLast
	last := e.last
	e.mu.Unlock()

	if replay {
		select {
		case ch <- last:
		default:
		}
	}

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, sub := range e.subs {
			if sub.id == id {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify delivers value to every registered channel without blocking.
func (e *ChannelEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.replayLast {
		e.last = value
		e.hasLast = true
	}
	subs := make([]subscriber[T], len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- value:
		default:
		}
	}
}

// ListenerCount reports how many channels are currently registered.
func (e *ChannelEvent[T]) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
