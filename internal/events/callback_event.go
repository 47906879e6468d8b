package events

import (
	"sync"
)

type callbackSub[T any] struct {
	id uint64
	fn func(T)
}

// CallbackEvent fans values out to registered callbacks. Unlike ChannelEvent
// the delivery is synchronous: Notify returns after every callback has run,
// so callbacks must not block or call back into the event.
type CallbackEvent[T any] struct {
	mu         sync.Mutex
	subs       []callbackSub[T]
	nextID     uint64
	replayLast bool
	last       T
	hasLast    bool
}

// NewCallbackEvent creates an event. With replayLast set, a new listener is
// invoked immediately with the most recent value once Notify has run at
// least once.
func NewCallbackEvent[T any](replayLast bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{replayLast: replayLast}
}

// Listen registers fn and returns the function that removes it again.
func (e *CallbackEvent[T]) Listen(fn func(T)) func() {
	if fn == nil {
		panic("events: nil listener callback")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs = append(e.subs, callbackSub[T]{id: id, fn: fn})
	replay := e.replayLast && e.hasLast
	last := e.last
	e.mu.Unlock()

	if replay {
		fn(last)
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

// Notify invokes every registered callback with value. Callbacks run outside
// the lock, so listeners may register or unregister from other goroutines
// while a notification is in flight.
func (e *CallbackEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.replayLast {
		e.last = value
		e.hasLast = true
	}
	subs := make([]callbackSub[T], len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, sub := range subs {
		sub.fn(value)
	}
}

// ListenerCount reports how many callbacks are currently registered.
func (e *CallbackEvent[T]) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
