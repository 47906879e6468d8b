package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
		panic("unreachable")
	}
}

func assertNothing[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value: %v", v)
	default:
	}
}

func TestChannelEvent_NotifyReachesListeners(t *testing.T) {
	event := NewChannelEvent[string](false)

	ch1 := make(chan string, 4)
	ch2 := make(chan string, 4)
	stop1 := event.Listen(ch1)
	stop2 := event.Listen(ch2)
	assert.Equal(t, 2, event.ListenerCount())

	event.Notify("hello")
	assert.Equal(t, "hello", recvOne(t, ch1))
	assert.Equal(t, "hello", recvOne(t, ch2))

	stop1()
	assert.Equal(t, 1, event.ListenerCount())
	event.Notify("again")
	assertNothing(t, ch1)
	assert.Equal(t, "again", recvOne(t, ch2))

	stop2()
	assert.Equal(t, 0, event.ListenerCount())
}

func TestChannelEvent_UnregisterIsIdempotent(t *testing.T) {
	event := NewChannelEvent[int](false)

	stopA := event.Listen(make(chan int, 1))
	stopB := event.Listen(make(chan int, 1))

	stopA()
	stopA()
	assert.Equal(t, 1, event.ListenerCount())
	stopB()
	assert.Equal(t, 0, event.ListenerCount())
}

func TestChannelEvent_ReplayLast(t *testing.T) {
	event := NewChannelEvent[int](true)

	// Nothing notified yet, so a new listener gets nothing.
	early := make(chan int, 1)
	stopEarly := event.Listen(early)
	assertNothing(t, early)

	event.Notify(7)
	assert.Equal(t, 7, recvOne(t, early))

	// A listener registered after Notify receives the last value at once.
	late := make(chan int, 1)
	stopLate := event.Listen(late)
	assert.Equal(t, 7, recvOne(t, late))

	stopEarly()
	stopLate()
}

func TestChannelEvent_NoReplayWithoutOption(t *testing.T) {
	event := NewChannelEvent[int](false)
	event.Notify(1)

	ch := make(chan int, 1)
	stop := event.Listen(ch)
	defer stop()
	assertNothing(t, ch)

	event.Notify(2)
	assert.Equal(t, 2, recvOne(t, ch))
}

func TestChannelEvent_FullChannelSkipped(t *testing.T) {
	event := NewChannelEvent[string](false)

	ch := make(chan string, 1)
	stop := event.Listen(ch)
	defer stop()

	ch <- "occupied"
	event.Notify("dropped")
	require.Equal(t, 1, len(ch))
	assert.Equal(t, "occupied", <-ch)

	event.Notify("delivered")
	assert.Equal(t, "delivered", recvOne(t, ch))
}

func TestChannelEvent_NilChannelPanics(t *testing.T) {
	event := NewChannelEvent[string](false)
	assert.Panics(t, func() { event.Listen(nil) })
}

func TestChannelEvent_ConcurrentNotify(t *testing.T) {
	event := NewChannelEvent[int](false)

	const listeners = 8
	const notifies = 20

	channels := make([]chan int, listeners)
	stops := make([]func(), listeners)
	for i := range channels {
		channels[i] = make(chan int, notifies)
		stops[i] = event.Listen(channels[i])
	}

	var wg sync.WaitGroup
	wg.Add(notifies)
	for i := 0; i < notifies; i++ {
		go func(v int) {
			defer wg.Done()
			event.Notify(v)
		}(i)
	}
	wg.Wait()

	for i, ch := range channels {
		require.Equalf(t, notifies, len(ch), "listener %d", i)
	}

	for _, stop := range stops {
		stop()
	}
	assert.Equal(t, 0, event.ListenerCount())
}
