package safego

import (
	"bytes"
	"log"
	"sync"
	"testing"
	"time"
)

func TestGo_RunsFunction(t *testing.T) {
	logger := log.New(&bytes.Buffer{}, "", 0)

	done := make(chan struct{})
	Go(logger, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("function never ran")
	}
}

func TestGo_ConcurrentSpawns(t *testing.T) {
	logger := log.New(&bytes.Buffer{}, "", 0)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		Go(logger, wg.Done)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all goroutines ran")
	}
}
