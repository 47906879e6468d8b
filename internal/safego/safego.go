package safego

import (
	"log"
	"runtime/debug"
)

// Go runs fn on its own goroutine and logs any panic with a stack trace
// before re-raising it. The curses UI owns the terminal, so a bare panic on
// stderr would be invisible; the log file keeps the evidence.
func Go(logger *log.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("PANIC: %v\n%s", r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}
