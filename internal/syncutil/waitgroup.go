// Package syncutil provides synchronization utilities.
package syncutil

import (
	"sync"
	"time"
)

// Go spawns a goroutine tracked by wg.
// Provides WaitGroup.Go() ergonomics without stdlib dependency.
//
// Usage:
//
//	var wg sync.WaitGroup
//	syncutil.Go(&wg, func() {
//	    // work
//	})
//	wg.Wait()
func Go(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

// WaitTimeout waits for wg up to the given timeout.
// It returns true if the group finished, false if the timeout elapsed first.
// On timeout the tracked goroutines keep running; the caller only stops
// waiting for them.
func WaitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
