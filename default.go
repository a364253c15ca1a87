package tgdispatch

import "sync"

var (
	defaultMu sync.Mutex
	defaultD  *Dispatcher
)

// Default returns the process-wide shared Dispatcher, creating it on
// first use. Every caller in the process sees the same instance, so an
// Initialize performed by one component serves them all.
func Default() *Dispatcher {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultD == nil {
		defaultD = New()
	}
	return defaultD
}

// ResetDefault tears down the shared Dispatcher and discards it, so the
// next Default call builds a fresh one. Intended for test isolation.
func ResetDefault() {
	defaultMu.Lock()
	d := defaultD
	defaultD = nil
	defaultMu.Unlock()

	if d != nil {
		d.Reset()
	}
}
