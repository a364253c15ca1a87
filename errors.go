package tgdispatch

import "errors"

// Sentinel errors - use with errors.Is()
var (
	// ErrNotInitialized is returned by operations that need an active
	// dispatcher before Initialize has completed (or after Shutdown).
	ErrNotInitialized = errors.New("tgdispatch: not initialized, call Initialize first")

	// ErrShutdownTimeout is returned when a loop does not stop within the
	// bounded shutdown wait. The loop keeps winding down in the background.
	ErrShutdownTimeout = errors.New("tgdispatch: loop did not stop within shutdown timeout")
)
