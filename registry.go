package tgdispatch

import (
	"reflect"
	"sync"

	"github.com/prilive-com/tgdispatch/tg"
)

// Handler receives an inbound update. A non-nil error is logged per
// handler and never stops dispatch to the remaining handlers.
type Handler func(update tg.Update) error

// handlerRegistry is an ordered, duplicate-free collection of handlers.
// Dispatch order is insertion order. Identity is the handler's code
// pointer, so the same named function or method value registers once, and
// removal works with the value that was added. Distinct closures built
// from the same function literal share a code pointer and therefore share
// identity.
type handlerRegistry struct {
	mu       sync.RWMutex
	handlers []Handler
	index    map[uintptr]int
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{index: make(map[uintptr]int)}
}

func handlerKey(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// add registers h, ignoring duplicates. It returns the registry length
// after the call.
func (r *handlerRegistry) add(h Handler) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := handlerKey(h)
	if _, exists := r.index[key]; !exists {
		r.index[key] = len(r.handlers)
		r.handlers = append(r.handlers, h)
	}
	return len(r.handlers)
}

// remove unregisters h, preserving the order of the rest.
// It returns false when h was not registered.
func (r *handlerRegistry) remove(h Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := handlerKey(h)
	pos, exists := r.index[key]
	if !exists {
		return false
	}

	r.handlers = append(r.handlers[:pos], r.handlers[pos+1:]...)
	delete(r.index, key)
	for k, p := range r.index {
		if p > pos {
			r.index[k] = p - 1
		}
	}
	return true
}

func (r *handlerRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = nil
	r.index = make(map[uintptr]int)
}

func (r *handlerRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

func (r *handlerRegistry) empty() bool {
	return r.len() == 0
}

// snapshot returns a copy of the handlers in dispatch order, safe to
// iterate without holding the lock.
func (r *handlerRegistry) snapshot() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Handler(nil), r.handlers...)
}
