package tgdispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tgdispatch/tg"
)

func noopA(tg.Update) error { return nil }
func noopB(tg.Update) error { return nil }
func noopC(tg.Update) error { return nil }

func TestRegistry_Add_ReturnsCount(t *testing.T) {
	r := newHandlerRegistry()

	assert.Equal(t, 1, r.add(noopA))
	assert.Equal(t, 2, r.add(noopB))
	assert.Equal(t, 2, r.len())
}

func TestRegistry_Add_DuplicateIsNoop(t *testing.T) {
	r := newHandlerRegistry()

	r.add(noopA)
	assert.Equal(t, 1, r.add(noopA))
	assert.Equal(t, 1, r.len())
}

func TestRegistry_Remove_PreservesOrder(t *testing.T) {
	r := newHandlerRegistry()
	r.add(noopA)
	r.add(noopB)
	r.add(noopC)

	require.True(t, r.remove(noopB))

	snap := r.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, handlerKey(noopA), handlerKey(snap[0]))
	assert.Equal(t, handlerKey(noopC), handlerKey(snap[1]))

	// Keys of survivors still resolve, so a later remove works.
	require.True(t, r.remove(noopC))
	assert.Equal(t, 1, r.len())
}

func TestRegistry_Remove_AbsentReturnsFalse(t *testing.T) {
	r := newHandlerRegistry()
	r.add(noopA)

	assert.False(t, r.remove(noopB))
	assert.Equal(t, 1, r.len())
}

func TestRegistry_Clear_EmptiesRegistry(t *testing.T) {
	r := newHandlerRegistry()
	r.add(noopA)
	r.add(noopB)

	r.clear()

	assert.True(t, r.empty())
	assert.Empty(t, r.snapshot())

	// The registry stays usable after clearing.
	assert.Equal(t, 1, r.add(noopA))
}

func TestRegistry_MethodValue_RegistersOnce(t *testing.T) {
	r := newHandlerRegistry()
	var rec recorder

	r.add(rec.record)
	r.add(rec.record)

	assert.Equal(t, 1, r.len())
	assert.True(t, r.remove(rec.record))
	assert.True(t, r.empty())
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	r := newHandlerRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.add(noopA)
			r.add(noopB)
			r.remove(noopA)
			r.snapshot()
		}()
	}
	wg.Wait()

	assert.False(t, r.empty())
	assert.True(t, r.remove(noopB))
}

// recorder collects updates for assertions in dispatcher tests.
type recorder struct {
	mu      sync.Mutex
	updates []tg.Update
}

func (r *recorder) record(u tg.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *recorder) seen() []tg.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tg.Update{}, r.updates...)
}
