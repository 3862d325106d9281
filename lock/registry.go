// Package lock provides named mutual-exclusion handles keyed by a
// (schema, table) pair.
//
// The registry is an explicit object injected into whatever needs it; there
// is no process-wide ambient registry. Two registries never share handles, so
// test isolation is a matter of constructing a fresh registry.
package lock

import "sync"

// Registry issues mutual-exclusion handles keyed by (schema, table).
//
// The zero-value is ready for use. The same Registry returns the same handle
// for the same pair for its whole lifetime, so every holder of the pair
// contends on one mutex.
type Registry struct {
	handles sync.Map // map[string]*Handle
}

// Get returns the handle for the given (schema, table) pair, creating it if
// necessary.
func (r *Registry) Get(schema, table string) *Handle {
	k := schema + "\x00" + table

	h, ok := r.handles.Load(k)
	if !ok {
		h, _ = r.handles.LoadOrStore(k, &Handle{})
	}

	return h.(*Handle)
}

// A Handle is a mutual-exclusion lock scoped to one (schema, table) pair.
type Handle struct {
	m sync.Mutex
}

// Acquire blocks until the lock is held by the caller.
func (h *Handle) Acquire() {
	h.m.Lock()
}

// Release releases the lock, making it available to the next acquirer.
func (h *Handle) Release() {
	h.m.Unlock()
}
