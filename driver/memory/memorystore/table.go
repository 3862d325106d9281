package memorystore

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/skinsch/dbproxy/store"
)

// state is the in-memory state of a table, shared by every open handle.
//
// order tracks insertion order; a key keeps its position when its value is
// replaced and re-enters at the back when re-inserted after deletion.
type state struct {
	sync.RWMutex
	values map[string][]byte
	order  []string
}

// handle is an implementation of [store.Table] that manipulates a table's
// in-memory [state].
type handle struct {
	schema string
	name   string
	state  *state
}

func (h *handle) Schema() string {
	return h.schema
}

func (h *handle) Name() string {
	return h.name
}

func (h *handle) Get(ctx context.Context, k []byte) ([]byte, bool, error) {
	if h.state == nil {
		panic("table is closed")
	}

	h.state.RLock()
	defer h.state.RUnlock()

	v, ok := h.state.values[string(k)]
	if !ok {
		return nil, false, ctx.Err()
	}

	return slices.Clone(v), true, ctx.Err()
}

func (h *handle) Has(ctx context.Context, k []byte) (bool, error) {
	if h.state == nil {
		panic("table is closed")
	}

	h.state.RLock()
	defer h.state.RUnlock()

	_, ok := h.state.values[string(k)]
	return ok, ctx.Err()
}

func (h *handle) Set(ctx context.Context, k, v []byte) error {
	if h.state == nil {
		panic("table is closed")
	}

	h.state.Lock()
	defer h.state.Unlock()

	key := string(k)

	if _, ok := h.state.values[key]; !ok {
		h.state.order = append(h.state.order, key)
	}

	if h.state.values == nil {
		h.state.values = map[string][]byte{}
	}

	h.state.values[key] = slices.Clone(v)

	return ctx.Err()
}

func (h *handle) Delete(ctx context.Context, k []byte) (bool, error) {
	if h.state == nil {
		panic("table is closed")
	}

	h.state.Lock()
	defer h.state.Unlock()

	key := string(k)

	if _, ok := h.state.values[key]; !ok {
		return false, ctx.Err()
	}

	delete(h.state.values, key)
	h.state.order = slices.DeleteFunc(
		h.state.order,
		func(o string) bool {
			return o == key
		},
	)

	return true, ctx.Err()
}

func (h *handle) Len(ctx context.Context) (int, error) {
	if h.state == nil {
		panic("table is closed")
	}

	h.state.RLock()
	defer h.state.RUnlock()

	return len(h.state.values), ctx.Err()
}

func (h *handle) Range(ctx context.Context, fn store.RangeFunc) error {
	if h.state == nil {
		panic("table is closed")
	}

	// Take a snapshot so that fn may mutate the table while ranging.
	h.state.RLock()
	order := slices.Clone(h.state.order)
	values := make(map[string][]byte, len(h.state.values))
	for k, v := range h.state.values {
		values[k] = v
	}
	h.state.RUnlock()

	for _, k := range order {
		ok, err := fn(ctx, []byte(k), slices.Clone(values[k]))
		if !ok || err != nil {
			return err
		}
	}

	return nil
}

func (h *handle) Close() error {
	if h.state == nil {
		return errors.New("table is already closed")
	}

	h.state = nil

	return nil
}
