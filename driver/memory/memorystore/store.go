// Package memorystore provides an in-memory [store.Store] implementation.
//
// Iteration follows insertion order, which makes it the reference backend for
// tests that assert on ordering.
package memorystore

import (
	"context"
	"sync"

	"github.com/skinsch/dbproxy/store"
)

// Store is an in-memory implementation of [store.Store].
//
// The zero-value is ready for use.
type Store struct {
	tables sync.Map // map[string]*state
}

// Open returns the table with the given name within the given schema.
func (s *Store) Open(ctx context.Context, schema, table string) (store.Table, error) {
	k := schema + "\x00" + table

	st, ok := s.tables.Load(k)
	if !ok {
		st, _ = s.tables.LoadOrStore(k, &state{})
	}

	return &handle{
		schema: schema,
		name:   table,
		state:  st.(*state),
	}, ctx.Err()
}
