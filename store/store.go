// Package store defines the keyed-store contract that backs a proxy.
//
// A store is addressed by a (schema, table) pair: the schema selects the
// physical store instance (typically one file or database per schema) and the
// table selects an isolated namespace within it.
//
// Drivers implement only the primitive [Table] surface. The composite mapping
// operations (get-default, set-default, update, pop, and so on) are derived
// from the primitives by the dispatch table in this package, so they behave
// identically across every driver.
package store

import "context"

// A RangeFunc is a function used to range over the key/value pairs in a
// [Table].
//
// If err is non-nil, ranging stops and err is propagated up the stack.
// Otherwise, if ok is false, ranging stops without any error being propagated.
type RangeFunc func(ctx context.Context, k, v []byte) (ok bool, err error)

// A Table is an isolated collection of key/value pairs within a schema.
//
// Keys must be non-empty. Values may be empty; an empty value is stored and
// reported as present, it does not delete the key.
type Table interface {
	// Schema returns the schema the table belongs to.
	Schema() string

	// Name returns the name of the table.
	Name() string

	// Get returns the value associated with k, and whether k is present.
	Get(ctx context.Context, k []byte) (v []byte, ok bool, err error)

	// Has returns true if k is present in the table.
	Has(ctx context.Context, k []byte) (bool, error)

	// Set associates a value with k, replacing any existing value.
	Set(ctx context.Context, k, v []byte) error

	// Delete removes k from the table. It returns true if the key was
	// present.
	Delete(ctx context.Context, k []byte) (bool, error)

	// Len returns the number of key/value pairs in the table.
	Len(ctx context.Context) (int, error)

	// Range invokes fn for each key/value pair in the table, in the driver's
	// iteration order.
	Range(ctx context.Context, fn RangeFunc) error

	// Close closes the table.
	Close() error
}

// Store is a collection of tables grouped into schemas.
type Store interface {
	// Open returns the table with the given name within the given schema,
	// creating either if necessary.
	Open(ctx context.Context, schema, table string) (Table, error)
}
