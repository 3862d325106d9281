// Package typedproxy provides a strongly-typed layer over [proxy.Proxy].
//
// A typed proxy binds a key marshaler and a value marshaler to a binary
// proxy, so callers work with Go values while the underlying proxy, channel
// and store only ever see opaque bytes.
package typedproxy

import (
	"context"

	"github.com/skinsch/dbproxy/marshal"
	"github.com/skinsch/dbproxy/proxy"
	"github.com/skinsch/dbproxy/store"
)

// A Pair is a single typed key/value pair.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// A RangeFunc is a function used to range over the typed key/value pairs in a
// table.
//
// If err is non-nil, ranging stops and err is propagated up the stack.
// Otherwise, if ok is false, ranging stops without any error being
// propagated.
type RangeFunc[K comparable, V any] func(context.Context, K, V) (ok bool, err error)

// Proxy is a mapping-like access object over keys of type K and values of
// type V.
type Proxy[K comparable, V any] struct {
	next   *proxy.Proxy
	keys   marshal.Marshaler[K]
	values marshal.Marshaler[V]
}

// New returns a typed proxy that marshals keys and values onto p.
func New[K comparable, V any](
	p *proxy.Proxy,
	keys marshal.Marshaler[K],
	values marshal.Marshaler[V],
) *Proxy[K, V] {
	return &Proxy[K, V]{
		next:   p,
		keys:   keys,
		values: values,
	}
}

// Contains returns true if the table contains the given key.
func (p *Proxy[K, V]) Contains(ctx context.Context, k K) (bool, error) {
	data, err := p.keys.Marshal(k)
	if err != nil {
		return false, err
	}

	return p.next.Contains(ctx, data)
}

// Has returns true if the table contains the given key.
func (p *Proxy[K, V]) Has(ctx context.Context, k K) (bool, error) {
	data, err := p.keys.Marshal(k)
	if err != nil {
		return false, err
	}

	return p.next.Has(ctx, data)
}

// Get returns the value associated with the given key.
//
// It returns a [store.NotFoundError] if the key is absent.
func (p *Proxy[K, V]) Get(ctx context.Context, k K) (V, error) {
	var zero V

	keyData, err := p.keys.Marshal(k)
	if err != nil {
		return zero, err
	}

	valueData, err := p.next.Get(ctx, keyData)
	if err != nil {
		return zero, err
	}

	return p.values.Unmarshal(valueData)
}

// GetDefault returns the value associated with the given key, or def if the
// key is absent. The table is not modified.
func (p *Proxy[K, V]) GetDefault(ctx context.Context, k K, def V) (V, error) {
	var zero V

	keyData, err := p.keys.Marshal(k)
	if err != nil {
		return zero, err
	}

	defData, err := p.values.Marshal(def)
	if err != nil {
		return zero, err
	}

	valueData, err := p.next.GetDefault(ctx, keyData, defData)
	if err != nil {
		return zero, err
	}

	return p.values.Unmarshal(valueData)
}

// Set associates the given value with the given key, replacing any existing
// value.
func (p *Proxy[K, V]) Set(ctx context.Context, k K, v V) error {
	keyData, err := p.keys.Marshal(k)
	if err != nil {
		return err
	}

	valueData, err := p.values.Marshal(v)
	if err != nil {
		return err
	}

	return p.next.Set(ctx, keyData, valueData)
}

// SetDefault returns the value associated with the given key, first
// associating def with it if the key is absent.
func (p *Proxy[K, V]) SetDefault(ctx context.Context, k K, def V) (V, error) {
	var zero V

	keyData, err := p.keys.Marshal(k)
	if err != nil {
		return zero, err
	}

	defData, err := p.values.Marshal(def)
	if err != nil {
		return zero, err
	}

	valueData, err := p.next.SetDefault(ctx, keyData, defData)
	if err != nil {
		return zero, err
	}

	return p.values.Unmarshal(valueData)
}

// Delete removes the given key and its value from the table.
//
// It returns a [store.NotFoundError] if the key is absent.
func (p *Proxy[K, V]) Delete(ctx context.Context, k K) error {
	keyData, err := p.keys.Marshal(k)
	if err != nil {
		return err
	}

	return p.next.Delete(ctx, keyData)
}

// Update associates every pair in the given sequence with the table, in
// order, replacing any existing values.
func (p *Proxy[K, V]) Update(ctx context.Context, pairs []Pair[K, V]) error {
	data := make([]store.Pair, len(pairs))

	for i, pr := range pairs {
		keyData, err := p.keys.Marshal(pr.Key)
		if err != nil {
			return err
		}

		valueData, err := p.values.Marshal(pr.Value)
		if err != nil {
			return err
		}

		data[i] = store.Pair{Key: keyData, Value: valueData}
	}

	return p.next.Update(ctx, data)
}

// Len returns the number of key/value pairs in the table.
func (p *Proxy[K, V]) Len(ctx context.Context) (int, error) {
	return p.next.Len(ctx)
}

// Keys returns every key in the table, in iteration order.
func (p *Proxy[K, V]) Keys(ctx context.Context) ([]K, error) {
	data, err := p.next.Keys(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]K, len(data))
	for i, d := range data {
		if keys[i], err = p.keys.Unmarshal(d); err != nil {
			return nil, err
		}
	}

	return keys, nil
}

// Values returns every value in the table, in iteration order.
func (p *Proxy[K, V]) Values(ctx context.Context) ([]V, error) {
	data, err := p.next.Values(ctx)
	if err != nil {
		return nil, err
	}

	values := make([]V, len(data))
	for i, d := range data {
		if values[i], err = p.values.Unmarshal(d); err != nil {
			return nil, err
		}
	}

	return values, nil
}

// Items returns every key/value pair in the table, in iteration order.
func (p *Proxy[K, V]) Items(ctx context.Context) ([]Pair[K, V], error) {
	data, err := p.next.Items(ctx)
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair[K, V], len(data))
	for i, d := range data {
		if pairs[i], err = p.unmarshalPair(d); err != nil {
			return nil, err
		}
	}

	return pairs, nil
}

// Range invokes fn once for each key/value pair in the table, in iteration
// order, until fn returns false or a non-nil error.
func (p *Proxy[K, V]) Range(ctx context.Context, fn RangeFunc[K, V]) error {
	return p.next.Range(
		ctx,
		func(ctx context.Context, d store.Pair) (bool, error) {
			pr, err := p.unmarshalPair(d)
			if err != nil {
				return false, err
			}

			return fn(ctx, pr.Key, pr.Value)
		},
	)
}

// Pop removes the given key from the table and returns the value that was
// associated with it.
//
// It returns a [store.NotFoundError] if the key is absent.
func (p *Proxy[K, V]) Pop(ctx context.Context, k K) (V, error) {
	var zero V

	keyData, err := p.keys.Marshal(k)
	if err != nil {
		return zero, err
	}

	valueData, err := p.next.Pop(ctx, keyData)
	if err != nil {
		return zero, err
	}

	return p.values.Unmarshal(valueData)
}

// PopItem removes an arbitrary key/value pair from the table and returns it.
//
// It returns a [store.NotFoundError] if the table is empty.
func (p *Proxy[K, V]) PopItem(ctx context.Context) (Pair[K, V], error) {
	d, err := p.next.PopItem(ctx)
	if err != nil {
		return Pair[K, V]{}, err
	}

	return p.unmarshalPair(d)
}

// Copy returns a detached snapshot of the table's contents as a concrete map.
//
// Mutating the returned map has no effect on the table.
func (p *Proxy[K, V]) Copy(ctx context.Context) (map[K]V, error) {
	pairs, err := p.Items(ctx)
	if err != nil {
		return nil, err
	}

	m := make(map[K]V, len(pairs))
	for _, pr := range pairs {
		m[pr.Key] = pr.Value
	}

	return m, nil
}

// Acquire blocks until the lock for the proxy's (schema, table) pair is held
// by the caller.
func (p *Proxy[K, V]) Acquire() {
	p.next.Acquire()
}

// Release releases the lock for the proxy's (schema, table) pair.
func (p *Proxy[K, V]) Release() {
	p.next.Release()
}

// Locked invokes fn while holding the lock for the proxy's (schema, table)
// pair. The lock is released on every exit path.
func (p *Proxy[K, V]) Locked(fn func() error) error {
	return p.next.Locked(fn)
}

func (p *Proxy[K, V]) unmarshalPair(d store.Pair) (Pair[K, V], error) {
	k, err := p.keys.Unmarshal(d.Key)
	if err != nil {
		return Pair[K, V]{}, err
	}

	v, err := p.values.Unmarshal(d.Value)
	if err != nil {
		return Pair[K, V]{}, err
	}

	return Pair[K, V]{Key: k, Value: v}, nil
}
