// Package proxy provides a mapping-like access object over a shared keyed
// store.
//
// A [Proxy] is bound to one (schema, table) pair and executes the full set of
// mapping operations either directly against a [store.Store], or by proxying
// each operation over a [channel.Channel] to the context that owns the store.
// The execution strategy is fixed at construction and both strategies are
// observationally equivalent.
package proxy

import (
	"context"
	"fmt"

	"github.com/skinsch/dbproxy/channel"
	"github.com/skinsch/dbproxy/internal/telemetry"
	"github.com/skinsch/dbproxy/lock"
	"github.com/skinsch/dbproxy/store"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTable is the table name used when none is configured.
const DefaultTable = "unnamed"

// Proxy is a mapping-like access object bound to one (schema, table) pair.
type Proxy struct {
	schema string
	table  string
	exec   executor
	locks  *lock.Registry
	tap    bool
	rec    *telemetry.Recorder
}

// NewDirect returns a proxy that executes each operation directly against s,
// opening and closing a table handle around every call.
func NewDirect(schema string, s store.Store, options ...Option) *Proxy {
	p := newProxy(schema, options)
	p.exec = &direct{
		schema: schema,
		store:  s,
	}
	return p
}

// NewProxied returns a proxy that executes each operation by sending it over
// c to the context that owns the store for the given schema.
func NewProxied(schema string, c channel.Channel, options ...Option) *Proxy {
	p := newProxy(schema, options)
	p.exec = &proxied{
		schema:  schema,
		channel: c,
	}
	return p
}

func newProxy(schema string, options []Option) *Proxy {
	p := &Proxy{
		schema: schema,
		table:  DefaultTable,
	}

	var t telemetry.Provider
	for _, opt := range options {
		opt(p, &t)
	}

	p.rec = t.Recorder(
		"github.com/skinsch/dbproxy/proxy",
		telemetry.String("db.schema", p.schema),
		telemetry.String("db.table", p.table),
	)

	return p
}

// Option is a functional option that changes the behavior of [NewDirect] and
// [NewProxied].
type Option func(*Proxy, *telemetry.Provider)

// WithTable is an [Option] that binds the proxy to the given table instead of
// [DefaultTable].
func WithTable(name string) Option {
	return func(p *Proxy, _ *telemetry.Provider) {
		p.table = name
	}
}

// WithLocks is an [Option] that enables [Proxy.Acquire], [Proxy.Release] and
// [Proxy.Locked] against the given registry.
func WithLocks(reg *lock.Registry) Option {
	return func(p *Proxy, _ *telemetry.Provider) {
		p.locks = reg
	}
}

// WithTap is an [Option] that enables logging of every command the proxy
// executes.
func WithTap() Option {
	return func(p *Proxy, _ *telemetry.Provider) {
		p.tap = true
	}
}

// WithTelemetry is an [Option] that configures the proxy to record traces,
// metrics and logs via the given providers.
func WithTelemetry(
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	lp log.LoggerProvider,
) Option {
	return func(_ *Proxy, t *telemetry.Provider) {
		t.TracerProvider = tp
		t.MeterProvider = mp
		t.LoggerProvider = lp
	}
}

// Schema returns the schema the proxy is bound to.
func (p *Proxy) Schema() string {
	return p.schema
}

// Table returns the table the proxy is bound to.
func (p *Proxy) Table() string {
	return p.table
}

// Contains returns true if the table contains the given key.
func (p *Proxy) Contains(ctx context.Context, k []byte) (bool, error) {
	res, err := p.call(ctx, p.request(store.OpContains, k))
	return res.OK, err
}

// Has returns true if the table contains the given key.
func (p *Proxy) Has(ctx context.Context, k []byte) (bool, error) {
	res, err := p.call(ctx, p.request(store.OpHasKey, k))
	return res.OK, err
}

// Get returns the value associated with the given key.
//
// It returns a [store.NotFoundError] if the key is absent.
func (p *Proxy) Get(ctx context.Context, k []byte) ([]byte, error) {
	res, err := p.call(ctx, p.request(store.OpGet, k))
	return res.Value, err
}

// GetDefault returns the value associated with the given key, or def if the
// key is absent. The table is not modified.
func (p *Proxy) GetDefault(ctx context.Context, k, def []byte) ([]byte, error) {
	req := p.request(store.OpGetDefault, k)
	req.Default = def

	res, err := p.call(ctx, req)
	return res.Value, err
}

// Set associates the given value with the given key, replacing any existing
// value.
func (p *Proxy) Set(ctx context.Context, k, v []byte) error {
	req := p.request(store.OpSet, k)
	req.Value = v

	_, err := p.call(ctx, req)
	return err
}

// SetDefault returns the value associated with the given key, first
// associating def with it if the key is absent.
func (p *Proxy) SetDefault(ctx context.Context, k, def []byte) ([]byte, error) {
	req := p.request(store.OpSetDefault, k)
	req.Default = def

	res, err := p.call(ctx, req)
	return res.Value, err
}

// Delete removes the given key and its value from the table.
//
// It returns a [store.NotFoundError] if the key is absent.
func (p *Proxy) Delete(ctx context.Context, k []byte) error {
	_, err := p.call(ctx, p.request(store.OpDelete, k))
	return err
}

// Update associates every pair in the given sequence with the table, in
// order, replacing any existing values.
func (p *Proxy) Update(ctx context.Context, pairs []store.Pair) error {
	req := p.request(store.OpUpdate, nil)
	req.Pairs = pairs

	_, err := p.call(ctx, req)
	return err
}

// Len returns the number of key/value pairs in the table.
func (p *Proxy) Len(ctx context.Context) (int, error) {
	res, err := p.call(ctx, p.request(store.OpSize, nil))
	return res.Count, err
}

// Keys returns every key in the table, in iteration order.
func (p *Proxy) Keys(ctx context.Context) ([][]byte, error) {
	res, err := p.call(ctx, p.request(store.OpKeys, nil))
	return res.Keys, err
}

// Values returns every value in the table, in iteration order.
func (p *Proxy) Values(ctx context.Context) ([][]byte, error) {
	res, err := p.call(ctx, p.request(store.OpValues, nil))
	return res.Values, err
}

// Items returns every key/value pair in the table, in iteration order.
func (p *Proxy) Items(ctx context.Context) ([]store.Pair, error) {
	res, err := p.call(ctx, p.request(store.OpItems, nil))
	return res.Pairs, err
}

// RangeKeys invokes fn once for each key in the table, in iteration order,
// until fn returns false or a non-nil error.
func (p *Proxy) RangeKeys(
	ctx context.Context,
	fn func(ctx context.Context, k []byte) (bool, error),
) error {
	return p.stream(
		ctx,
		p.request(store.OpIterKeys, nil),
		func(ctx context.Context, pr store.Pair) (bool, error) {
			return fn(ctx, pr.Key)
		},
	)
}

// RangeValues invokes fn once for each value in the table, in iteration
// order, until fn returns false or a non-nil error.
func (p *Proxy) RangeValues(
	ctx context.Context,
	fn func(ctx context.Context, v []byte) (bool, error),
) error {
	return p.stream(
		ctx,
		p.request(store.OpIterValues, nil),
		func(ctx context.Context, pr store.Pair) (bool, error) {
			return fn(ctx, pr.Value)
		},
	)
}

// Range invokes fn once for each key/value pair in the table, in iteration
// order, until fn returns false or a non-nil error.
func (p *Proxy) Range(
	ctx context.Context,
	fn func(ctx context.Context, pr store.Pair) (bool, error),
) error {
	return p.stream(ctx, p.request(store.OpIterItems, nil), fn)
}

// Pop removes the given key from the table and returns the value that was
// associated with it.
//
// It returns a [store.NotFoundError] if the key is absent.
func (p *Proxy) Pop(ctx context.Context, k []byte) ([]byte, error) {
	res, err := p.call(ctx, p.request(store.OpPop, k))
	return res.Value, err
}

// PopItem removes an arbitrary key/value pair from the table and returns it.
//
// It returns a [store.NotFoundError] if the table is empty.
func (p *Proxy) PopItem(ctx context.Context) (store.Pair, error) {
	res, err := p.call(ctx, p.request(store.OpPopItem, nil))
	if err != nil {
		return store.Pair{}, err
	}

	return res.Pairs[0], nil
}

// Copy returns a detached snapshot of the table's contents as a concrete map.
//
// Mutating the returned map has no effect on the table.
func (p *Proxy) Copy(ctx context.Context) (map[string][]byte, error) {
	pairs, err := p.Items(ctx)
	if err != nil {
		return nil, err
	}

	m := make(map[string][]byte, len(pairs))
	for _, pr := range pairs {
		m[string(pr.Key)] = pr.Value
	}

	return m, nil
}

// Acquire blocks until the lock for the proxy's (schema, table) pair is held
// by the caller.
//
// It panics if the proxy was constructed without [WithLocks].
func (p *Proxy) Acquire() {
	p.handle().Acquire()

	if p.tap {
		p.rec.Info(
			context.Background(),
			"proxy.lock",
			fmt.Sprintf("acquired lock on %s/%s", p.schema, p.table),
		)
	}
}

// Release releases the lock for the proxy's (schema, table) pair.
//
// It panics if the proxy was constructed without [WithLocks].
func (p *Proxy) Release() {
	p.handle().Release()

	if p.tap {
		p.rec.Info(
			context.Background(),
			"proxy.lock",
			fmt.Sprintf("released lock on %s/%s", p.schema, p.table),
		)
	}
}

// Locked invokes fn while holding the lock for the proxy's (schema, table)
// pair. The lock is released on every exit path, including a panic within fn.
//
// It panics if the proxy was constructed without [WithLocks].
func (p *Proxy) Locked(fn func() error) error {
	p.Acquire()
	defer p.Release()

	return fn()
}

func (p *Proxy) handle() *lock.Handle {
	if p.locks == nil {
		panic("proxy has no lock registry: construct it with WithLocks")
	}

	return p.locks.Get(p.schema, p.table)
}

func (p *Proxy) request(op store.Op, k []byte) store.Request {
	return store.Request{
		Table: p.table,
		Op:    op,
		Key:   k,
	}
}

// call executes a non-streaming operation via the proxy's strategy.
func (p *Proxy) call(ctx context.Context, req store.Request) (store.Result, error) {
	ctx, span := p.rec.StartSpan(
		ctx,
		"proxy.call",
		telemetry.Stringer("db.operation", req.Op),
		telemetry.If(req.Key != nil, telemetry.Binary("db.key", req.Key)),
	)
	defer span.End()

	p.logCommand(ctx, req)

	res, err := p.exec.do(ctx, req)

	if err != nil && !store.IsNotFound(err) {
		p.rec.Error(ctx, "proxy.error", err)
	}

	return res, err
}

// stream executes a streaming operation via the proxy's strategy.
func (p *Proxy) stream(
	ctx context.Context,
	req store.Request,
	emit func(ctx context.Context, pr store.Pair) (bool, error),
) error {
	ctx, span := p.rec.StartSpan(
		ctx,
		"proxy.stream",
		telemetry.Stringer("db.operation", req.Op),
	)
	defer span.End()

	p.logCommand(ctx, req)

	err := p.exec.stream(ctx, req, emit)

	if err != nil {
		p.rec.Error(ctx, "proxy.error", err)
	}

	return err
}

func (p *Proxy) logCommand(ctx context.Context, req store.Request) {
	if !p.tap {
		return
	}

	p.rec.Info(
		ctx,
		"proxy.command",
		fmt.Sprintf("%s on %s/%s", req.Op, p.schema, p.table),
		telemetry.Stringer("db.operation", req.Op),
		telemetry.If(req.Key != nil, telemetry.Binary("db.key", req.Key)),
	)
}
