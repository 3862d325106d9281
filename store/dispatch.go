package store

import (
	"context"
	"fmt"
)

// A Pair is a single key/value pair.
type Pair struct {
	Key   []byte `json:"k"`
	Value []byte `json:"v"`
}

// A Request describes one mapping operation to be performed against a table.
//
// It is the unit that crosses the session channel in proxied mode, and the
// unit handed to the dispatch table in direct mode, so both modes execute
// exactly the same operation.
type Request struct {
	// Table is the name of the table the operation targets.
	Table string `json:"table"`

	// Op identifies the operation.
	Op Op `json:"op"`

	// Key is the key argument, for operations that take one.
	Key []byte `json:"key,omitempty"`

	// Value is the value argument of set.
	Value []byte `json:"value,omitempty"`

	// Default is the fallback value of get-default and set-default.
	Default []byte `json:"default,omitempty"`

	// Pairs is the bulk argument of update.
	Pairs []Pair `json:"pairs,omitempty"`
}

// A Result is the outcome of a non-streaming operation.
type Result struct {
	// Value is the value produced by value-returning operations.
	Value []byte `json:"value,omitempty"`

	// OK reports presence for contains, has-key, get-default and
	// set-default.
	OK bool `json:"ok,omitempty"`

	// Count is the result of size.
	Count int `json:"count,omitempty"`

	// Keys is the result of keys.
	Keys [][]byte `json:"keys,omitempty"`

	// Values is the result of values.
	Values [][]byte `json:"values,omitempty"`

	// Pairs is the result of items and pop-item.
	Pairs []Pair `json:"pairs,omitempty"`
}

// handler performs one non-streaming operation against a table.
type handler func(ctx context.Context, t Table, req Request) (Result, error)

// handlers is the dispatch table for non-streaming operations.
var handlers = map[Op]handler{
	OpContains:   dispatchHas,
	OpHasKey:     dispatchHas,
	OpGet:        dispatchGet,
	OpGetDefault: dispatchGetDefault,
	OpSet:        dispatchSet,
	OpSetDefault: dispatchSetDefault,
	OpDelete:     dispatchDelete,
	OpUpdate:     dispatchUpdate,
	OpSize:       dispatchSize,
	OpKeys:       dispatchKeys,
	OpValues:     dispatchValues,
	OpItems:      dispatchItems,
	OpPop:        dispatchPop,
	OpPopItem:    dispatchPopItem,
}

// Dispatch performs a non-streaming operation against t.
//
// It panics if the request names an unknown or streaming operation; routing a
// request to the wrong dispatch path is a programming error, not a runtime
// condition.
func Dispatch(ctx context.Context, t Table, req Request) (Result, error) {
	h, ok := handlers[req.Op]
	if !ok {
		panic(fmt.Sprintf("operation %q cannot be dispatched as a scalar call", req.Op))
	}

	return h(ctx, t, req)
}

// DispatchStream performs a streaming operation against t, invoking emit once
// per element in the table's iteration order.
//
// For iter-keys only the Key of each emitted pair is populated, for
// iter-values only the Value, and for iter-items both.
//
// It panics if the request names a non-streaming operation.
func DispatchStream(
	ctx context.Context,
	t Table,
	req Request,
	emit func(ctx context.Context, p Pair) (ok bool, err error),
) error {
	if !req.Op.Streaming() {
		panic(fmt.Sprintf("operation %q cannot be dispatched as a streaming call", req.Op))
	}

	return t.Range(
		ctx,
		func(ctx context.Context, k, v []byte) (bool, error) {
			p := Pair{Key: k, Value: v}

			switch req.Op {
			case OpIterKeys:
				p.Value = nil
			case OpIterValues:
				p.Key = nil
			}

			return emit(ctx, p)
		},
	)
}

func dispatchHas(ctx context.Context, t Table, req Request) (Result, error) {
	ok, err := t.Has(ctx, req.Key)
	return Result{OK: ok}, err
}

func dispatchGet(ctx context.Context, t Table, req Request) (Result, error) {
	v, ok, err := t.Get(ctx, req.Key)
	if err != nil {
		return Result{}, err
	}

	if !ok {
		return Result{}, NotFoundError{Table: t.Name(), Key: req.Key}
	}

	return Result{Value: v, OK: true}, nil
}

func dispatchGetDefault(ctx context.Context, t Table, req Request) (Result, error) {
	v, ok, err := t.Get(ctx, req.Key)
	if err != nil {
		return Result{}, err
	}

	if !ok {
		return Result{Value: req.Default}, nil
	}

	return Result{Value: v, OK: true}, nil
}

func dispatchSet(ctx context.Context, t Table, req Request) (Result, error) {
	return Result{}, t.Set(ctx, req.Key, req.Value)
}

func dispatchSetDefault(ctx context.Context, t Table, req Request) (Result, error) {
	v, ok, err := t.Get(ctx, req.Key)
	if err != nil {
		return Result{}, err
	}

	if ok {
		return Result{Value: v, OK: true}, nil
	}

	if err := t.Set(ctx, req.Key, req.Default); err != nil {
		return Result{}, err
	}

	return Result{Value: req.Default}, nil
}

func dispatchDelete(ctx context.Context, t Table, req Request) (Result, error) {
	ok, err := t.Delete(ctx, req.Key)
	if err != nil {
		return Result{}, err
	}

	if !ok {
		return Result{}, NotFoundError{Table: t.Name(), Key: req.Key}
	}

	return Result{OK: true}, nil
}

func dispatchUpdate(ctx context.Context, t Table, req Request) (Result, error) {
	for _, p := range req.Pairs {
		if err := t.Set(ctx, p.Key, p.Value); err != nil {
			return Result{}, err
		}
	}

	return Result{}, nil
}

func dispatchSize(ctx context.Context, t Table, req Request) (Result, error) {
	n, err := t.Len(ctx)
	return Result{Count: n}, err
}

func dispatchKeys(ctx context.Context, t Table, req Request) (Result, error) {
	var res Result

	err := t.Range(
		ctx,
		func(_ context.Context, k, _ []byte) (bool, error) {
			res.Keys = append(res.Keys, k)
			return true, nil
		},
	)

	return res, err
}

func dispatchValues(ctx context.Context, t Table, req Request) (Result, error) {
	var res Result

	err := t.Range(
		ctx,
		func(_ context.Context, _, v []byte) (bool, error) {
			res.Values = append(res.Values, v)
			return true, nil
		},
	)

	return res, err
}

func dispatchItems(ctx context.Context, t Table, req Request) (Result, error) {
	var res Result

	err := t.Range(
		ctx,
		func(_ context.Context, k, v []byte) (bool, error) {
			res.Pairs = append(res.Pairs, Pair{Key: k, Value: v})
			return true, nil
		},
	)

	return res, err
}

func dispatchPop(ctx context.Context, t Table, req Request) (Result, error) {
	v, ok, err := t.Get(ctx, req.Key)
	if err != nil {
		return Result{}, err
	}

	if !ok {
		return Result{}, NotFoundError{Table: t.Name(), Key: req.Key}
	}

	if _, err := t.Delete(ctx, req.Key); err != nil {
		return Result{}, err
	}

	return Result{Value: v, OK: true}, nil
}

func dispatchPopItem(ctx context.Context, t Table, req Request) (Result, error) {
	var (
		p     Pair
		found bool
	)

	if err := t.Range(
		ctx,
		func(_ context.Context, k, v []byte) (bool, error) {
			p = Pair{Key: k, Value: v}
			found = true
			return false, nil
		},
	); err != nil {
		return Result{}, err
	}

	if !found {
		return Result{}, NotFoundError{Table: t.Name()}
	}

	if _, err := t.Delete(ctx, p.Key); err != nil {
		return Result{}, err
	}

	return Result{Pairs: []Pair{p}}, nil
}
