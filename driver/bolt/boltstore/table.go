package boltstore

import (
	"bytes"
	"context"
	"slices"

	"github.com/skinsch/dbproxy/store"
	"go.etcd.io/bbolt"
)

// handle is an implementation of [store.Table] backed by a bucket within a
// Bolt database.
type handle struct {
	db     *bbolt.DB
	schema string
	name   string
	bucket []byte
}

func (h *handle) Schema() string {
	return h.schema
}

func (h *handle) Name() string {
	return h.name
}

func (h *handle) Get(ctx context.Context, k []byte) ([]byte, bool, error) {
	var (
		v  []byte
		ok bool
	)

	err := h.db.View(
		func(tx *bbolt.Tx) error {
			// Seek via a cursor rather than Bucket.Get() so that a key with
			// an empty value is distinguishable from an absent key.
			kk, vv := tx.Bucket(h.bucket).Cursor().Seek(k)
			if kk != nil && bytes.Equal(kk, k) {
				v = slices.Clone(vv)
				ok = true
			}
			return nil
		},
	)

	return v, ok, orCtxErr(ctx, err)
}

func (h *handle) Has(ctx context.Context, k []byte) (bool, error) {
	var ok bool

	err := h.db.View(
		func(tx *bbolt.Tx) error {
			kk, _ := tx.Bucket(h.bucket).Cursor().Seek(k)
			ok = kk != nil && bytes.Equal(kk, k)
			return nil
		},
	)

	return ok, orCtxErr(ctx, err)
}

func (h *handle) Set(ctx context.Context, k, v []byte) error {
	err := h.db.Update(
		func(tx *bbolt.Tx) error {
			return tx.Bucket(h.bucket).Put(k, v)
		},
	)

	return orCtxErr(ctx, err)
}

func (h *handle) Delete(ctx context.Context, k []byte) (bool, error) {
	var ok bool

	err := h.db.Update(
		func(tx *bbolt.Tx) error {
			b := tx.Bucket(h.bucket)

			kk, _ := b.Cursor().Seek(k)
			if kk == nil || !bytes.Equal(kk, k) {
				return nil
			}

			ok = true
			return b.Delete(k)
		},
	)

	return ok, orCtxErr(ctx, err)
}

func (h *handle) Len(ctx context.Context) (int, error) {
	var n int

	err := h.db.View(
		func(tx *bbolt.Tx) error {
			n = tx.Bucket(h.bucket).Stats().KeyN
			return nil
		},
	)

	return n, orCtxErr(ctx, err)
}

func (h *handle) Range(ctx context.Context, fn store.RangeFunc) error {
	// Snapshot the bucket before invoking fn so that fn may mutate the table
	// without opening a write transaction while the read transaction is still
	// held.
	var pairs []store.Pair

	if err := h.db.View(
		func(tx *bbolt.Tx) error {
			return tx.Bucket(h.bucket).ForEach(
				func(k, v []byte) error {
					pairs = append(
						pairs,
						store.Pair{
							Key:   slices.Clone(k),
							Value: slices.Clone(v),
						},
					)
					return nil
				},
			)
		},
	); err != nil {
		return err
	}

	for _, p := range pairs {
		ok, err := fn(ctx, p.Key, p.Value)
		if !ok || err != nil {
			return err
		}
	}

	return nil
}

func (h *handle) Close() error {
	// The database file is owned by the store, which may have other handles
	// open against it.
	return nil
}

func orCtxErr(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	return ctx.Err()
}
