package store_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/skinsch/dbproxy/driver/memory/memorystore"
	"github.com/skinsch/dbproxy/store"
)

func setup(t *testing.T) store.Table {
	tbl, err := (&memorystore.Store{}).Open(t.Context(), "<schema>", "<table>")
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := tbl.Close(); err != nil {
			t.Error(err)
		}
	})

	return tbl
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("it panics on a streaming operation", func(t *testing.T) {
		t.Parallel()

		tbl := setup(t)

		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()

		store.Dispatch(
			t.Context(),
			tbl,
			store.Request{Table: "<table>", Op: store.OpIterItems},
		)
	})

	t.Run("it panics on an unknown operation", func(t *testing.T) {
		t.Parallel()

		tbl := setup(t)

		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()

		store.Dispatch(
			t.Context(),
			tbl,
			store.Request{Table: "<table>", Op: "<bogus>"},
		)
	})

	t.Run("get-default does not modify the table", func(t *testing.T) {
		t.Parallel()

		tbl := setup(t)

		res, err := store.Dispatch(
			t.Context(),
			tbl,
			store.Request{
				Table:   "<table>",
				Op:      store.OpGetDefault,
				Key:     []byte("<key>"),
				Default: []byte("<default>"),
			},
		)
		if err != nil {
			t.Fatal(err)
		}

		if string(res.Value) != "<default>" {
			t.Fatalf("unexpected value: %q", string(res.Value))
		}
		if res.OK {
			t.Fatal("expected OK to report absence")
		}

		if n, err := tbl.Len(t.Context()); err != nil {
			t.Fatal(err)
		} else if n != 0 {
			t.Fatalf("expected the table to remain empty, got %d pairs", n)
		}
	})

	t.Run("set-default stores the fallback only when the key is absent", func(t *testing.T) {
		t.Parallel()

		tbl := setup(t)

		res, err := store.Dispatch(
			t.Context(),
			tbl,
			store.Request{
				Table:   "<table>",
				Op:      store.OpSetDefault,
				Key:     []byte("<key>"),
				Default: []byte("<default>"),
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Value) != "<default>" {
			t.Fatalf("unexpected value: %q", string(res.Value))
		}

		res, err = store.Dispatch(
			t.Context(),
			tbl,
			store.Request{
				Table:   "<table>",
				Op:      store.OpSetDefault,
				Key:     []byte("<key>"),
				Default: []byte("<other>"),
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Value) != "<default>" {
			t.Fatalf("unexpected value: %q", string(res.Value))
		}
	})

	t.Run("pop-item reports an empty table as not-found", func(t *testing.T) {
		t.Parallel()

		tbl := setup(t)

		_, err := store.Dispatch(
			t.Context(),
			tbl,
			store.Request{Table: "<table>", Op: store.OpPopItem},
		)

		if !store.IsNotFound(err) {
			t.Fatalf("expected a NotFoundError, got %v", err)
		}
	})
}

func TestDispatchStream(t *testing.T) {
	t.Parallel()

	t.Run("it panics on a non-streaming operation", func(t *testing.T) {
		t.Parallel()

		tbl := setup(t)

		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()

		store.DispatchStream(
			t.Context(),
			tbl,
			store.Request{Table: "<table>", Op: store.OpKeys},
			func(context.Context, store.Pair) (bool, error) {
				return true, nil
			},
		)
	})

	t.Run("it projects pairs according to the operation", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			Op     store.Op
			Expect []store.Pair
		}{
			{
				store.OpIterKeys,
				[]store.Pair{{Key: []byte("<key>")}},
			},
			{
				store.OpIterValues,
				[]store.Pair{{Value: []byte("<value>")}},
			},
			{
				store.OpIterItems,
				[]store.Pair{{Key: []byte("<key>"), Value: []byte("<value>")}},
			},
		}

		for _, c := range cases {
			t.Run(c.Op.String(), func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				if err := tbl.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				var actual []store.Pair
				if err := store.DispatchStream(
					t.Context(),
					tbl,
					store.Request{Table: "<table>", Op: c.Op},
					func(_ context.Context, p store.Pair) (bool, error) {
						actual = append(actual, p)
						return true, nil
					},
				); err != nil {
					t.Fatal(err)
				}

				if diff := cmp.Diff(c.Expect, actual); diff != "" {
					t.Fatal(diff)
				}
			})
		}
	})
}
