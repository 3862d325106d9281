package proxy_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/skinsch/dbproxy/driver/memory/memorychannel"
	"github.com/skinsch/dbproxy/driver/memory/memorystore"
	"github.com/skinsch/dbproxy/lock"
	"github.com/skinsch/dbproxy/proxy"
	"github.com/skinsch/dbproxy/store"
	"pgregory.net/rapid"
)

// setupFunc constructs a proxy over a fresh, empty store.
type setupFunc func(t *testing.T, options ...proxy.Option) *proxy.Proxy

func setupDirect(t *testing.T, options ...proxy.Option) *proxy.Proxy {
	return proxy.NewDirect("<schema>", &memorystore.Store{}, options...)
}

func setupProxied(t *testing.T, options ...proxy.Option) *proxy.Proxy {
	worker, owner := memorychannel.New()

	r := &proxy.Responder{
		Schema:  "<schema>",
		Store:   &memorystore.Store{},
		Channel: owner,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return proxy.NewProxied("<schema>", worker, options...)
}

func TestProxy(t *testing.T) {
	t.Parallel()

	modes := []struct {
		Name  string
		Setup setupFunc
	}{
		{"direct", setupDirect},
		{"proxied", setupProxied},
	}

	for _, mode := range modes {
		t.Run(mode.Name, func(t *testing.T) {
			t.Parallel()
			runProxyTests(t, mode.Setup)
		})
	}
}

func runProxyTests(t *testing.T, setup setupFunc) {
	t.Run("Get", func(t *testing.T) {
		t.Parallel()

		t.Run("it returns the value associated with the key", func(t *testing.T) {
			t.Parallel()

			p := setup(t)

			if err := p.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
				t.Fatal(err)
			}

			v, err := p.Get(t.Context(), []byte("<key>"))
			if err != nil {
				t.Fatal(err)
			}

			if !bytes.Equal(v, []byte("<value>")) {
				t.Fatalf("unexpected value: %q", string(v))
			}
		})

		t.Run("it returns a NotFoundError when the key is absent", func(t *testing.T) {
			t.Parallel()

			p := setup(t)

			_, err := p.Get(t.Context(), []byte("<key>"))
			if !store.IsNotFound(err) {
				t.Fatalf("expected a NotFoundError, got %v", err)
			}
		})

		t.Run("it distinguishes an empty value from an absent key", func(t *testing.T) {
			t.Parallel()

			p := setup(t)

			if err := p.Set(t.Context(), []byte("<key>"), nil); err != nil {
				t.Fatal(err)
			}

			v, err := p.Get(t.Context(), []byte("<key>"))
			if err != nil {
				t.Fatal(err)
			}
			if len(v) != 0 {
				t.Fatalf("unexpected value: %q", string(v))
			}

			ok, err := p.Contains(t.Context(), []byte("<key>"))
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatal("expected the key to be present")
			}
		})
	})

	t.Run("Contains and Has", func(t *testing.T) {
		t.Parallel()

		p := setup(t)

		for _, probe := range []func(context.Context, []byte) (bool, error){
			p.Contains,
			p.Has,
		} {
			ok, err := probe(t.Context(), []byte("<key>"))
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Fatal("expected the key to be absent")
			}
		}

		if err := p.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
			t.Fatal(err)
		}

		for _, probe := range []func(context.Context, []byte) (bool, error){
			p.Contains,
			p.Has,
		} {
			ok, err := probe(t.Context(), []byte("<key>"))
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatal("expected the key to be present")
			}
		}
	})

	t.Run("GetDefault", func(t *testing.T) {
		t.Parallel()

		p := setup(t)

		v, err := p.GetDefault(t.Context(), []byte("<key>"), []byte("<default>"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(v, []byte("<default>")) {
			t.Fatalf("unexpected value: %q", string(v))
		}

		// The fallback must not be stored.
		if ok, err := p.Contains(t.Context(), []byte("<key>")); err != nil {
			t.Fatal(err)
		} else if ok {
			t.Fatal("expected the key to remain absent")
		}

		if err := p.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
			t.Fatal(err)
		}

		v, err = p.GetDefault(t.Context(), []byte("<key>"), []byte("<default>"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(v, []byte("<value>")) {
			t.Fatalf("unexpected value: %q", string(v))
		}
	})

	t.Run("SetDefault", func(t *testing.T) {
		t.Parallel()

		p := setup(t)

		v, err := p.SetDefault(t.Context(), []byte("<key>"), []byte("<default>"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(v, []byte("<default>")) {
			t.Fatalf("unexpected value: %q", string(v))
		}

		// This time the fallback must have been stored.
		v, err = p.Get(t.Context(), []byte("<key>"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(v, []byte("<default>")) {
			t.Fatalf("unexpected value: %q", string(v))
		}

		v, err = p.SetDefault(t.Context(), []byte("<key>"), []byte("<other>"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(v, []byte("<default>")) {
			t.Fatalf("unexpected value: %q", string(v))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		t.Parallel()

		p := setup(t)

		if err := p.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
			t.Fatal(err)
		}

		if err := p.Delete(t.Context(), []byte("<key>")); err != nil {
			t.Fatal(err)
		}

		if err := p.Delete(t.Context(), []byte("<key>")); !store.IsNotFound(err) {
			t.Fatalf("expected a NotFoundError, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		t.Parallel()

		p := setup(t)

		if err := p.Set(t.Context(), []byte("<key-2>"), []byte("<stale>")); err != nil {
			t.Fatal(err)
		}

		if err := p.Update(
			t.Context(),
			[]store.Pair{
				{Key: []byte("<key-1>"), Value: []byte("<value-1>")},
				{Key: []byte("<key-2>"), Value: []byte("<value-2>")},
			},
		); err != nil {
			t.Fatal(err)
		}

		m, err := p.Copy(t.Context())
		if err != nil {
			t.Fatal(err)
		}

		expect := map[string][]byte{
			"<key-1>": []byte("<value-1>"),
			"<key-2>": []byte("<value-2>"),
		}

		if diff := cmp.Diff(expect, m); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Len", func(t *testing.T) {
		t.Parallel()

		p := setup(t)

		for n := 0; n < 3; n++ {
			count, err := p.Len(t.Context())
			if err != nil {
				t.Fatal(err)
			}
			if count != n {
				t.Fatalf("unexpected length: got %d, want %d", count, n)
			}

			k := []byte(fmt.Sprintf("<key-%d>", n))
			if err := p.Set(t.Context(), k, []byte("<value>")); err != nil {
				t.Fatal(err)
			}
		}
	})

	t.Run("Keys, Values and Items", func(t *testing.T) {
		t.Parallel()

		p := setup(t)

		for _, k := range []string{"a", "b", "c"} {
			if err := p.Set(t.Context(), []byte(k), []byte("value-"+k)); err != nil {
				t.Fatal(err)
			}
		}

		keys, err := p.Keys(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(
			[][]byte{[]byte("a"), []byte("b"), []byte("c")},
			keys,
		); diff != "" {
			t.Fatal(diff)
		}

		values, err := p.Values(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(
			[][]byte{[]byte("value-a"), []byte("value-b"), []byte("value-c")},
			values,
		); diff != "" {
			t.Fatal(diff)
		}

		items, err := p.Items(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(
			[]store.Pair{
				{Key: []byte("a"), Value: []byte("value-a")},
				{Key: []byte("b"), Value: []byte("value-b")},
				{Key: []byte("c"), Value: []byte("value-c")},
			},
			items,
		); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Range", func(t *testing.T) {
		t.Parallel()

		t.Run("it yields exactly the table's pairs, in order", func(t *testing.T) {
			t.Parallel()

			p := setup(t)

			for _, k := range []string{"a", "b", "c"} {
				if err := p.Set(t.Context(), []byte(k), []byte("value-"+k)); err != nil {
					t.Fatal(err)
				}
			}

			var actual []store.Pair
			if err := p.Range(
				t.Context(),
				func(_ context.Context, pr store.Pair) (bool, error) {
					actual = append(actual, pr)
					return true, nil
				},
			); err != nil {
				t.Fatal(err)
			}

			expect := []store.Pair{
				{Key: []byte("a"), Value: []byte("value-a")},
				{Key: []byte("b"), Value: []byte("value-b")},
				{Key: []byte("c"), Value: []byte("value-c")},
			}

			if diff := cmp.Diff(expect, actual); diff != "" {
				t.Fatal(diff)
			}
		})

		t.Run("it stops iterating if the function returns false", func(t *testing.T) {
			t.Parallel()

			p := setup(t)

			for _, k := range []string{"a", "b", "c"} {
				if err := p.Set(t.Context(), []byte(k), []byte("<value>")); err != nil {
					t.Fatal(err)
				}
			}

			count := 0
			if err := p.Range(
				t.Context(),
				func(context.Context, store.Pair) (bool, error) {
					count++
					return false, nil
				},
			); err != nil {
				t.Fatal(err)
			}

			if count != 1 {
				t.Fatalf("unexpected number of calls: %d", count)
			}
		})

		t.Run("RangeKeys and RangeValues project the stream", func(t *testing.T) {
			t.Parallel()

			p := setup(t)

			for _, k := range []string{"a", "b"} {
				if err := p.Set(t.Context(), []byte(k), []byte("value-"+k)); err != nil {
					t.Fatal(err)
				}
			}

			var keys []string
			if err := p.RangeKeys(
				t.Context(),
				func(_ context.Context, k []byte) (bool, error) {
					keys = append(keys, string(k))
					return true, nil
				},
			); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
				t.Fatal(diff)
			}

			var values []string
			if err := p.RangeValues(
				t.Context(),
				func(_ context.Context, v []byte) (bool, error) {
					values = append(values, string(v))
					return true, nil
				},
			); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"value-a", "value-b"}, values); diff != "" {
				t.Fatal(diff)
			}
		})
	})

	t.Run("Pop", func(t *testing.T) {
		t.Parallel()

		p := setup(t)

		if err := p.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
			t.Fatal(err)
		}

		v, err := p.Pop(t.Context(), []byte("<key>"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(v, []byte("<value>")) {
			t.Fatalf("unexpected value: %q", string(v))
		}

		if _, err := p.Pop(t.Context(), []byte("<key>")); !store.IsNotFound(err) {
			t.Fatalf("expected a NotFoundError, got %v", err)
		}
	})

	t.Run("PopItem", func(t *testing.T) {
		t.Parallel()

		p := setup(t)

		expect := map[string][]byte{
			"<key-1>": []byte("<value-1>"),
			"<key-2>": []byte("<value-2>"),
		}

		for k, v := range expect {
			if err := p.Set(t.Context(), []byte(k), v); err != nil {
				t.Fatal(err)
			}
		}

		actual := map[string][]byte{}
		for range expect {
			pr, err := p.PopItem(t.Context())
			if err != nil {
				t.Fatal(err)
			}
			actual[string(pr.Key)] = pr.Value
		}

		if diff := cmp.Diff(expect, actual); diff != "" {
			t.Fatal(diff)
		}

		if _, err := p.PopItem(t.Context()); !store.IsNotFound(err) {
			t.Fatalf("expected a NotFoundError, got %v", err)
		}
	})

	t.Run("Copy", func(t *testing.T) {
		t.Parallel()

		t.Run("it returns a detached snapshot", func(t *testing.T) {
			t.Parallel()

			p := setup(t)

			if err := p.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
				t.Fatal(err)
			}

			m, err := p.Copy(t.Context())
			if err != nil {
				t.Fatal(err)
			}

			// Mutating the snapshot must not affect the table, and vice
			// versa.
			m["<key>"] = []byte("<mutated>")
			delete(m, "<key>")

			if err := p.Set(t.Context(), []byte("<other>"), []byte("<value>")); err != nil {
				t.Fatal(err)
			}

			v, err := p.Get(t.Context(), []byte("<key>"))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(v, []byte("<value>")) {
				t.Fatalf("unexpected value: %q", string(v))
			}

			if _, ok := m["<other>"]; ok {
				t.Fatal("snapshot tracked a mutation made after it was taken")
			}
		})
	})

	t.Run("it logs commands when tapped", func(t *testing.T) {
		t.Parallel()

		p := setup(t, proxy.WithTap())

		if err := p.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
			t.Fatal(err)
		}

		if _, err := p.Get(t.Context(), []byte("<key>")); err != nil {
			t.Fatal(err)
		}
	})
}

func TestProxy_locking(t *testing.T) {
	t.Parallel()

	t.Run("it panics when no registry is configured", func(t *testing.T) {
		t.Parallel()

		p := setupDirect(t)

		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()

		p.Acquire()
	})

	t.Run("proxies with the same identity contend on the same lock", func(t *testing.T) {
		t.Parallel()

		var reg lock.Registry

		a := setupDirect(t, proxy.WithLocks(&reg), proxy.WithTable("<table>"))
		b := setupDirect(t, proxy.WithLocks(&reg), proxy.WithTable("<table>"))

		a.Acquire()

		acquired := make(chan struct{})
		go func() {
			b.Acquire()
			close(acquired)
		}()

		select {
		case <-acquired:
			t.Fatal("lock acquired while still held")
		case <-time.After(10 * time.Millisecond):
		}

		a.Release()

		select {
		case <-acquired:
			b.Release()
		case <-time.After(time.Second):
			t.Fatal("lock never acquired after release")
		}
	})

	t.Run("Locked releases on every exit path", func(t *testing.T) {
		t.Parallel()

		var reg lock.Registry

		p := setupDirect(t, proxy.WithLocks(&reg))

		expect := fmt.Errorf("<error>")
		if err := p.Locked(func() error { return expect }); err != expect {
			t.Fatalf("unexpected error: %v", err)
		}

		func() {
			defer func() { recover() }()

			p.Locked(func() error { panic("<panic>") })
		}()

		// Deadlocks here if either exit path leaked the lock.
		if err := p.Locked(func() error { return nil }); err != nil {
			t.Fatal(err)
		}
	})
}

// TestProxy_modeEquivalence drives a direct proxy and a proxied proxy with
// the same operation sequence and requires identical observable outcomes.
func TestProxy_modeEquivalence(t *testing.T) {
	t.Parallel()

	dp := setupDirect(t)
	pp := setupProxied(t)

	sameErr := func(t *rapid.T, op string, a, b error) {
		if (a == nil) != (b == nil) || store.IsNotFound(a) != store.IsNotFound(b) {
			t.Fatalf("%s: modes disagree: direct=%v proxied=%v", op, a, b)
		}
	}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		key := rapid.StringN(1, 16, -1)
		value := rapid.String()

		t.Repeat(
			map[string]func(*rapid.T){
				"Set": func(t *rapid.T) {
					k := []byte(key.Draw(t, "key"))
					v := []byte(value.Draw(t, "value"))

					sameErr(t, "set", dp.Set(ctx, k, v), pp.Set(ctx, k, v))
				},
				"Get": func(t *rapid.T) {
					k := []byte(key.Draw(t, "key"))

					dv, derr := dp.Get(ctx, k)
					pv, perr := pp.Get(ctx, k)

					sameErr(t, "get", derr, perr)
					if !bytes.Equal(dv, pv) {
						t.Fatalf("get: modes disagree: %q vs %q", dv, pv)
					}
				},
				"GetDefault": func(t *rapid.T) {
					k := []byte(key.Draw(t, "key"))
					def := []byte(value.Draw(t, "default"))

					dv, derr := dp.GetDefault(ctx, k, def)
					pv, perr := pp.GetDefault(ctx, k, def)

					sameErr(t, "get-default", derr, perr)
					if !bytes.Equal(dv, pv) {
						t.Fatalf("get-default: modes disagree: %q vs %q", dv, pv)
					}
				},
				"SetDefault": func(t *rapid.T) {
					k := []byte(key.Draw(t, "key"))
					def := []byte(value.Draw(t, "default"))

					dv, derr := dp.SetDefault(ctx, k, def)
					pv, perr := pp.SetDefault(ctx, k, def)

					sameErr(t, "set-default", derr, perr)
					if !bytes.Equal(dv, pv) {
						t.Fatalf("set-default: modes disagree: %q vs %q", dv, pv)
					}
				},
				"Delete": func(t *rapid.T) {
					k := []byte(key.Draw(t, "key"))

					sameErr(t, "delete", dp.Delete(ctx, k), pp.Delete(ctx, k))
				},
				"Pop": func(t *rapid.T) {
					k := []byte(key.Draw(t, "key"))

					dv, derr := dp.Pop(ctx, k)
					pv, perr := pp.Pop(ctx, k)

					sameErr(t, "pop", derr, perr)
					if !bytes.Equal(dv, pv) {
						t.Fatalf("pop: modes disagree: %q vs %q", dv, pv)
					}
				},
				"Contains": func(t *rapid.T) {
					k := []byte(key.Draw(t, "key"))

					dok, derr := dp.Contains(ctx, k)
					pok, perr := pp.Contains(ctx, k)

					sameErr(t, "contains", derr, perr)
					if dok != pok {
						t.Fatalf("contains: modes disagree: %v vs %v", dok, pok)
					}
				},
				"Len": func(t *rapid.T) {
					dn, derr := dp.Len(ctx)
					pn, perr := pp.Len(ctx)

					sameErr(t, "len", derr, perr)
					if dn != pn {
						t.Fatalf("len: modes disagree: %d vs %d", dn, pn)
					}
				},
				"Items": func(t *rapid.T) {
					di, derr := dp.Items(ctx)
					pi, perr := pp.Items(ctx)

					sameErr(t, "items", derr, perr)

					// An empty value arrives as nil on the proxied side of
					// the wire.
					if diff := cmp.Diff(di, pi, cmpopts.EquateEmpty()); diff != "" {
						t.Fatalf("items: modes disagree:\n%s", diff)
					}
				},
				"Range": func(t *rapid.T) {
					var di, pi []store.Pair

					derr := dp.Range(ctx, func(_ context.Context, pr store.Pair) (bool, error) {
						di = append(di, pr)
						return true, nil
					})
					perr := pp.Range(ctx, func(_ context.Context, pr store.Pair) (bool, error) {
						pi = append(pi, pr)
						return true, nil
					})

					sameErr(t, "iter-items", derr, perr)
					if diff := cmp.Diff(di, pi, cmpopts.EquateEmpty()); diff != "" {
						t.Fatalf("iter-items: modes disagree:\n%s", diff)
					}
				},
			},
		)
	})
}
