package channel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// RunTests runs tests that confirm a [Channel] transport behaves correctly.
//
// newPair returns two connected endpoints; payloads sent by one must be
// readable by the other.
func RunTests(
	t *testing.T,
	newPair func(t *testing.T) (a, b Channel),
) {
	t.Run("it delivers payloads to the peer endpoint", func(t *testing.T) {
		t.Parallel()

		a, b := newPair(t)

		if err := a.Send(t.Context(), "<key>", []byte("<payload>")); err != nil {
			t.Fatal(err)
		}

		actual, err := b.Read(t.Context(), "<key>")
		if err != nil {
			t.Fatal(err)
		}

		if expect := "<payload>"; string(actual) != expect {
			t.Fatalf("unexpected payload: got %q, want %q", string(actual), expect)
		}
	})

	t.Run("it delivers payloads in the order they were sent", func(t *testing.T) {
		t.Parallel()

		a, b := newPair(t)

		var expect []string
		for n := 0; n < 50; n++ {
			p := fmt.Sprintf("<payload-%d>", n)
			expect = append(expect, p)

			if err := a.Send(t.Context(), "<key>", []byte(p)); err != nil {
				t.Fatal(err)
			}
		}

		var actual []string
		for range expect {
			p, err := b.Read(t.Context(), "<key>")
			if err != nil {
				t.Fatal(err)
			}
			actual = append(actual, string(p))
		}

		if diff := cmp.Diff(expect, actual); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("it keeps event keys disjoint", func(t *testing.T) {
		t.Parallel()

		a, b := newPair(t)

		if err := a.Send(t.Context(), "<key-1>", []byte("<one>")); err != nil {
			t.Fatal(err)
		}
		if err := a.Send(t.Context(), "<key-2>", []byte("<two>")); err != nil {
			t.Fatal(err)
		}

		p, err := b.Read(t.Context(), "<key-2>")
		if err != nil {
			t.Fatal(err)
		}
		if string(p) != "<two>" {
			t.Fatalf("unexpected payload: got %q, want %q", string(p), "<two>")
		}

		p, err = b.Read(t.Context(), "<key-1>")
		if err != nil {
			t.Fatal(err)
		}
		if string(p) != "<one>" {
			t.Fatalf("unexpected payload: got %q, want %q", string(p), "<one>")
		}
	})

	t.Run("it keeps the two directions disjoint", func(t *testing.T) {
		t.Parallel()

		a, b := newPair(t)

		if err := a.Send(t.Context(), "<key>", []byte("<from-a>")); err != nil {
			t.Fatal(err)
		}
		if err := b.Send(t.Context(), "<key>", []byte("<from-b>")); err != nil {
			t.Fatal(err)
		}

		p, err := a.Read(t.Context(), "<key>")
		if err != nil {
			t.Fatal(err)
		}
		if string(p) != "<from-b>" {
			t.Fatalf("endpoint read back its own payload: %q", string(p))
		}

		p, err = b.Read(t.Context(), "<key>")
		if err != nil {
			t.Fatal(err)
		}
		if string(p) != "<from-a>" {
			t.Fatalf("endpoint read back its own payload: %q", string(p))
		}
	})

	t.Run("Flush", func(t *testing.T) {
		t.Parallel()

		t.Run("it discards pending payloads on the key", func(t *testing.T) {
			t.Parallel()

			a, b := newPair(t)

			if err := a.Send(t.Context(), "<key>", []byte("<stale-1>")); err != nil {
				t.Fatal(err)
			}
			if err := a.Send(t.Context(), "<key>", []byte("<stale-2>")); err != nil {
				t.Fatal(err)
			}

			if err := b.Flush(t.Context(), "<key>"); err != nil {
				t.Fatal(err)
			}

			if err := a.Send(t.Context(), "<key>", []byte("<fresh>")); err != nil {
				t.Fatal(err)
			}

			p, err := b.Read(t.Context(), "<key>")
			if err != nil {
				t.Fatal(err)
			}

			if string(p) != "<fresh>" {
				t.Fatalf("unexpected payload after flush: %q", string(p))
			}
		})

		t.Run("it does not touch other keys", func(t *testing.T) {
			t.Parallel()

			a, b := newPair(t)

			if err := a.Send(t.Context(), "<key-1>", []byte("<keep>")); err != nil {
				t.Fatal(err)
			}

			if err := b.Flush(t.Context(), "<key-2>"); err != nil {
				t.Fatal(err)
			}

			p, err := b.Read(t.Context(), "<key-1>")
			if err != nil {
				t.Fatal(err)
			}

			if string(p) != "<keep>" {
				t.Fatalf("unexpected payload: %q", string(p))
			}
		})
	})

	t.Run("Read", func(t *testing.T) {
		t.Parallel()

		t.Run("it blocks until a payload arrives", func(t *testing.T) {
			t.Parallel()

			a, b := newPair(t)

			go func() {
				time.Sleep(10 * time.Millisecond)
				if err := a.Send(context.Background(), "<key>", []byte("<late>")); err != nil {
					t.Error(err)
				}
			}()

			p, err := b.Read(t.Context(), "<key>")
			if err != nil {
				t.Fatal(err)
			}

			if string(p) != "<late>" {
				t.Fatalf("unexpected payload: %q", string(p))
			}
		})

		t.Run("it returns when the context is cancelled", func(t *testing.T) {
			t.Parallel()

			_, b := newPair(t)

			ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
			defer cancel()

			if _, err := b.Read(ctx, "<key>"); err == nil {
				t.Fatal("expected an error")
			}
		})
	})
}
