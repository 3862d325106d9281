package lock_test

import (
	"testing"
	"time"

	"github.com/skinsch/dbproxy/lock"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("it returns the same handle for the same pair", func(t *testing.T) {
		t.Parallel()

		var reg lock.Registry

		if reg.Get("<schema>", "<table>") != reg.Get("<schema>", "<table>") {
			t.Fatal("expected the same handle")
		}
	})

	t.Run("it returns distinct handles for distinct pairs", func(t *testing.T) {
		t.Parallel()

		var reg lock.Registry

		if reg.Get("<schema>", "<table-1>") == reg.Get("<schema>", "<table-2>") {
			t.Fatal("expected distinct handles for distinct tables")
		}

		if reg.Get("<schema-1>", "<table>") == reg.Get("<schema-2>", "<table>") {
			t.Fatal("expected distinct handles for distinct schemas")
		}
	})

	t.Run("it does not conflate schema and table name boundaries", func(t *testing.T) {
		t.Parallel()

		var reg lock.Registry

		if reg.Get("ab", "c") == reg.Get("a", "bc") {
			t.Fatal("expected distinct handles")
		}
	})

	t.Run("release makes the lock available to a new acquirer", func(t *testing.T) {
		t.Parallel()

		var reg lock.Registry

		h := reg.Get("<schema>", "<table>")

		h.Acquire()
		h.Release()

		h.Acquire()
		h.Release()
	})

	t.Run("a second acquirer blocks until release", func(t *testing.T) {
		t.Parallel()

		var reg lock.Registry

		h := reg.Get("<schema>", "<table>")
		h.Acquire()

		acquired := make(chan struct{})
		go func() {
			h.Acquire()
			close(acquired)
		}()

		select {
		case <-acquired:
			t.Fatal("lock acquired while still held")
		case <-time.After(10 * time.Millisecond):
		}

		h.Release()

		select {
		case <-acquired:
			h.Release()
		case <-time.After(time.Second):
			t.Fatal("lock never acquired after release")
		}
	})
}
