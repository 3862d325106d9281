package memorystore_test

import (
	"testing"

	"github.com/skinsch/dbproxy/driver/memory/memorystore"
	"github.com/skinsch/dbproxy/store"
)

func TestStore(t *testing.T) {
	store.RunTests(
		t,
		func(t *testing.T) store.Store {
			return &memorystore.Store{}
		},
	)
}
