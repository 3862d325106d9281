package store

import (
	"errors"
	"fmt"
)

// IsNotFound returns true if err is caused by [NotFoundError].
func IsNotFound(err error) bool {
	return errors.As(err, &NotFoundError{})
}

// NotFoundError is returned by operations that require a key to be present
// when it is not, such as get, delete, pop and pop-item.
type NotFoundError struct {
	// Table is the name of the table on which the operation was performed.
	Table string

	// Key is the absent key, or nil if the operation did not target a
	// specific key (such as pop-item on an empty table).
	Key []byte
}

func (e NotFoundError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("the %q table is empty", e.Table)
	}

	return fmt.Sprintf("key %q does not exist in the %q table", e.Key, e.Table)
}
