package database

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("entity not found")

// ErrPersistFailed is returned when assignment writes cannot be completed.
// Because the clear+write runs in one transaction, a failed run leaves the
// previously persisted state intact.
type ErrPersistFailed struct {
	Op  string
	Err error
}

func (e *ErrPersistFailed) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *ErrPersistFailed) Unwrap() error {
	return e.Err
}
