package store

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid store configuration")
	ErrInvalidDriver = errors.New("invalid store driver")
)

// StorageError wraps a persistence fault. Storage failures are non-fatal to a
// live session; callers log them and carry on with in-memory state.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func newStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
