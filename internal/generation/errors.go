package generation

import (
	"errors"
	"fmt"
)

// ErrNoActiveGeneration is returned when there is no run to advance.
var ErrNoActiveGeneration = errors.New("no active generation")

// ErrPersistence is matched by every *PersistenceError.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError wraps a failing state store or plan repository call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPersistence) hold.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistenceErr(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
