// ABOUTME: Error taxonomy for page store operations.
// ABOUTME: Validation, unavailable-model, and persistence failures are distinguishable with errors.Is.
package index

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrValidation means the caller supplied an empty or invalid argument.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable means the embedding model is not loaded.
	ErrUnavailable = errors.New("embedding model unavailable")

	// ErrPersistence means durable state could not be read or written, or an
	// operation hit an unexpected internal fault.
	ErrPersistence = errors.New("persistence failed")
)

// Error describes a failed store operation.
type Error struct {
	Kind error  // one of ErrValidation, ErrUnavailable, ErrPersistence
	Op   string // operation name, e.g. "insert"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func validationError(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Err: errors.New(msg)}
}

func persistenceError(op string, err error) error {
	return &Error{Kind: ErrPersistence, Op: op, Err: err}
}

// recoverOp converts a panic inside op into an ErrPersistence error.
func recoverOp(op string, errp *error) {
	if r := recover(); r != nil {
		*errp = persistenceError(op, fmt.Errorf("internal fault: %v", r))
	}
}
