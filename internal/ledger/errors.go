// Package ledger holds the error taxonomy shared by the replay and
// reconciliation engines. Validation and not-found failures abort the
// triggering mutation before any write; everything else inside a replay is
// treated as fatal to that run and logged by the caller.
package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a strategy, account or trade missing (or soft-deleted)
// within the requesting user's scope.
var ErrNotFound = errors.New("record not found")

// ValidationError rejects a mutation before any state changes.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with fmt semantics.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
