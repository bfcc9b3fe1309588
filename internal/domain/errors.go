package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lead or draft does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotEditable is returned when a draft has left the draft status.
var ErrNotEditable = errors.New("draft is not editable")

// ErrConfirmationRequired is returned by deletes issued without an explicit
// confirmation. It satisfies errors.As for ValidationError.
var ErrConfirmationRequired = ValidationError{Field: "confirm", Message: "delete requires explicit confirmation"}

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PersistenceError wraps a storage failure from append, save, commit or
// delete. The wrapped message is shown to users unchanged.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
