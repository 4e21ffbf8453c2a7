package service

import (
	"errors"
	"fmt"
)

// ErrMissingName is returned when a lookup by name is requested without a name.
var ErrMissingName = errors.New("missing name")

// InputError reports a request the service refused before contacting the upstream.
type InputError struct {
	// Argument is the name of the offending request argument.
	Argument string
	Err      error
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return fmt.Sprintf("invalid argument %q: %v", e.Argument, e.Err)
}

// Unwrap returns the underlying error.
func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError checks if an error is an InputError.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}
