package eventbrite

import (
	"errors"
	"fmt"
)

// ErrMissing marks a required payload field that is absent or null.
var ErrMissing = errors.New("field missing")

// ParseError reports a payload field that is missing or cannot be converted.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("eventbrite payload: %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func missing(field string) error { return &ParseError{Field: field, Err: ErrMissing} }
