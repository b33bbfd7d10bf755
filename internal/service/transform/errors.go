package transform

import "errors"

// ErrNotFound is returned by Repository lookups that match nothing.
var ErrNotFound = errors.New("not found")
