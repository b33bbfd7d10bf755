package venue

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Repository lookups that match nothing.
var ErrNotFound = errors.New("place not found")

// NotFoundError means the places provider returned no candidate for a venue.
type NotFoundError struct {
	Venue string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unable to find a matching Google Maps place for %s", e.Venue)
}
