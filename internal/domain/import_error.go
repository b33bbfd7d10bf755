package domain

import "time"

// Operations recorded in the import error log.
const (
	OpScanListing     = "scan_listing"
	OpFetchEvent      = "fetch_event"
	OpTransformEvent  = "transform_event"
	OpDuplicateEvents = "duplicate_events"
	OpResolveVenue    = "resolve_venue"
)

// ImportError is an append-only diagnostic row written whenever a unit of
// ingestion work fails in a way the batch recovers from.
type ImportError struct {
	ID        string            `json:"id" db:"id"`
	Operation string            `json:"operation" db:"operation"`
	Message   string            `json:"message" db:"message"`
	Args      map[string]string `json:"args" db:"args"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
