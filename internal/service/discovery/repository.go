package discovery

import (
	"context"
	"time"

	"github.com/mymemorymaker/event-ingest/internal/domain"
)

// Repository defines the data access contract for discovered ids.
type Repository interface {
	// TouchExternalEventID creates the id with FirstFetched = LastSeen = seenAt,
	// or moves LastSeen of an existing id to seenAt. It reports whether the
	// row was created.
	TouchExternalEventID(ctx context.Context, id string, seenAt time.Time) (bool, error)
}

// ErrorLog appends rows to the import error log.
type ErrorLog interface {
	RecordImportError(ctx context.Context, e *domain.ImportError) error
}

// ListingSource fetches listing pages.
type ListingSource interface {
	ListingPage(ctx context.Context, page int) (string, error)
}
