package transform

import (
	"context"
	"time"

	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/service/venue"
)

// Repository defines the data access contract for the transformer.
type Repository interface {
	// RawEvent returns the stored payload for an id, or ErrNotFound.
	RawEvent(ctx context.Context, eventID string) (*domain.RawEvent, error)

	// MarkParsed stamps LastParsed on the raw payload.
	MarkParsed(ctx context.Context, eventID string, at time.Time) error

	// EventsBySource returns every event built from the external id, with
	// image and place ids loaded.
	EventsBySource(ctx context.Context, source domain.SourceType, externalID string) ([]*domain.Event, error)

	// DeleteEvents removes events and their image and place links.
	DeleteEvents(ctx context.Context, ids []string) error

	// LinkedImageByURL returns an image linked to the event whose link URL
	// matches, or ErrNotFound.
	LinkedImageByURL(ctx context.Context, eventID, linkURL string) (*domain.Image, error)

	// SaveEvent upserts the event, inserts newImages and replaces the
	// event's image and place links, all in one transaction.
	SaveEvent(ctx context.Context, ev *domain.Event, newImages []*domain.Image) error
}

// ErrorLog appends rows to the import error log.
type ErrorLog interface {
	RecordImportError(ctx context.Context, e *domain.ImportError) error
}

// DescriptionSource fetches an event's full HTML description.
type DescriptionSource interface {
	Description(ctx context.Context, id string) (string, error)
}

// TagMapper maps category ids to filter tags.
type TagMapper interface {
	Tags(categoryID, subcategoryID string) domain.Tags
}

// VenueResolver maps a venue to a place.
type VenueResolver interface {
	Resolve(ctx context.Context, q venue.Query) (*domain.Place, error)
}

// Candidates lists the ids due for transform and chunks them.
type Candidates interface {
	TransformCandidates(ctx context.Context) ([]string, error)
	Chunk(ids []string) [][]string
}

// Locker runs fn while holding a per-key lock.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
