package venue

import (
	"context"

	"github.com/mymemorymaker/event-ingest/internal/domain"
)

// Repository defines the data access contract for places.
type Repository interface {
	// PlaceByGoogleID returns the place for a provider place id, or ErrNotFound.
	PlaceByGoogleID(ctx context.Context, googlePlaceID string) (*domain.Place, error)

	// GetOrCreatePlace inserts p unless a place with the same provider id
	// exists. It returns the stored place and whether it was created.
	GetOrCreatePlace(ctx context.Context, p *domain.Place) (*domain.Place, bool, error)

	// UpdatePlaceSnapshot writes the snapshot and updated_at of p and unions
	// p.Tags into the stored tags atomically. On return p.Tags holds the
	// merged set.
	UpdatePlaceSnapshot(ctx context.Context, p *domain.Place) error

	// AddPlaceImage stores the image row and links it to the place.
	AddPlaceImage(ctx context.Context, placeID string, img *domain.Image) error
}

// Candidate is one places search result.
type Candidate struct {
	PlaceID   string
	Name      string
	Address   string
	Lat       float64
	Lng       float64
	Rating    *float64
	PhotoRefs []string
}

// PlaceSearcher runs a text search biased to a location.
type PlaceSearcher interface {
	SearchPlaces(ctx context.Context, query string, lat, lng float64) ([]Candidate, error)
}

// PhotoFetcher downloads place photo bytes by reference.
type PhotoFetcher interface {
	PhotoBytes(ctx context.Context, ref string) ([]byte, error)
}

// ImageStore keeps photo bytes and describes them as an image.
type ImageStore interface {
	Put(ctx context.Context, data []byte, altText, uploadedBy string) (*domain.Image, error)
}
