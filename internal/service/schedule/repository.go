package schedule

import (
	"context"
	"time"
)

// Repository defines the candidate queries. Every method only returns ids
// whose LastSeen is after seenAfter, and at most limit of them.
type Repository interface {
	// UnfetchedIDs returns ids without a raw payload, newest LastSeen first.
	UnfetchedIDs(ctx context.Context, seenAfter time.Time, limit int) ([]string, error)

	// StaleFetchedIDs returns ids with a raw payload, oldest LastFetched first.
	StaleFetchedIDs(ctx context.Context, seenAfter time.Time, limit int) ([]string, error)

	// UnparsedIDs returns ids whose payload was never parsed, newest
	// LastFetched first.
	UnparsedIDs(ctx context.Context, seenAfter time.Time, limit int) ([]string, error)

	// ChangedIDs returns ids refetched since their last parse, oldest
	// LastParsed first.
	ChangedIDs(ctx context.Context, seenAfter time.Time, limit int) ([]string, error)
}
