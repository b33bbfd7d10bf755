package fetch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mymemorymaker/event-ingest/internal/domain"
)

// Repository defines the data access contract for raw payloads.
type Repository interface {
	// UpsertRawEvent overwrites the payload for eventID and stamps LastFetched.
	UpsertRawEvent(ctx context.Context, eventID string, data json.RawMessage, fetchedAt time.Time) error
}

// ErrorLog appends rows to the import error log.
type ErrorLog interface {
	RecordImportError(ctx context.Context, e *domain.ImportError) error
}

// DetailSource fetches one event's detail payload.
type DetailSource interface {
	Event(ctx context.Context, id string) (json.RawMessage, error)
}

// Locker runs fn while holding a per-key lock, returning
// distlock.ErrNotAcquired when another process holds it.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
