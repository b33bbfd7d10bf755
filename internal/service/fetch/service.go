package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/metrics"
	"github.com/mymemorymaker/event-ingest/internal/pkg/distlock"
	"github.com/mymemorymaker/event-ingest/internal/pkg/logger"
)

// LockKey returns the per-event lock key shared by fetch and transform.
func LockKey(id string) string { return "ingest:event:" + id }

// BatchResult summarizes one FetchBatch call.
type BatchResult struct {
	Requested int `json:"requested"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"` // lock held elsewhere
}

// Add accumulates another result.
func (r *BatchResult) Add(o BatchResult) {
	r.Requested += o.Requested
	r.Fetched += o.Fetched
	r.Failed += o.Failed
	r.Skipped += o.Skipped
}

// Fetcher downloads detail payloads.
type Fetcher struct {
	repo    Repository
	errs    ErrorLog
	source  DetailSource
	locker  Locker
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewFetcher creates a detail fetcher. locker may be nil.
func NewFetcher(repo Repository, errs ErrorLog, source DetailSource, locker Locker, m *metrics.Metrics) *Fetcher {
	return &Fetcher{repo: repo, errs: errs, source: source, locker: locker, metrics: m, now: time.Now}
}

// FetchBatch fetches and stores each id in order. Failures never abort the
// batch; cancellation stops it early.
func (f *Fetcher) FetchBatch(ctx context.Context, ids []string) BatchResult {
	res := BatchResult{Requested: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		err := f.fetchOne(ctx, id)
		switch {
		case err == nil:
			res.Fetched++
			f.metrics.Fetch("ok")
		case errors.Is(err, distlock.ErrNotAcquired):
			res.Skipped++
			f.metrics.Fetch("skipped")
			logger.Debug("event locked elsewhere, skipping fetch", "event_id", id)
		case ctx.Err() != nil:
			return res
		default:
			res.Failed++
			f.metrics.Fetch("failed")
			f.recordFailure(ctx, id, err)
		}
	}
	return res
}

func (f *Fetcher) fetchOne(ctx context.Context, id string) error {
	if f.locker == nil {
		return f.store(ctx, id)
	}
	return f.locker.WithLock(ctx, LockKey(id), func(ctx context.Context) error {
		return f.store(ctx, id)
	})
}

func (f *Fetcher) store(ctx context.Context, id string) error {
	data, err := f.source.Event(ctx, id)
	if err != nil {
		return err
	}
	return f.repo.UpsertRawEvent(ctx, id, data, f.now().UTC())
}

func (f *Fetcher) recordFailure(ctx context.Context, id string, cause error) {
	logger.Warn("event detail fetch failed", "event_id", id, "error", cause)
	rec := &domain.ImportError{
		Operation: domain.OpFetchEvent,
		Message:   cause.Error(),
		Args:      map[string]string{"event_id": id},
	}
	if err := f.errs.RecordImportError(ctx, rec); err != nil {
		logger.Error("import error not recorded", "operation", rec.Operation, "error", err)
		return
	}
	f.metrics.ImportError(rec.Operation)
}
