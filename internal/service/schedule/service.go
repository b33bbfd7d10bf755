package schedule

import (
	"context"
	"fmt"
	"time"
)

// Defaults applied by NewBatcher.
const (
	DefaultRecencyWindow  = 2 * time.Hour
	DefaultFetchLimit     = 500
	DefaultTransformLimit = 500
	DefaultChunkSize      = 100
)

// Options tunes a Batcher.
type Options struct {
	RecencyWindow  time.Duration
	FetchLimit     int
	TransformLimit int
	ChunkSize      int
}

// Batcher builds candidate lists for the fetch and transform stages.
type Batcher struct {
	repo Repository
	opts Options
	now  func() time.Time
}

// NewBatcher creates a batcher, filling zero options with defaults.
func NewBatcher(repo Repository, opts Options) *Batcher {
	if opts.RecencyWindow <= 0 {
		opts.RecencyWindow = DefaultRecencyWindow
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}
	if opts.TransformLimit <= 0 {
		opts.TransformLimit = DefaultTransformLimit
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Batcher{repo: repo, opts: opts, now: time.Now}
}

// Options returns the effective options.
func (b *Batcher) Options() Options { return b.opts }

type tierQuery func(ctx context.Context, seenAfter time.Time, limit int) ([]string, error)

// FetchCandidates returns recently seen ids to fetch: never-fetched ids
// first, then the longest-unfetched ones, up to the fetch ceiling.
func (b *Batcher) FetchCandidates(ctx context.Context) ([]string, error) {
	ids, err := b.tiers(ctx, b.opts.FetchLimit, b.repo.UnfetchedIDs, b.repo.StaleFetchedIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	return ids, nil
}

// TransformCandidates returns recently seen ids to transform: never-parsed
// payloads first, then payloads refetched since their last parse, up to
// the transform ceiling.
func (b *Batcher) TransformCandidates(ctx context.Context) ([]string, error) {
	ids, err := b.tiers(ctx, b.opts.TransformLimit, b.repo.UnparsedIDs, b.repo.ChangedIDs)
	if err != nil {
		return nil, fmt.Errorf("transform candidates: %w", err)
	}
	return ids, nil
}

// Chunk splits ids using the configured chunk size.
func (b *Batcher) Chunk(ids []string) [][]string { return Chunk(ids, b.opts.ChunkSize) }

func (b *Batcher) tiers(ctx context.Context, ceiling int, queries ...tierQuery) ([]string, error) {
	seenAfter := b.now().UTC().Add(-b.opts.RecencyWindow)
	seen := make(map[string]bool)
	out := make([]string, 0, ceiling)

	for _, q := range queries {
		if len(out) >= ceiling {
			break
		}
		ids, err := q(ctx, seenAfter, ceiling-len(out))
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if seen[id] || len(out) >= ceiling {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// Chunk splits ids into consecutive sub-slices of at most size elements.
// Order is preserved and every id lands in exactly one chunk.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end:end])
	}
	return chunks
}
