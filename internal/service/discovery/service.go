package discovery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/eventbrite"
	"github.com/mymemorymaker/event-ingest/internal/metrics"
	"github.com/mymemorymaker/event-ingest/internal/pkg/logger"
)

// DefaultMaxPages bounds a scan when no limit is configured.
const DefaultMaxPages = 500

// Options tunes a Scanner.
type Options struct {
	MaxPages int
	Marker   string // "no more results" text; eventbrite.NoResultsMarker if empty
}

// Result summarizes one scan.
type Result struct {
	PagesFetched  int  `json:"pages_fetched"`
	PagesSkipped  int  `json:"pages_skipped"`
	IDsSeen       int  `json:"ids_seen"`
	IDsCreated    int  `json:"ids_created"`
	Exhausted     bool `json:"exhausted"`      // stopped at the no-results marker
	MarkerMissing bool `json:"marker_missing"` // hit MaxPages without the marker
}

// Scanner walks the listing pages. It is safe for concurrent use, though the
// worker only ever runs one scan at a time.
type Scanner struct {
	repo    Repository
	errs    ErrorLog
	source  ListingSource
	opts    Options
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewScanner creates a listing scanner.
func NewScanner(repo Repository, errs ErrorLog, source ListingSource, opts Options, m *metrics.Metrics) *Scanner {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Marker == "" {
		opts.Marker = eventbrite.NoResultsMarker
	}
	return &Scanner{repo: repo, errs: errs, source: source, opts: opts, metrics: m, now: time.Now}
}

// Scan walks pages 1..MaxPages. Page failures are recorded and skipped.
// Only context cancellation and store failures end the scan with an error.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	var res Result
	start := s.now()
	logger.Info("listing scan started", "max_pages", s.opts.MaxPages)

	for page := 1; page <= s.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		body, err := s.source.ListingPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.skipPage(ctx, &res, page, err)
			continue
		}

		if eventbrite.HasNoResults(body, s.opts.Marker) {
			res.Exhausted = true
			logger.Info("listing scan ran out of pages", "page", page)
			break
		}

		ids, err := eventbrite.ExtractEventIDs(body)
		if err != nil {
			s.skipPage(ctx, &res, page, err)
			continue
		}

		seenAt := s.now().UTC()
		for _, id := range ids {
			created, err := s.repo.TouchExternalEventID(ctx, id, seenAt)
			if err != nil {
				return res, fmt.Errorf("record event id %s: %w", id, err)
			}
			res.IDsSeen++
			if created {
				res.IDsCreated++
			}
		}
		res.PagesFetched++
		s.metrics.ListingPage("fetched")
		s.metrics.EventIDs("seen", len(ids))
		logger.Debug("listing page scanned", "page", page, "ids", len(ids))
	}

	if !res.Exhausted {
		res.MarkerMissing = true
		logger.Warn("listing scan reached page bound without the end marker", "max_pages", s.opts.MaxPages)
	}
	s.metrics.EventIDs("created", res.IDsCreated)
	logger.Info("listing scan finished",
		"pages_fetched", res.PagesFetched,
		"pages_skipped", res.PagesSkipped,
		"ids_seen", res.IDsSeen,
		"ids_created", res.IDsCreated,
		"duration", s.now().Sub(start).String(),
	)
	return res, nil
}

func (s *Scanner) skipPage(ctx context.Context, res *Result, page int, cause error) {
	res.PagesSkipped++
	s.metrics.ListingPage("skipped")
	logger.Warn("listing page skipped", "page", page, "error", cause)

	rec := &domain.ImportError{
		Operation: domain.OpScanListing,
		Message:   cause.Error(),
		Args:      map[string]string{"page": strconv.Itoa(page)},
	}
	if err := s.errs.RecordImportError(ctx, rec); err != nil {
		logger.Error("import error not recorded", "operation", rec.Operation, "error", err)
		return
	}
	s.metrics.ImportError(rec.Operation)
}
