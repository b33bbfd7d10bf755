package transform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/eventbrite"
	"github.com/mymemorymaker/event-ingest/internal/metrics"
	"github.com/mymemorymaker/event-ingest/internal/pkg/distlock"
	"github.com/mymemorymaker/event-ingest/internal/pkg/logger"
	"github.com/mymemorymaker/event-ingest/internal/service/fetch"
	"github.com/mymemorymaker/event-ingest/internal/service/venue"
)

// Outcome is the result of transforming one external id.
type Outcome string

const (
	OutcomeCreated             Outcome = "created"
	OutcomeUpdated             Outcome = "updated"
	OutcomeUnchanged           Outcome = "unchanged"
	OutcomeNoRawData           Outcome = "no_raw_data"
	OutcomeDuplicatesCollapsed Outcome = "duplicates_collapsed"
	OutcomeSkipped             Outcome = "skipped" // locked by another process
	OutcomeFailed              Outcome = "failed"
)

// Summary counts outcomes over a batch.
type Summary struct {
	Candidates int             `json:"candidates"`
	Outcomes   map[Outcome]int `json:"outcomes"`
}

// Count records one outcome.
func (s *Summary) Count(o Outcome) {
	if s.Outcomes == nil {
		s.Outcomes = make(map[Outcome]int)
	}
	s.Outcomes[o]++
}

// Add accumulates another summary.
func (s *Summary) Add(o Summary) {
	s.Candidates += o.Candidates
	for k, v := range o.Outcomes {
		if s.Outcomes == nil {
			s.Outcomes = make(map[Outcome]int)
		}
		s.Outcomes[k] += v
	}
}

// Deps are the collaborators of a Transformer. Locker and Metrics may be nil.
type Deps struct {
	Repo         Repository
	Errors       ErrorLog
	Descriptions DescriptionSource
	Tags         TagMapper
	Venues       VenueResolver
	Candidates   Candidates
	Locker       Locker
	Metrics      *metrics.Metrics
	Actor        domain.Actor
	Concurrency  int
}

// Transformer rebuilds catalogue events from raw payloads. It is safe for
// concurrent use on distinct ids.
type Transformer struct {
	Deps
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewTransformer creates a transformer.
func NewTransformer(d Deps) *Transformer {
	if d.Concurrency <= 0 {
		d.Concurrency = 1
	}
	return &Transformer{Deps: d, sanitizer: descriptionPolicy(), now: time.Now}
}

// ProcessDue transforms every id the scheduler reports as due. Chunks run
// concurrently up to the configured limit; per-id failures are counted in
// the summary and never returned.
func (t *Transformer) ProcessDue(ctx context.Context) (Summary, error) {
	ids, err := t.Candidates.TransformCandidates(ctx)
	if err != nil {
		return Summary{}, err
	}
	ids = distinct(ids)

	var (
		mu  sync.Mutex
		sum = Summary{Outcomes: make(map[Outcome]int)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.Concurrency)
	for _, chunk := range t.Candidates.Chunk(ids) {
		g.Go(func() error {
			s := t.TransformBatch(gctx, chunk)
			mu.Lock()
			sum.Add(s)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("transform run finished", "candidates", sum.Candidates, "outcomes", sum.Outcomes)
	return sum, ctx.Err()
}

// TransformBatch transforms ids one after another.
func (t *Transformer) TransformBatch(ctx context.Context, ids []string) Summary {
	sum := Summary{Outcomes: make(map[Outcome]int)}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		sum.Candidates++
		outcome, _ := t.TransformOne(ctx, id)
		sum.Count(outcome)
	}
	return sum
}

// TransformOne transforms a single external id. A returned error always
// comes with OutcomeFailed and has already been logged and recorded.
func (t *Transformer) TransformOne(ctx context.Context, externalID string) (Outcome, error) {
	var (
		outcome Outcome
		err     error
	)
	run := func(ctx context.Context) error {
		outcome, err = t.transformLocked(ctx, externalID)
		return nil
	}
	if t.Locker != nil {
		if lerr := t.Locker.WithLock(ctx, fetch.LockKey(externalID), run); lerr != nil {
			if errors.Is(lerr, distlock.ErrNotAcquired) {
				t.Metrics.Transform(string(OutcomeSkipped))
				return OutcomeSkipped, nil
			}
			outcome, err = OutcomeFailed, fmt.Errorf("lock event %s: %w", externalID, lerr)
		}
	} else {
		_ = run(ctx)
	}

	if err != nil {
		outcome = OutcomeFailed
		t.recordError(ctx, domain.OpTransformEvent, err, map[string]string{"event_id": externalID})
	}
	t.Metrics.Transform(string(outcome))
	return outcome, err
}

func (t *Transformer) transformLocked(ctx context.Context, id string) (Outcome, error) {
	raw, err := t.Repo.RawEvent(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return OutcomeNoRawData, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("load raw event %s: %w", id, err)
	}

	outcome, err := t.transform(ctx, id, raw)

	if merr := t.Repo.MarkParsed(ctx, id, t.now().UTC()); merr != nil {
		logger.Error("raw event not marked parsed", "event_id", id, "error", merr)
		if err == nil {
			return OutcomeFailed, fmt.Errorf("mark parsed %s: %w", id, merr)
		}
	}
	return outcome, err
}

func (t *Transformer) transform(ctx context.Context, id string, raw *domain.RawEvent) (Outcome, error) {
	events, err := t.Repo.EventsBySource(ctx, domain.SourceEventbrite, id)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("load events for %s: %w", id, err)
	}
	if len(events) > 1 {
		return t.collapseDuplicates(ctx, id, events)
	}

	details, err := eventbrite.ParseDetails(raw.Data)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("event %s: %w", id, err)
	}

	var work *domain.Event
	outcome := OutcomeCreated
	if len(events) == 1 {
		if !hasChanged(events[0], details) {
			return OutcomeUnchanged, nil
		}
		work = events[0].Clone()
		outcome = OutcomeUpdated
	} else {
		work = &domain.Event{
			ID:        uuid.New().String(),
			CreatedAt: t.now().UTC(),
			Tags:      domain.Tags{},
		}
	}

	t.populate(work, id, details)

	html, err := t.Descriptions.Description(ctx, id)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("event %s: %w", id, err)
	}
	work.Description = t.sanitizer.Sanitize(html)

	var newImages []*domain.Image
	if details.LogoURL != "" {
		img, err := t.coverImage(ctx, work, outcome == OutcomeCreated, details)
		if err != nil {
			return OutcomeFailed, err
		}
		if img != nil {
			newImages = append(newImages, img)
			work.AddImage(img.ID)
		}
	}

	place, err := t.Venues.Resolve(ctx, venue.Query{
		Name:  details.Venue.Name,
		Lat:   details.Venue.Lat,
		Lng:   details.Venue.Lng,
		Event: work,
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("event %s: %w", id, err)
	}
	work.AddPlace(place.ID)

	if err := t.Repo.SaveEvent(ctx, work, newImages); err != nil {
		return OutcomeFailed, fmt.Errorf("save event %s: %w", id, err)
	}
	return outcome, nil
}

// hasChanged compares the payload's changed stamp with the event's last
// update. Without a stamp, only an event never filled in counts as changed.
func hasChanged(ev *domain.Event, d *eventbrite.Details) bool {
	if d.Changed == nil {
		return !ev.IsPopulated()
	}
	return d.Changed.After(ev.LastUpdated)
}

func (t *Transformer) populate(ev *domain.Event, id string, d *eventbrite.Details) {
	hours := d.DurationHours()

	ev.ResetModeration()
	ev.LastUpdated = t.now().UTC()
	ev.CreatedBy = t.Actor.ID
	ev.Headline = d.Name
	ev.URL = d.URL
	ev.PriceLower = d.PriceLower
	ev.PriceUpper = d.PriceUpper
	ev.DurationLower = hours
	ev.DurationUpper = hours
	ev.PeopleLower = domain.DefaultPeopleLower
	ev.PeopleUpper = domain.DefaultPeopleUpper
	ev.Dates = []domain.DateRange{{Start: d.Start, End: d.End}}
	ev.Source = domain.Source{Type: domain.SourceEventbrite, ExternalID: id}
	ev.Tags = ev.Tags.Merge(t.Tags.Tags(d.CategoryID, d.SubcategoryID))
}

// coverImage returns a new link image for the logo, or nil when the event
// already holds an image with the same URL.
func (t *Transformer) coverImage(ctx context.Context, ev *domain.Event, isNew bool, d *eventbrite.Details) (*domain.Image, error) {
	if !isNew {
		_, err := t.Repo.LinkedImageByURL(ctx, ev.ID, d.LogoURL)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup cover image for %s: %w", ev.ID, err)
		}
	}
	return &domain.Image{
		ID:         uuid.New().String(),
		UploadedBy: t.Actor.ID,
		LinkURL:    d.LogoURL,
		AltText:    d.Name,
		UploadedAt: t.now().UTC(),
	}, nil
}

// collapseDuplicates keeps the oldest event for the id and deletes the rest.
func (t *Transformer) collapseDuplicates(ctx context.Context, id string, events []*domain.Event) (Outcome, error) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	keep := events[0]
	drop := make([]string, 0, len(events)-1)
	for _, ev := range events[1:] {
		drop = append(drop, ev.ID)
	}

	if err := t.Repo.DeleteEvents(ctx, drop); err != nil {
		return OutcomeFailed, fmt.Errorf("delete duplicate events for %s: %w", id, err)
	}
	logger.Warn("duplicate events collapsed", "event_id", id, "kept", keep.ID, "deleted", len(drop))
	t.recordError(ctx, domain.OpDuplicateEvents,
		fmt.Errorf("%d events for external id %s, kept %s", len(events), id, keep.ID),
		map[string]string{"event_id": id, "kept": keep.ID, "deleted": strings.Join(drop, ",")})
	return OutcomeDuplicatesCollapsed, nil
}

func (t *Transformer) recordError(ctx context.Context, op string, cause error, args map[string]string) {
	if op != domain.OpDuplicateEvents {
		logger.Warn("event transform failed", "event_id", args["event_id"], "error", cause)
	}
	rec := &domain.ImportError{Operation: op, Message: cause.Error(), Args: args}
	if err := t.Errors.RecordImportError(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("import error not recorded", "operation", op, "error", err)
		return
	}
	t.Metrics.ImportError(op)
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
