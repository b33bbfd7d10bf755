package venue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/pkg/logger"
)

// Query identifies the venue to resolve and the event it belongs to. The
// event supplies the tags and ranges copied onto a new place.
type Query struct {
	Name  string
	Lat   float64
	Lng   float64
	Event *domain.Event
}

// Resolver implements venue resolution. It is safe for concurrent use.
type Resolver struct {
	repo   Repository
	search PlaceSearcher
	photos PhotoFetcher
	images ImageStore
	actor  domain.Actor
	now    func() time.Time
}

// NewResolver creates a resolver. photos and images may be nil, in which
// case new places are created without a photo.
func NewResolver(repo Repository, search PlaceSearcher, photos PhotoFetcher, images ImageStore, actor domain.Actor) *Resolver {
	return &Resolver{
		repo:   repo,
		search: search,
		photos: photos,
		images: images,
		actor:  actor,
		now:    time.Now,
	}
}

// Resolve maps the venue to a place, creating it on first sight. It returns
// *NotFoundError when the provider has no candidate.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*domain.Place, error) {
	if q.Event == nil {
		return nil, fmt.Errorf("resolve venue %q: event is required", q.Name)
	}

	candidates, err := r.search.SearchPlaces(ctx, q.Name, q.Lat, q.Lng)
	if err != nil {
		return nil, fmt.Errorf("resolve venue %q: %w", q.Name, err)
	}
	if len(candidates) == 0 {
		return nil, &NotFoundError{Venue: q.Name}
	}
	top := candidates[0]
	snapshot := domain.PlaceSnapshot{
		Version: domain.PlaceSnapshotVersion,
		Rating:  top.Rating,
		Address: top.Address,
	}

	existing, err := r.repo.PlaceByGoogleID(ctx, top.PlaceID)
	switch {
	case err == nil:
		return r.refresh(ctx, existing, snapshot, q.Event.Tags)
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("lookup place %s: %w", top.PlaceID, err)
	}

	place, created, err := r.repo.GetOrCreatePlace(ctx, r.newPlace(top, snapshot, q.Event))
	if err != nil {
		return nil, fmt.Errorf("create place %s: %w", top.PlaceID, err)
	}
	if !created {
		// Another worker created it between lookup and insert.
		return r.refresh(ctx, place, snapshot, q.Event.Tags)
	}

	if len(top.PhotoRefs) > 0 {
		if err := r.attachPhoto(ctx, place, top.PhotoRefs[0]); err != nil {
			logger.Warn("place photo not stored", "place_id", place.ID, "google_place_id", place.GooglePlaceID, "error", err)
		}
	}
	return place, nil
}

func (r *Resolver) newPlace(c Candidate, snapshot domain.PlaceSnapshot, ev *domain.Event) *domain.Place {
	now := r.now().UTC()
	return &domain.Place{
		GooglePlaceID: c.PlaceID,
		Headline:      c.Name,
		Description:   c.Name,
		Lat:           c.Lat,
		Lng:           c.Lng,
		Address:       c.Address,
		Snapshot:      snapshot,
		PriceLower:    ev.PriceLower,
		PriceUpper:    ev.PriceUpper,
		DurationLower: ev.DurationLower,
		DurationUpper: ev.DurationUpper,
		PeopleLower:   ev.PeopleLower,
		PeopleUpper:   ev.PeopleUpper,
		Tags:          ev.Tags.Clone(),
		Source:        domain.Source{Type: domain.SourceEventbrite, ExternalID: ev.Source.ExternalID},
		CreatedBy:     r.actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// refresh merges the latest snapshot and the event's tags into an existing
// place. Name, coordinates and images are left alone. Nothing is written
// when neither changed. Only the event's tags are sent; the store unions
// them so tags written by concurrent resolutions survive.
func (r *Resolver) refresh(ctx context.Context, p *domain.Place, snapshot domain.PlaceSnapshot, tags domain.Tags) (*domain.Place, error) {
	changed := !p.Snapshot.Equal(snapshot)
	for k, v := range tags {
		if _, ok := p.Tags[k]; !ok || (v && !p.Tags[k]) {
			changed = true
			break
		}
	}
	if !changed {
		return p, nil
	}

	update := *p
	update.Snapshot = snapshot
	update.Tags = tags.Clone()
	update.UpdatedAt = r.now().UTC()
	if err := r.repo.UpdatePlaceSnapshot(ctx, &update); err != nil {
		return nil, fmt.Errorf("update place %s: %w", p.ID, err)
	}
	return &update, nil
}

func (r *Resolver) attachPhoto(ctx context.Context, p *domain.Place, ref string) error {
	if r.photos == nil || r.images == nil {
		return nil
	}
	data, err := r.photos.PhotoBytes(ctx, ref)
	if err != nil {
		return err
	}
	img, err := r.images.Put(ctx, data, p.Headline, r.actor.ID)
	if err != nil {
		return err
	}
	if err := r.repo.AddPlaceImage(ctx, p.ID, img); err != nil {
		return err
	}
	p.AddImage(img.ID)
	return nil
}
