package venue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/mymemorymaker/event-ingest/internal/domain"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu      sync.Mutex
	places  map[string]*domain.Place // keyed by google place id
	images  map[string]*domain.Image
	updates int
}

func newMockRepo() *mockRepo {
	return &mockRepo{places: make(map[string]*domain.Place), images: make(map[string]*domain.Image)}
}

func (m *mockRepo) PlaceByGoogleID(_ context.Context, gid string) (*domain.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[gid]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	c.Tags = p.Tags.Clone()
	return &c, nil
}

func (m *mockRepo) GetOrCreatePlace(_ context.Context, p *domain.Place) (*domain.Place, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.places[p.GooglePlaceID]; ok {
		c := *existing
		return &c, false, nil
	}
	p.ID = uuid.New().String()
	c := *p
	m.places[p.GooglePlaceID] = &c
	return p, true, nil
}

func (m *mockRepo) UpdatePlaceSnapshot(_ context.Context, p *domain.Place) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.places[p.GooglePlaceID]
	if !ok {
		return ErrNotFound
	}
	stored.Snapshot = p.Snapshot
	stored.Tags = stored.Tags.Merge(p.Tags)
	p.Tags = stored.Tags.Clone()
	stored.UpdatedAt = p.UpdatedAt
	m.updates++
	return nil
}

func (m *mockRepo) AddPlaceImage(_ context.Context, placeID string, img *domain.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.places {
		if p.ID == placeID {
			m.images[img.ID] = img
			p.AddImage(img.ID)
			return nil
		}
	}
	return ErrNotFound
}

type fakeSearch struct {
	mu      sync.Mutex
	results []Candidate
	err     error
	queries []string
}

func (f *fakeSearch) SearchPlaces(_ context.Context, q string, _, _ float64) ([]Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.results, f.err
}

type fakePhotos struct {
	data []byte
	err  error
	refs []string
}

func (f *fakePhotos) PhotoBytes(_ context.Context, ref string) ([]byte, error) {
	f.refs = append(f.refs, ref)
	return f.data, f.err
}

type fakeImages struct{ stored [][]byte }

func (f *fakeImages) Put(_ context.Context, data []byte, alt, by string) (*domain.Image, error) {
	f.stored = append(f.stored, data)
	return &domain.Image{ID: uuid.New().String(), S3Key: "places/x.jpg", AltText: alt, UploadedBy: by}, nil
}

var testActor = domain.Actor{ID: "actor-1", Email: "integrations@mymemorymaker.com"}

func rating(v float64) *float64 { return &v }

func mockPlace() Candidate {
	return Candidate{
		PlaceID:   "1234ABCD",
		Name:      "A Place",
		Address:   "1234, Place Avenue, Townland",
		Lat:       12.345,
		Lng:       1.234,
		Rating:    rating(4.55),
		PhotoRefs: []string{"gbdbdfbgdbgxbdthDGfgv"},
	}
}

func testEvent() *domain.Event {
	return &domain.Event{
		ID:            "ev-1",
		PriceLower:    47.70,
		PriceUpper:    53.00,
		DurationLower: 10,
		DurationUpper: 10,
		PeopleLower:   1,
		PeopleUpper:   100,
		Tags:          domain.NewTags("event_filter"),
		Source:        domain.Source{Type: domain.SourceEventbrite, ExternalID: "336417435357"},
	}
}

func TestResolve_NoResults_ReturnsNotFoundError(t *testing.T) {
	r := NewResolver(newMockRepo(), &fakeSearch{}, nil, nil, testActor)

	_, err := r.Resolve(context.Background(), Query{Name: "Ghost Venue", Event: testEvent()})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Venue != "Ghost Venue" {
		t.Errorf("expected venue name in error, got %q", nf.Venue)
	}
	if err.Error() != "unable to find a matching Google Maps place for Ghost Venue" {
		t.Errorf("unexpected message: %s", err)
	}
}

func TestResolve_SearchError_Propagates(t *testing.T) {
	r := NewResolver(newMockRepo(), &fakeSearch{err: errors.New("quota")}, nil, nil, testActor)

	_, err := r.Resolve(context.Background(), Query{Name: "V", Event: testEvent()})
	if err == nil {
		t.Fatal("expected error")
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		t.Error("search failure must not be reported as not found")
	}
}

func TestResolve_CreatesNewPlace(t *testing.T) {
	repo := newMockRepo()
	photos := &fakePhotos{data: []byte("ab12cd")}
	images := &fakeImages{}
	r := NewResolver(repo, &fakeSearch{results: []Candidate{mockPlace()}}, photos, images, testActor)
	ev := testEvent()

	p, err := r.Resolve(context.Background(), Query{Name: "Venue", Lat: 12.3, Lng: 1.2, Event: ev})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(repo.places) != 1 {
		t.Fatalf("expected 1 place, got %d", len(repo.places))
	}
	if p.GooglePlaceID != "1234ABCD" || p.Headline != "A Place" || p.Description != "A Place" {
		t.Errorf("unexpected identity fields: %+v", p)
	}
	if p.Lat != 12.345 || p.Lng != 1.234 {
		t.Errorf("unexpected coordinates: %v,%v", p.Lat, p.Lng)
	}
	if p.PriceLower != 47.70 || p.PriceUpper != 53.00 || p.DurationLower != 10 || p.PeopleUpper != 100 {
		t.Errorf("ranges not copied from event: %+v", p)
	}
	if p.Source.Type != domain.SourceEventbrite || p.Source.ExternalID != "336417435357" {
		t.Errorf("unexpected source: %+v", p.Source)
	}
	if p.CreatedBy != "actor-1" {
		t.Errorf("expected actor as creator, got %q", p.CreatedBy)
	}
	want := domain.PlaceSnapshot{Version: 1, Rating: rating(4.55), Address: "1234, Place Avenue, Townland"}
	if !p.Snapshot.Equal(want) {
		t.Errorf("unexpected snapshot: %+v", p.Snapshot)
	}
	if !p.Tags.Has("event_filter") {
		t.Error("expected event tags on new place")
	}

	if len(photos.refs) != 1 || photos.refs[0] != "gbdbdfbgdbgxbdthDGfgv" {
		t.Errorf("expected first photo fetched, got %v", photos.refs)
	}
	if len(images.stored) != 1 || string(images.stored[0]) != "ab12cd" {
		t.Errorf("expected photo bytes stored, got %v", images.stored)
	}
	if len(p.ImageIDs) != 1 || len(repo.images) != 1 {
		t.Fatalf("expected one attached image, got %v", p.ImageIDs)
	}
	img := repo.images[p.ImageIDs[0]]
	if img.AltText != "A Place" || img.UploadedBy != "actor-1" {
		t.Errorf("unexpected image: %+v", img)
	}
}

func TestResolve_PhotoFailureDoesNotFail(t *testing.T) {
	repo := newMockRepo()
	r := NewResolver(repo, &fakeSearch{results: []Candidate{mockPlace()}},
		&fakePhotos{err: errors.New("photo 500")}, &fakeImages{}, testActor)

	p, err := r.Resolve(context.Background(), Query{Name: "Venue", Event: testEvent()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(p.ImageIDs) != 0 {
		t.Errorf("expected no image, got %v", p.ImageIDs)
	}
	if len(repo.places) != 1 {
		t.Errorf("place should still be created")
	}
}

func TestResolve_Dedup_SecondResolutionReusesPlace(t *testing.T) {
	repo := newMockRepo()
	images := &fakeImages{}
	r := NewResolver(repo, &fakeSearch{results: []Candidate{mockPlace()}}, &fakePhotos{data: []byte{1}}, images, testActor)
	ctx := context.Background()

	first, err := r.Resolve(ctx, Query{Name: "Venue", Event: testEvent()})
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := r.Resolve(ctx, Query{Name: "Venue", Event: testEvent()})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same place, got %s and %s", first.ID, second.ID)
	}
	if len(repo.places) != 1 {
		t.Errorf("expected 1 place, got %d", len(repo.places))
	}
	if len(images.stored) != 1 {
		t.Errorf("photo should only be fetched for a new place, stored %d", len(images.stored))
	}
	if repo.updates != 0 {
		t.Errorf("unchanged snapshot and tags must not be written, got %d updates", repo.updates)
	}
}

func TestResolve_ExistingPlace_MergesSnapshotAndTags(t *testing.T) {
	repo := newMockRepo()
	repo.places["1234ABCD"] = &domain.Place{
		ID:            "place-1",
		GooglePlaceID: "1234ABCD",
		Headline:      "Original Name",
		Lat:           1,
		Lng:           2,
		Tags:          domain.NewTags("some_existing_filter"),
		Snapshot:      domain.PlaceSnapshot{Version: 1, Rating: rating(1.23), Address: "existing address"},
		ImageIDs:      []string{"img-1"},
	}
	photos := &fakePhotos{data: []byte{1}}
	r := NewResolver(repo, &fakeSearch{results: []Candidate{mockPlace()}}, photos, &fakeImages{}, testActor)

	p, err := r.Resolve(context.Background(), Query{Name: "Venue", Event: testEvent()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	stored := repo.places["1234ABCD"]
	if repo.updates != 1 {
		t.Errorf("expected 1 update, got %d", repo.updates)
	}
	if !stored.Tags.Has("some_existing_filter") || !stored.Tags.Has("event_filter") {
		t.Errorf("expected tag union, got %v", stored.Tags)
	}
	want := domain.PlaceSnapshot{Version: 1, Rating: rating(4.55), Address: "1234, Place Avenue, Townland"}
	if !stored.Snapshot.Equal(want) {
		t.Errorf("snapshot not refreshed: %+v", stored.Snapshot)
	}
	if stored.Headline != "Original Name" || stored.Lat != 1 || stored.Lng != 2 {
		t.Errorf("identity fields must not change: %+v", stored)
	}
	if len(photos.refs) != 0 {
		t.Error("existing place must not fetch a photo")
	}
	if p.ID != "place-1" || len(p.ImageIDs) != 1 || p.ImageIDs[0] != "img-1" {
		t.Errorf("images must be untouched: %+v", p)
	}
}

// lockstepRepo holds every lookup until all resolutions have read the place,
// so each update is computed from the same stale copy.
type lockstepRepo struct {
	*mockRepo
	read *sync.WaitGroup
}

func (l *lockstepRepo) PlaceByGoogleID(ctx context.Context, gid string) (*domain.Place, error) {
	p, err := l.mockRepo.PlaceByGoogleID(ctx, gid)
	l.read.Done()
	l.read.Wait()
	return p, err
}

func TestResolve_ConcurrentResolutionsKeepAllTags(t *testing.T) {
	base := newMockRepo()
	base.places["1234ABCD"] = &domain.Place{
		ID:            "place-1",
		GooglePlaceID: "1234ABCD",
		Tags:          domain.NewTags("moderation_tag"),
		Snapshot:      domain.PlaceSnapshot{Version: 1, Rating: rating(4.55), Address: "1234, Place Avenue, Townland"},
	}
	read := &sync.WaitGroup{}
	read.Add(2)
	r := NewResolver(&lockstepRepo{mockRepo: base, read: read}, &fakeSearch{results: []Candidate{mockPlace()}}, nil, nil, testActor)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, tag := range []string{"rock", "comedy"} {
		ev := testEvent()
		ev.Tags = domain.NewTags(tag)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), Query{Name: "Venue", Event: ev})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}

	stored := base.places["1234ABCD"].Tags
	for _, tag := range []string{"moderation_tag", "rock", "comedy"} {
		if !stored.Has(tag) {
			t.Errorf("tag %q lost, stored %v", tag, stored)
		}
	}
}

func TestResolve_RequiresEvent(t *testing.T) {
	r := NewResolver(newMockRepo(), &fakeSearch{results: []Candidate{mockPlace()}}, nil, nil, testActor)
	if _, err := r.Resolve(context.Background(), Query{Name: "V"}); err == nil {
		t.Error("expected error without event")
	}
}
