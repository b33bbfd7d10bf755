package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/eventbrite"
	"github.com/mymemorymaker/event-ingest/internal/pkg/distlock"
	"github.com/mymemorymaker/event-ingest/internal/pkg/httpretry"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu  sync.Mutex
	raw map[string]domain.RawEvent
}

func newMockRepo() *mockRepo { return &mockRepo{raw: make(map[string]domain.RawEvent)} }

func (m *mockRepo) UpsertRawEvent(_ context.Context, id string, data json.RawMessage, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.raw[id]
	r.EventID, r.Data, r.LastFetched = id, data, at
	m.raw[id] = r
	return nil
}

type mockErrorLog struct {
	mu   sync.Mutex
	rows []domain.ImportError
}

func (m *mockErrorLog) RecordImportError(_ context.Context, e *domain.ImportError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *e)
	return nil
}

type fakeSource struct {
	bodies map[string]string
	errs   map[string]error
}

func (f *fakeSource) Event(_ context.Context, id string) (json.RawMessage, error) {
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return json.RawMessage(f.bodies[id]), nil
}

// heldLocker reports every key in held as locked elsewhere.
type heldLocker struct{ held map[string]bool }

func (l heldLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.held[key] {
		return distlock.ErrNotAcquired
	}
	return fn(ctx)
}

func TestFetchBatch_StoresPayloads(t *testing.T) {
	repo := newMockRepo()
	src := &fakeSource{bodies: map[string]string{"1": `{"id":"1"}`, "2": `{"id":"2"}`}}
	f := NewFetcher(repo, &mockErrorLog{}, src, nil, nil)

	res := f.FetchBatch(context.Background(), []string{"1", "2"})
	if res.Fetched != 2 || res.Failed != 0 || res.Requested != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if string(repo.raw["2"].Data) != `{"id":"2"}` {
		t.Errorf("payload not stored verbatim: %s", repo.raw["2"].Data)
	}
}

func TestFetchBatch_OverwritesOnRefetch(t *testing.T) {
	repo := newMockRepo()
	src := &fakeSource{bodies: map[string]string{"1": `{"v":1}`}}
	f := NewFetcher(repo, &mockErrorLog{}, src, nil, nil)
	f.now = func() time.Time { return time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC) }
	f.FetchBatch(context.Background(), []string{"1"})

	src.bodies["1"] = `{"v":2}`
	f.now = func() time.Time { return time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC) }
	f.FetchBatch(context.Background(), []string{"1"})

	if len(repo.raw) != 1 {
		t.Fatalf("expected one raw record, got %d", len(repo.raw))
	}
	if string(repo.raw["1"].Data) != `{"v":2}` || repo.raw["1"].LastFetched.Day() != 2 {
		t.Errorf("expected overwrite, got %+v", repo.raw["1"])
	}
}

func TestFetchBatch_FailureDoesNotAbortBatch(t *testing.T) {
	repo := newMockRepo()
	errs := &mockErrorLog{}
	src := &fakeSource{
		bodies: map[string]string{"1": `{}`, "3": `{}`},
		errs: map[string]error{
			"2": httpretry.StatusError("https://www.eventbriteapi.com/v3/events/2/?token=secret", 404),
			"4": &eventbrite.ParseError{Field: "body", Err: errors.New("not JSON")},
		},
	}
	f := NewFetcher(repo, errs, src, nil, nil)

	res := f.FetchBatch(context.Background(), []string{"1", "2", "3", "4"})
	if res.Fetched != 2 || res.Failed != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(errs.rows) != 2 {
		t.Fatalf("expected 2 import errors, got %d", len(errs.rows))
	}
	if errs.rows[0].Operation != domain.OpFetchEvent || errs.rows[0].Args["event_id"] != "2" {
		t.Errorf("unexpected import error: %+v", errs.rows[0])
	}
	if _, ok := repo.raw["2"]; ok {
		t.Error("failed id must not be stored")
	}
}

func TestFetchBatch_SkipsLockedIDs(t *testing.T) {
	repo := newMockRepo()
	src := &fakeSource{bodies: map[string]string{"1": `{}`, "2": `{}`}}
	f := NewFetcher(repo, &mockErrorLog{}, src, heldLocker{held: map[string]bool{LockKey("2"): true}}, nil)

	res := f.FetchBatch(context.Background(), []string{"1", "2"})
	if res.Fetched != 1 || res.Skipped != 1 || res.Failed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestFetchBatch_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := newMockRepo()
	f := NewFetcher(repo, &mockErrorLog{}, &fakeSource{}, nil, nil)

	res := f.FetchBatch(ctx, []string{"1", "2"})
	if res.Fetched != 0 || len(repo.raw) != 0 {
		t.Errorf("expected nothing fetched, got %+v", res)
	}
}

func TestBatchResult_Add(t *testing.T) {
	var total BatchResult
	total.Add(BatchResult{Requested: 2, Fetched: 1, Failed: 1})
	total.Add(BatchResult{Requested: 3, Fetched: 2, Skipped: 1})
	if total != (BatchResult{Requested: 5, Fetched: 3, Failed: 1, Skipped: 1}) {
		t.Errorf("unexpected total: %+v", total)
	}
}
