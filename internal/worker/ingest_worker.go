package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mymemorymaker/event-ingest/internal/metrics"
	"github.com/mymemorymaker/event-ingest/internal/pkg/distlock"
	"github.com/mymemorymaker/event-ingest/internal/service/discovery"
	"github.com/mymemorymaker/event-ingest/internal/service/fetch"
	"github.com/mymemorymaker/event-ingest/internal/service/transform"
)

// =============================================================================
// INGEST WORKER — Discovery, Detail Fetch and Transform Stages
// =============================================================================
// Stages run under their own time budget and a cluster-wide stage lock, so
// only one instance of a stage runs at a time across every worker and the
// ops server. "full" runs discover, fetch and transform in order.

// Stage names a pipeline stage.
type Stage string

const (
	StageDiscover  Stage = "discover"
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
	StageFull      Stage = "full"
)

// Stages lists every stage in run order.
var Stages = []Stage{StageDiscover, StageFetch, StageTransform, StageFull}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, bool) {
	for _, st := range Stages {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

var (
	// ErrStageRunning means this process is already running the stage.
	ErrStageRunning = errors.New("stage already running")
	// ErrUnknownStage is returned for names ParseStage rejects.
	ErrUnknownStage = errors.New("unknown stage")
)

// Scanner discovers external ids.
type Scanner interface {
	Scan(ctx context.Context) (discovery.Result, error)
}

// FetchPlanner picks the ids due for a detail fetch.
type FetchPlanner interface {
	FetchCandidates(ctx context.Context) ([]string, error)
	Chunk(ids []string) [][]string
}

// BatchFetcher fetches detail payloads for a batch of ids.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, ids []string) fetch.BatchResult
}

// DueTransformer transforms every id due for a transform.
type DueTransformer interface {
	ProcessDue(ctx context.Context) (transform.Summary, error)
}

// StageLocker serializes stages across processes.
type StageLocker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Timeouts are the per-stage time budgets.
type Timeouts struct {
	Discover  time.Duration
	Fetch     time.Duration
	Transform time.Duration
	Full      time.Duration
}

func (t Timeouts) of(s Stage) time.Duration {
	switch s {
	case StageDiscover:
		return t.Discover
	case StageFetch:
		return t.Fetch
	case StageTransform:
		return t.Transform
	default:
		return t.Full
	}
}

// IngestConfig configures an IngestWorker.
type IngestConfig struct {
	Interval    time.Duration
	Timeouts    Timeouts
	Concurrency int
}

// Run is the record of one stage execution.
type Run struct {
	Stage      Stage              `json:"stage"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Error      string             `json:"error,omitempty"`
	Discovery  *discovery.Result  `json:"discovery,omitempty"`
	Fetch      *fetch.BatchResult `json:"fetch,omitempty"`
	Transform  *transform.Summary `json:"transform,omitempty"`
}

// StageStatus reports whether a stage is running and how its last run went.
type StageStatus struct {
	Stage   Stage `json:"stage"`
	Running bool  `json:"running"`
	LastRun *Run  `json:"last_run,omitempty"`
}

// IngestWorker runs the ingestion stages on a schedule and on demand.
type IngestWorker struct {
	scanner     Scanner
	planner     FetchPlanner
	fetcher     BatchFetcher
	transformer DueTransformer
	locker      StageLocker
	metrics     *metrics.Metrics
	cfg         IngestConfig

	mu      sync.Mutex
	baseCtx context.Context
	running map[Stage]bool
	last    map[Stage]*Run
	wg      sync.WaitGroup
}

// NewIngestWorker creates a worker. locker and m may be nil.
func NewIngestWorker(scanner Scanner, planner FetchPlanner, fetcher BatchFetcher, transformer DueTransformer,
	locker StageLocker, m *metrics.Metrics, cfg IngestConfig) *IngestWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &IngestWorker{
		scanner:     scanner,
		planner:     planner,
		fetcher:     fetcher,
		transformer: transformer,
		locker:      locker,
		metrics:     m,
		cfg:         cfg,
		baseCtx:     context.Background(),
		running:     make(map[Stage]bool),
		last:        make(map[Stage]*Run),
	}
}

// Start runs a full pass immediately and then every interval. It blocks
// until ctx is cancelled and waits for triggered runs to finish.
func (w *IngestWorker) Start(ctx context.Context) {
	w.SetBaseContext(ctx)

	log.Printf("[IngestWorker] Starting (interval=%s, concurrency=%d)", w.cfg.Interval, w.cfg.Concurrency)
	w.scheduled(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[IngestWorker] Stopping")
			w.wg.Wait()
			return
		case <-ticker.C:
			w.scheduled(ctx)
		}
	}
}

// SetBaseContext sets the context triggered runs derive from. Cancelling it
// stops in-flight triggered runs. Start sets it to its own context.
func (w *IngestWorker) SetBaseContext(ctx context.Context) {
	w.mu.Lock()
	w.baseCtx = ctx
	w.mu.Unlock()
}

func (w *IngestWorker) scheduled(ctx context.Context) {
	if _, err := w.RunStage(ctx, StageFull); err != nil {
		log.Printf("[IngestWorker] Scheduled run: %v", err)
	}
}

// Trigger starts a stage in the background. It fails fast with
// ErrStageRunning when the stage is already running in this process.
func (w *IngestWorker) Trigger(stage Stage) error {
	if _, ok := ParseStage(string(stage)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	if !w.begin(stage) {
		return ErrStageRunning
	}

	w.mu.Lock()
	ctx := w.baseCtx
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.end(stage)
		if _, err := w.execute(ctx, stage); err != nil {
			log.Printf("[IngestWorker] Triggered %s run: %v", stage, err)
		}
	}()
	return nil
}

// Wait blocks until every triggered run has finished.
func (w *IngestWorker) Wait() { w.wg.Wait() }

// RunStage runs a stage synchronously.
func (w *IngestWorker) RunStage(ctx context.Context, stage Stage) (*Run, error) {
	if _, ok := ParseStage(string(stage)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	if !w.begin(stage) {
		return nil, ErrStageRunning
	}
	defer w.end(stage)
	return w.execute(ctx, stage)
}

// Status reports every stage in run order.
func (w *IngestWorker) Status() []StageStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]StageStatus, 0, len(Stages))
	for _, s := range Stages {
		st := StageStatus{Stage: s, Running: w.running[s]}
		if r := w.last[s]; r != nil {
			c := *r
			st.LastRun = &c
		}
		out = append(out, st)
	}
	return out
}

func (w *IngestWorker) begin(s Stage) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running[s] {
		return false
	}
	w.running[s] = true
	return true
}

func (w *IngestWorker) end(s Stage) {
	w.mu.Lock()
	delete(w.running, s)
	w.mu.Unlock()
}

// execute runs the stage body under its timeout and stage lock and records
// the outcome. The caller holds the in-process running flag.
func (w *IngestWorker) execute(ctx context.Context, stage Stage) (*Run, error) {
	run := &Run{Stage: stage, StartedAt: time.Now().UTC()}
	log.Printf("[IngestWorker] Stage %s starting", stage)

	if d := w.cfg.Timeouts.of(stage); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	body := func(ctx context.Context) error { return w.runBody(ctx, run) }
	var err error
	if w.locker != nil {
		err = w.locker.WithLock(ctx, "stage:"+string(stage), body)
	} else {
		err = body(ctx)
	}

	run.FinishedAt = time.Now().UTC()
	took := run.FinishedAt.Sub(run.StartedAt)
	if err != nil {
		run.Error = err.Error()
	}
	w.metrics.StageRun(string(stage), took, err)

	w.mu.Lock()
	w.last[stage] = run
	w.mu.Unlock()

	if errors.Is(err, distlock.ErrNotAcquired) {
		log.Printf("[IngestWorker] Stage %s skipped: running on another instance", stage)
	} else if err != nil {
		log.Printf("[IngestWorker] Stage %s failed after %s: %v", stage, took.Round(time.Millisecond), err)
	} else {
		log.Printf("[IngestWorker] Stage %s completed in %s", stage, took.Round(time.Millisecond))
	}
	return run, err
}

func (w *IngestWorker) runBody(ctx context.Context, run *Run) error {
	switch run.Stage {
	case StageDiscover:
		res, err := w.scanner.Scan(ctx)
		run.Discovery = &res
		return err
	case StageFetch:
		res, err := w.fetch(ctx)
		run.Fetch = &res
		return err
	case StageTransform:
		sum, err := w.transformer.ProcessDue(ctx)
		run.Transform = &sum
		return err
	case StageFull:
		return w.full(ctx, run)
	}
	return fmt.Errorf("%w: %q", ErrUnknownStage, run.Stage)
}

// full runs the three stages in order. A failed stage does not stop the
// later ones; their errors are joined.
func (w *IngestWorker) full(ctx context.Context, run *Run) error {
	var errs []error
	for _, s := range []Stage{StageDiscover, StageFetch, StageTransform} {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		sub, err := w.RunStage(ctx, s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
		}
		if sub == nil {
			continue
		}
		switch s {
		case StageDiscover:
			run.Discovery = sub.Discovery
		case StageFetch:
			run.Fetch = sub.Fetch
		case StageTransform:
			run.Transform = sub.Transform
		}
	}
	return errors.Join(errs...)
}

// fetch splits the due ids into chunks and fetches chunks concurrently.
func (w *IngestWorker) fetch(ctx context.Context) (fetch.BatchResult, error) {
	var total fetch.BatchResult
	ids, err := w.planner.FetchCandidates(ctx)
	if err != nil {
		return total, fmt.Errorf("fetch candidates: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, chunk := range w.planner.Chunk(ids) {
		g.Go(func() error {
			res := w.fetcher.FetchBatch(gctx, chunk)
			mu.Lock()
			total.Add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("[IngestWorker] Fetched %d/%d (failed=%d, skipped=%d)", total.Fetched, total.Requested, total.Failed, total.Skipped)
	return total, ctx.Err()
}
