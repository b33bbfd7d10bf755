package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/pkg/httputil"
	"github.com/mymemorymaker/event-ingest/internal/worker"
)

const (
	defaultImportErrorLimit = 50
	maxImportErrorLimit     = 500
)

// Runner starts stages and reports their status.
type Runner interface {
	Trigger(stage worker.Stage) error
	Status() []worker.StageStatus
}

// ImportErrorLister reads the newest import error rows.
type ImportErrorLister interface {
	Recent(ctx context.Context, limit int) ([]domain.ImportError, error)
}

// Handlers serves the ops endpoints.
type Handlers struct {
	runner Runner
	errs   ImportErrorLister
}

// NewHandlers creates the ops handlers.
func NewHandlers(runner Runner, errs ImportErrorLister) *Handlers {
	return &Handlers{runner: runner, errs: errs}
}

// TriggerRun starts a stage in the background.
//
//	POST /api/runs/{stage}
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "stage")
	stage, ok := worker.ParseStage(name)
	if !ok {
		httputil.BadRequest(w, fmt.Sprintf("unknown stage %q", name))
		return
	}

	err := h.runner.Trigger(stage)
	switch {
	case errors.Is(err, worker.ErrStageRunning):
		httputil.Conflict(w, fmt.Sprintf("stage %s is already running", stage))
	case err != nil:
		httputil.InternalError(w, r, err)
	default:
		httputil.Accepted(w, map[string]string{"stage": string(stage), "status": "started"})
	}
}

// ListRuns reports the last run of every stage.
//
//	GET /api/runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"stages": h.runner.Status()})
}

// ListImportErrors returns the newest import errors.
//
//	GET /api/import-errors?limit=N
func (h *Handlers) ListImportErrors(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.IntQuery(r, "limit", defaultImportErrorLimit, maxImportErrorLimit)
	if !ok {
		httputil.BadRequest(w, "limit must be a positive integer")
		return
	}
	rows, err := h.errs.Recent(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	httputil.OK(w, map[string]any{"import_errors": rows, "count": len(rows)})
}
