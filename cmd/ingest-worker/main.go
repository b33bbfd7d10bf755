package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mymemorymaker/event-ingest/internal/app"
	"github.com/mymemorymaker/event-ingest/internal/config"
	"github.com/mymemorymaker/event-ingest/internal/metrics"
	"github.com/mymemorymaker/event-ingest/internal/pkg/httputil"
	"github.com/mymemorymaker/event-ingest/internal/pkg/logger"
	"github.com/mymemorymaker/event-ingest/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	once := flag.String("once", "", "run a single stage (discover, fetch, transform, full) and exit")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for /metrics and /status, empty to disable")
	flag.Parse()

	log.Println("Starting event ingest worker...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevelName(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to wire pipeline: %v", err)
	}
	defer pipeline.Close()
	log.Printf("Pipeline ready, writes attributed to %s", pipeline.Actor.Email)

	if *once != "" {
		stage, ok := worker.ParseStage(*once)
		if !ok {
			log.Fatalf("Unknown stage %q", *once)
		}
		run, err := pipeline.Worker.RunStage(ctx, stage)
		if err != nil {
			log.Fatalf("Stage %s failed: %v", stage, err)
		}
		log.Printf("Stage %s finished in %s", stage, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
		return
	}

	var srv *http.Server
	if *metricsAddr != "" {
		r := chi.NewRouter()
		r.Method(http.MethodGet, "/metrics", metrics.Handler(pipeline.Registry))
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			httputil.OK(w, map[string]any{"stages": pipeline.Worker.Status()})
		})
		srv = &http.Server{Addr: *metricsAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Printf("Metrics listening on %s", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	stopped := make(chan struct{})
	go func() {
		pipeline.Worker.Start(ctx)
		close(stopped)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	<-stopped

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}
	log.Println("Worker stopped")
}
