package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mymemorymaker/event-ingest/internal/api"
	"github.com/mymemorymaker/event-ingest/internal/app"
	"github.com/mymemorymaker/event-ingest/internal/config"
	"github.com/mymemorymaker/event-ingest/internal/metrics"
	"github.com/mymemorymaker/event-ingest/internal/pkg/logger"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

// extractHost returns the host part of a Postgres DSN for logging.
func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	log.Println("Starting event ingest ops server...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevelName(cfg.Log.Level)

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to wire pipeline: %v", err)
	}
	defer pipeline.Close()
	log.Printf("Connected to database at %s, acting as %s", extractHost(cfg.Database.URL), pipeline.Actor.Email)

	// Runs are on demand here; the ingest worker owns the schedule.
	pipeline.Worker.SetBaseContext(ctx)
	health := api.NewHealthChecker(pipeline.DB, pipeline.Redis, s3OrNil(pipeline), cfg.Storage.S3Bucket)
	handlers := api.NewHandlers(pipeline.Worker, pipeline.ImportErrors)
	router := api.SetupRoutes(handlers, health, metrics.Handler(pipeline.Registry), cfg.Server.AllowedOrigins)
	server := api.NewServer(router)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Cancelling the base context stops triggered runs before Wait.
	cancel()
	pipeline.Worker.Wait()
	log.Println("Server stopped")
}

func s3OrNil(a *app.App) api.BucketHeader {
	if a.S3 == nil {
		return nil
	}
	return a.S3
}
