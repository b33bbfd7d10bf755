// Package app wires the ingestion pipeline from configuration. Both the
// scheduled worker and the ops server build their dependencies here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/mymemorymaker/event-ingest/internal/categories"
	"github.com/mymemorymaker/event-ingest/internal/config"
	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/eventbrite"
	"github.com/mymemorymaker/event-ingest/internal/metrics"
	"github.com/mymemorymaker/event-ingest/internal/pkg/distlock"
	"github.com/mymemorymaker/event-ingest/internal/pkg/httpretry"
	"github.com/mymemorymaker/event-ingest/internal/places"
	"github.com/mymemorymaker/event-ingest/internal/repository/postgres"
	"github.com/mymemorymaker/event-ingest/internal/service/discovery"
	"github.com/mymemorymaker/event-ingest/internal/service/fetch"
	"github.com/mymemorymaker/event-ingest/internal/service/schedule"
	"github.com/mymemorymaker/event-ingest/internal/service/transform"
	"github.com/mymemorymaker/event-ingest/internal/service/venue"
	"github.com/mymemorymaker/event-ingest/internal/storage"
	"github.com/mymemorymaker/event-ingest/internal/worker"
)

const lockPrefix = "locks"

// App holds the wired pipeline and the clients it owns.
type App struct {
	Config       *config.Config
	DB           *sql.DB
	Redis        *redis.Client // nil when locks fall back to Postgres
	S3           *s3.Client    // nil when no image bucket is configured
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Actor        domain.Actor
	ImportErrors *postgres.ImportErrorRepo
	Worker       *worker.IngestWorker
}

// transformStore joins the raw payload and event stores into the single
// repository the transformer expects.
type transformStore struct {
	*postgres.RawEventRepo
	*postgres.EventRepo
}

// New connects to every backing service and wires the pipeline.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Printf("[app] Redis locks at %s", cfg.Redis.Addr)
	} else {
		log.Println("[app] REDIS_ADDR not set, using Postgres advisory locks")
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	a.Actor, err = postgres.NewActorRepo(db).EnsureActor(ctx, domain.IntegrationsActor)
	if err != nil {
		a.Close()
		return nil, err
	}

	var images venue.ImageStore
	if cfg.Storage.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.S3Region))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		a.S3 = s3.NewFromConfig(awsCfg)
		images = storage.NewImageStore(a.S3, storage.Config{
			Bucket: cfg.Storage.S3Bucket,
			Prefix: cfg.Storage.S3Prefix,
		})
	} else {
		log.Println("[app] IMAGES_S3_BUCKET not set, place photos will not be stored")
	}

	timeout := time.Duration(cfg.Eventbrite.TimeoutSeconds) * time.Second
	httpClient := httpretry.NewHTTPClient(timeout)
	retrying := httpretry.NewClient(httpClient, RetryPolicy(cfg.Ingest.Retry),
		httpretry.WithRetryHook(func(req *http.Request, attempt, status int, err error) {
			a.Metrics.HTTPRetry(req.URL.Host)
		}))

	eb := eventbrite.NewClient(retrying, eventbrite.Config{
		APIBaseURL: cfg.Eventbrite.APIBaseURL,
		ListingURL: cfg.Eventbrite.ListingURL,
		Token:      cfg.Eventbrite.APIKey,
	})

	placesClient, err := places.NewClient(places.Config{
		APIKey:       cfg.GoogleMaps.APIKey,
		BaseURL:      cfg.GoogleMaps.BaseURL,
		RadiusMeters: cfg.GoogleMaps.SearchRadiusMeters,
		PhotoWidth:   cfg.GoogleMaps.PhotoMaxWidth,
	}, httpClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	eventLocks := distlock.NewFactory(a.Redis, db, lockPrefix, time.Duration(cfg.Ingest.EventLockTTLSeconds)*time.Second)
	stageLocks := distlock.NewFactory(a.Redis, db, lockPrefix, time.Duration(cfg.Ingest.FullRunTimeoutMinutes)*time.Minute)

	a.ImportErrors = postgres.NewImportErrorRepo(db)
	batcher := schedule.NewBatcher(postgres.NewScheduleRepo(db), schedule.Options{
		RecencyWindow:  cfg.Ingest.RecencyWindow(),
		FetchLimit:     cfg.Ingest.FetchBatchLimit,
		TransformLimit: cfg.Ingest.TransformBatchLimit,
		ChunkSize:      cfg.Ingest.ChunkSize,
	})
	scanner := discovery.NewScanner(postgres.NewExternalEventRepo(db), a.ImportErrors, eb, discovery.Options{
		MaxPages: cfg.Eventbrite.MaxPages,
		Marker:   cfg.Eventbrite.NoResultsMarker,
	}, a.Metrics)
	rawEvents := postgres.NewRawEventRepo(db)
	fetcher := fetch.NewFetcher(rawEvents, a.ImportErrors, eb, eventLocks, a.Metrics)
	mapper := categories.Default()
	log.Printf("[app] Category table loaded (%d categories)", mapper.Len())
	resolver := venue.NewResolver(postgres.NewPlaceRepo(db), placesClient, placesClient, images, a.Actor)
	transformer := transform.NewTransformer(transform.Deps{
		Repo:         transformStore{RawEventRepo: rawEvents, EventRepo: postgres.NewEventRepo(db)},
		Errors:       a.ImportErrors,
		Descriptions: eb,
		Tags:         mapper,
		Venues:       resolver,
		Candidates:   batcher,
		Locker:       eventLocks,
		Metrics:      a.Metrics,
		Actor:        a.Actor,
		Concurrency:  cfg.Ingest.Concurrency,
	})

	timeouts := worker.Timeouts{
		Discover:  time.Duration(cfg.Ingest.DiscoverTimeoutMinutes) * time.Minute,
		Fetch:     time.Duration(cfg.Ingest.FetchTimeoutMinutes) * time.Minute,
		Transform: time.Duration(cfg.Ingest.TransformTimeoutMinutes) * time.Minute,
		Full:      time.Duration(cfg.Ingest.FullRunTimeoutMinutes) * time.Minute,
	}
	a.Worker = worker.NewIngestWorker(scanner, batcher, fetcher, transformer, stageLocks, a.Metrics, worker.IngestConfig{
		Interval:    cfg.Ingest.Interval(),
		Timeouts:    timeouts,
		Concurrency: cfg.Ingest.Concurrency,
	})
	return a, nil
}

// RetryPolicy builds the backoff policy from configuration.
func RetryPolicy(c config.RetryConfig) httpretry.Policy {
	backoff := httpretry.ExponentialBackoff(
		time.Duration(c.BaseDelayMS)*time.Millisecond,
		time.Duration(c.MaxDelayMS)*time.Millisecond,
	)
	return httpretry.Policy{
		MaxAttempts: c.MaxAttempts,
		Backoff:     httpretry.WithJitter(backoff, c.JitterFraction),
	}
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func openDB(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", c.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetime) * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
