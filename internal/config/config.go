package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ingestion services
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Eventbrite EventbriteConfig `yaml:"eventbrite"`
	GoogleMaps GoogleMapsConfig `yaml:"google_maps"`
	Storage    StorageConfig    `yaml:"storage"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the ops HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the lock backend settings. Empty Addr means locks fall
// back to Postgres advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EventbriteConfig holds the listing site and API settings
type EventbriteConfig struct {
	APIKey          string `yaml:"api_key"`
	APIBaseURL      string `yaml:"api_base_url"`
	ListingURL      string `yaml:"listing_url"`
	NoResultsMarker string `yaml:"no_results_marker"`
	MaxPages        int    `yaml:"max_pages"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// GoogleMapsConfig holds the places search settings
type GoogleMapsConfig struct {
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	SearchRadiusMeters uint   `yaml:"search_radius_meters"`
	PhotoMaxWidth      uint   `yaml:"photo_max_width"`
}

// StorageConfig holds the S3 image bucket settings
type StorageConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
	S3Prefix string `yaml:"s3_prefix"`
}

// RetryConfig configures the backoff HTTP client
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	BaseDelayMS    int     `yaml:"base_delay_ms"`
	MaxDelayMS     int     `yaml:"max_delay_ms"`
	JitterFraction float64 `yaml:"jitter_fraction"`
}

// IngestConfig holds scheduling, quota and time budget settings
type IngestConfig struct {
	IntervalMinutes         int         `yaml:"interval_minutes"`
	RecencyWindowHours      int         `yaml:"recency_window_hours"`
	FetchBatchLimit         int         `yaml:"fetch_batch_limit"`
	TransformBatchLimit     int         `yaml:"transform_batch_limit"`
	ChunkSize               int         `yaml:"chunk_size"`
	Concurrency             int         `yaml:"concurrency"`
	DiscoverTimeoutMinutes  int         `yaml:"discover_timeout_minutes"`
	FetchTimeoutMinutes     int         `yaml:"fetch_timeout_minutes"`
	TransformTimeoutMinutes int         `yaml:"transform_timeout_minutes"`
	FullRunTimeoutMinutes   int         `yaml:"full_run_timeout_minutes"`
	EventLockTTLSeconds     int         `yaml:"event_lock_ttl_seconds"`
	Retry                   RetryConfig `yaml:"retry"`
}

// RecencyWindow is how recently an id must have been seen to be fetched or parsed.
func (c IngestConfig) RecencyWindow() time.Duration {
	return time.Duration(c.RecencyWindowHours) * time.Hour
}

// Interval is the pause between scheduled full runs.
func (c IngestConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML config at path and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied and no file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}
	if cfg.Eventbrite.APIBaseURL == "" {
		cfg.Eventbrite.APIBaseURL = "https://www.eventbriteapi.com/v3"
	}
	if cfg.Eventbrite.ListingURL == "" {
		cfg.Eventbrite.ListingURL = "https://www.eventbrite.co.uk/d/united-kingdom/all-events/"
	}
	if cfg.Eventbrite.NoResultsMarker == "" {
		cfg.Eventbrite.NoResultsMarker = "Nothing matched your search, but you might like these options."
	}
	if cfg.Eventbrite.MaxPages == 0 {
		cfg.Eventbrite.MaxPages = 500
	}
	if cfg.Eventbrite.TimeoutSeconds == 0 {
		cfg.Eventbrite.TimeoutSeconds = 30
	}
	if cfg.GoogleMaps.SearchRadiusMeters == 0 {
		cfg.GoogleMaps.SearchRadiusMeters = 1000
	}
	if cfg.GoogleMaps.PhotoMaxWidth == 0 {
		cfg.GoogleMaps.PhotoMaxWidth = 1600
	}
	if cfg.Storage.S3Region == "" {
		cfg.Storage.S3Region = "eu-west-2"
	}
	if cfg.Storage.S3Prefix == "" {
		cfg.Storage.S3Prefix = "search-images/"
	}
	if cfg.Ingest.IntervalMinutes == 0 {
		cfg.Ingest.IntervalMinutes = 60
	}
	if cfg.Ingest.RecencyWindowHours == 0 {
		cfg.Ingest.RecencyWindowHours = 2
	}
	if cfg.Ingest.FetchBatchLimit == 0 {
		cfg.Ingest.FetchBatchLimit = 500
	}
	if cfg.Ingest.TransformBatchLimit == 0 {
		cfg.Ingest.TransformBatchLimit = 500
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 100
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.DiscoverTimeoutMinutes == 0 {
		cfg.Ingest.DiscoverTimeoutMinutes = 20
	}
	if cfg.Ingest.FetchTimeoutMinutes == 0 {
		cfg.Ingest.FetchTimeoutMinutes = 40
	}
	if cfg.Ingest.TransformTimeoutMinutes == 0 {
		cfg.Ingest.TransformTimeoutMinutes = 80
	}
	if cfg.Ingest.FullRunTimeoutMinutes == 0 {
		cfg.Ingest.FullRunTimeoutMinutes = 80
	}
	if cfg.Ingest.EventLockTTLSeconds == 0 {
		cfg.Ingest.EventLockTTLSeconds = 120
	}
	if cfg.Ingest.Retry.MaxAttempts == 0 {
		cfg.Ingest.Retry.MaxAttempts = 5
	}
	if cfg.Ingest.Retry.BaseDelayMS == 0 {
		cfg.Ingest.Retry.BaseDelayMS = 1000
	}
	if cfg.Ingest.Retry.MaxDelayMS == 0 {
		cfg.Ingest.Retry.MaxDelayMS = 30000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads .env (if present), the YAML file, then applies
// environment overrides for secrets and endpoints.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = Default()
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EVENTBRITE_API_KEY"); v != "" {
		cfg.Eventbrite.APIKey = v
	}
	if v := os.Getenv("EVENTBRITE_API_BASE_URL"); v != "" {
		cfg.Eventbrite.APIBaseURL = v
	}
	if v := os.Getenv("EVENTBRITE_LISTING_URL"); v != "" {
		cfg.Eventbrite.ListingURL = v
	}
	if v := os.Getenv("GOOGLE_MAPS_API_KEY"); v != "" {
		cfg.GoogleMaps.APIKey = v
	}
	if v := os.Getenv("IMAGES_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.S3Region = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}
