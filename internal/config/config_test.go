package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["https://admin.mymemorymaker.com"]

eventbrite:
  api_key: "test-api-key"
  max_pages: 50

google_maps:
  search_radius_meters: 500

ingest:
  interval_minutes: 30
  recency_window_hours: 6
  fetch_batch_limit: 250
  chunk_size: 50
  retry:
    max_attempts: 3
    base_delay_ms: 200
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://admin.mymemorymaker.com"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "test-api-key", cfg.Eventbrite.APIKey)
	assert.Equal(t, 50, cfg.Eventbrite.MaxPages)
	assert.Equal(t, uint(500), cfg.GoogleMaps.SearchRadiusMeters)

	assert.Equal(t, 30*time.Minute, cfg.Ingest.Interval())
	assert.Equal(t, 6*time.Hour, cfg.Ingest.RecencyWindow())
	assert.Equal(t, 250, cfg.Ingest.FetchBatchLimit)
	assert.Equal(t, 50, cfg.Ingest.ChunkSize)
	assert.Equal(t, 3, cfg.Ingest.Retry.MaxAttempts)
	assert.Equal(t, 200, cfg.Ingest.Retry.BaseDelayMS)

	// defaults still applied to unset fields
	assert.Equal(t, 500, cfg.Ingest.TransformBatchLimit)
	assert.Equal(t, 30000, cfg.Ingest.Retry.MaxDelayMS)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("{}"), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "https://www.eventbriteapi.com/v3", cfg.Eventbrite.APIBaseURL)
	assert.Equal(t, "https://www.eventbrite.co.uk/d/united-kingdom/all-events/", cfg.Eventbrite.ListingURL)
	assert.Equal(t, "Nothing matched your search, but you might like these options.", cfg.Eventbrite.NoResultsMarker)
	assert.Equal(t, 500, cfg.Eventbrite.MaxPages)
	assert.Equal(t, uint(1000), cfg.GoogleMaps.SearchRadiusMeters)
	assert.Equal(t, 500, cfg.Ingest.FetchBatchLimit)
	assert.Equal(t, 100, cfg.Ingest.ChunkSize)
	assert.Equal(t, 20, cfg.Ingest.DiscoverTimeoutMinutes)
	assert.Equal(t, 80, cfg.Ingest.TransformTimeoutMinutes)
	assert.Equal(t, 80, cfg.Ingest.FullRunTimeoutMinutes)
	assert.Equal(t, 5, cfg.Ingest.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
	require.NoError(t, err)

	_, err = Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://ingest@localhost/ingest")
	t.Setenv("EVENTBRITE_API_KEY", "from-env")
	t.Setenv("GOOGLE_MAPS_API_KEY", "maps-key")
	t.Setenv("IMAGES_S3_BUCKET", "mmm-images")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://ingest@localhost/ingest", cfg.Database.URL)
	assert.Equal(t, "from-env", cfg.Eventbrite.APIKey)
	assert.Equal(t, "maps-key", cfg.GoogleMaps.APIKey)
	assert.Equal(t, "mmm-images", cfg.Storage.S3Bucket)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 8080, cfg.Server.Port)
}
