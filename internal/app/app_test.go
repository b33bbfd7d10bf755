package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mymemorymaker/event-ingest/internal/config"
)

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy(config.Default().Ingest.Retry)

	assert.Equal(t, 5, p.MaxAttempts)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second}
	for i, d := range want {
		assert.Equal(t, d, p.Backoff(i+1), "failed attempt %d", i+1)
	}
}

func TestRetryPolicy_Jitter(t *testing.T) {
	p := RetryPolicy(config.RetryConfig{MaxAttempts: 3, BaseDelayMS: 1000, MaxDelayMS: 30000, JitterFraction: 0.5})
	for i := 0; i < 20; i++ {
		d := p.Backoff(2)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}
