package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactTokens(t *testing.T) {
	in := "GET https://www.eventbriteapi.com/v3/events/1/?expand=venue&token=ABC123 failed"
	assert.Equal(t, "GET https://www.eventbriteapi.com/v3/events/1/?expand=venue&token=*** failed", RedactTokens(in))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "in***@mymemorymaker.com", RedactEmail("integrations@mymemorymaker.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestLog_WritesStructuredRedactedEntry(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLevel(INFO)

	Debug("hidden")
	Info("fetch failed", "url", "https://x/?token=secret", "api_token", "abc", "page", 3)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "fetch failed", entry["msg"])
	assert.Equal(t, "https://x/?token=***", entry["url"])
	assert.Equal(t, "***", entry["api_token"])
	assert.Equal(t, "3", entry["page"])
}

func TestSetLevelName(t *testing.T) {
	defer SetLevel(INFO)
	SetLevelName("warn")
	assert.Equal(t, WARN, defaultLogger.level)
	SetLevelName("bogus")
	assert.Equal(t, WARN, defaultLogger.level)
}
