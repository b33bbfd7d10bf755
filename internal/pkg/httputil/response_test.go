package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	Accepted(rec, map[string]string{"stage": "fetch"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"stage":"fetch"}`, rec.Body.String())
}

func TestErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Conflict(rec, "stage fetch is already running")
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "conflict", body.Code)

	rec = httptest.NewRecorder()
	InternalError(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil), errors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestIntQuery(t *testing.T) {
	tests := []struct {
		query  string
		want   int
		wantOK bool
	}{
		{"", 50, true},
		{"?limit=10", 10, true},
		{"?limit=9999", 500, true},
		{"?limit=0", 0, false},
		{"?limit=-3", 0, false},
		{"?limit=ten", 0, false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/import-errors"+tt.query, nil)
		n, ok := IntQuery(r, "limit", 50, 500)
		assert.Equal(t, tt.wantOK, ok, tt.query)
		assert.Equal(t, tt.want, n, tt.query)
	}
}
