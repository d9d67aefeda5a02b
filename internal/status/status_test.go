package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/sidekick/internal/session"
)

type fixedSource session.Snapshot

func (f fixedSource) Snapshot() session.Snapshot { return session.Snapshot(f) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(0, fixedSource{})
	rec := get(t, s.Handler(), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	s := New(0, fixedSource{})

	rec := get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not_ready"}`, rec.Body.String())

	s.SetReady(true)
	rec = get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatus(t *testing.T) {
	started := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	s := New(0, fixedSource{
		SessionID: "0b7e2c1e-2f1d-4a57-9a43-5f1a8f3f3b10",
		State:     "listening",
		Strategy:  "virtual cable #3 (CABLE Output)",
		Turns:     4,
		StartedAt: started,
	})

	rec := get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "listening", got.State)
	assert.Equal(t, 4, got.Turns)
	assert.True(t, started.Equal(got.StartedAt))
}

func TestSwaggerDoc(t *testing.T) {
	s := New(0, fixedSource{})
	rec := get(t, s.Handler(), "/swagger/doc.json")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sidekick Status API")
	assert.Contains(t, rec.Body.String(), "/status")
}

func TestUnknownRoute(t *testing.T) {
	s := New(0, fixedSource{})
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/dispatch").Code)
}
