package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/focusblock/internal/database"
	"github.com/dukerupert/focusblock/internal/store"
)

func newTestServer(t *testing.T, limit int) (*httptest.Server, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	u, err := store.NewUserStore(db).Create(context.Background(), "planner@example.com", "Planner")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, Options{RateLimit: limit, RatePeriod: time.Minute}, logger)

	sess, err := srv.SessionStore().Create(context.Background(), u.ID, time.Hour)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, sess.Token
}

func send(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	ts, _ := newTestServer(t, 10)

	resp := send(t, http.MethodGet, ts.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), `"status":"ok"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts, _ := newTestServer(t, 10)

	resp := send(t, http.MethodGet, ts.URL+"/api/tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = send(t, http.MethodGet, ts.URL+"/api/tasks", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCalendarRoundTrip(t *testing.T) {
	ts, token := newTestServer(t, 100)

	resp := send(t, http.MethodPost, ts.URL+"/api/calendar/events", token,
		`{"title":"Focus","start":"2024-01-01T09:00:00Z","end":"2024-01-01T10:00:00Z","recurrenceRule":"DAILY","recurrenceEndDate":"2024-01-05T09:00:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = send(t, http.MethodGet, ts.URL+"/api/calendar/events?start=2024-01-01&end=2024-01-31", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 5, strings.Count(string(b), `"title":"Focus"`))

	// Calendar clients pass the token in the query string
	resp = send(t, http.MethodGet, ts.URL+"/api/calendar/feed.ics?start=2024-01-01&access_token="+token, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "RRULE:FREQ=DAILY")
}

func TestRateLimit(t *testing.T) {
	ts, token := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		resp := send(t, http.MethodGet, ts.URL+"/api/tasks", token, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := send(t, http.MethodGet, ts.URL+"/api/tasks", token, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Health checks are not counted
	resp = send(t, http.MethodGet, ts.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
