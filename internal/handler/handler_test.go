package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/focusblock/internal/auth"
	"github.com/dukerupert/focusblock/internal/calendar"
	"github.com/dukerupert/focusblock/internal/database"
	"github.com/dukerupert/focusblock/internal/store"
	ws "github.com/dukerupert/focusblock/internal/websocket"
)

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	mux     *http.ServeMux
	users   *store.UserStore
	session *store.SessionStore
	tasks   *store.TaskStore
	userID  string
	sessID  int64
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	tasks := store.NewTaskStore(db)
	events := store.NewEventStore(db)
	hub := ws.NewHub(logger)

	u, err := users.Create(context.Background(), "planner@example.com", "Planner")
	require.NoError(t, err)
	sess, err := sessions.Create(context.Background(), u.ID, time.Hour)
	require.NoError(t, err)

	svc := calendar.NewService(events, tasks, logger, calendar.WithClock(func() time.Time { return testNow }))
	cal := NewCalendarEventHandler(svc, hub, logger)
	th := NewTaskHandler(tasks, hub, logger)
	ah := NewAuthHandler(users, sessions, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/calendar/events", cal.List)
	mux.HandleFunc("GET /api/calendar/events/day/{date}", cal.Day)
	mux.HandleFunc("GET /api/calendar/week/{date}", cal.Week)
	mux.HandleFunc("GET /api/calendar/events/{id}", cal.Get)
	mux.HandleFunc("POST /api/calendar/events", cal.Create)
	mux.HandleFunc("PUT /api/calendar/events/{id}", cal.Update)
	mux.HandleFunc("DELETE /api/calendar/events/{id}", cal.Delete)
	mux.HandleFunc("GET /api/calendar/feed.ics", cal.Feed)
	mux.HandleFunc("POST /api/tasks", th.Create)
	mux.HandleFunc("GET /api/tasks", th.List)
	mux.HandleFunc("GET /api/tasks/{id}", th.Get)
	mux.HandleFunc("GET /api/auth/me", ah.Me)
	mux.HandleFunc("POST /api/auth/logout", ah.Logout)

	return &testEnv{mux: mux, users: users, session: sessions, tasks: tasks, userID: u.ID, sessID: sess.ID, token: sess.Token}
}

// do sends a request as the env's user.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.userID, method, path, body)
}

func (e *testEnv) doAs(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			r = bytes.NewBufferString(s)
		} else {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			r = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, r)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: userID, SessionID: e.sessID}))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

type response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) response[T] {
	t.Helper()
	var out response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
