package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/focusblock/internal/calendar"
	"github.com/dukerupert/focusblock/internal/handler"
	"github.com/dukerupert/focusblock/internal/middleware"
	"github.com/dukerupert/focusblock/internal/store"
	ws "github.com/dukerupert/focusblock/internal/websocket"
)

type Options struct {
	RateLimit      int
	RatePeriod     time.Duration
	AllowedOrigins []string
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	calendarEventH *handler.CalendarEventHandler
	taskH          *handler.TaskHandler
	authH          *handler.AuthHandler
	sessionStore   *store.SessionStore
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	eventStore := store.NewEventStore(db)
	taskStore := store.NewTaskStore(db)
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)

	calendarSvc := calendar.NewService(eventStore, taskStore, logger)
	handlerLogger := logger.With("component", "handler")

	return &Server{
		db:             db,
		hub:            hub,
		calendarEventH: handler.NewCalendarEventHandler(calendarSvc, hub, handlerLogger),
		taskH:          handler.NewTaskHandler(taskStore, hub, handlerLogger),
		authH:          handler.NewAuthHandler(userStore, sessionStore, handlerLogger),
		sessionStore:   sessionStore,
		rateLimiter:    middleware.NewRateLimiter(opts.RateLimit, opts.RatePeriod),
		allowedOrigins: opts.AllowedOrigins,
		logger:         logger,
	}
}

// SessionStore returns the session store for expired-session cleanup.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	rateLimit := middleware.RateLimit(s.rateLimiter, middleware.UserOrIP)
	outerMux.Handle("/", authMiddleware(rateLimit(protectedMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "clients": s.hub.ClientCount()})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)

	// Calendar
	mux.HandleFunc("GET /api/calendar/events", s.calendarEventH.List)
	mux.HandleFunc("GET /api/calendar/events/day/{date}", s.calendarEventH.Day)
	mux.HandleFunc("GET /api/calendar/week/{date}", s.calendarEventH.Week)
	mux.HandleFunc("GET /api/calendar/events/{id}", s.calendarEventH.Get)
	mux.HandleFunc("POST /api/calendar/events", s.calendarEventH.Create)
	mux.HandleFunc("PUT /api/calendar/events/{id}", s.calendarEventH.Update)
	mux.HandleFunc("DELETE /api/calendar/events/{id}", s.calendarEventH.Delete)
	mux.HandleFunc("GET /api/calendar/feed.ics", s.calendarEventH.Feed)

	// Tasks
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.allowedOrigins, s.logger.With("component", "websocket")))
}
