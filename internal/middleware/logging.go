package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// requestTrace collects what inner middleware learns about a request so the
// outer logger can report it once the handler returns.
type requestTrace struct {
	userID string
}

type traceKey struct{}

// noteUser records the authenticated user on the request's trace, if any.
func noteUser(ctx context.Context, userID string) {
	if tr, ok := ctx.Value(traceKey{}).(*requestTrace); ok {
		tr.userID = userID
	}
}

// responseLog captures the status and body size of a response.
type responseLog struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (l *responseLog) WriteHeader(code int) {
	l.status = code
	l.ResponseWriter.WriteHeader(code)
}

func (l *responseLog) Write(b []byte) (int, error) {
	n, err := l.ResponseWriter.Write(b)
	l.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer so websocket upgrades can hijack it.
func (l *responseLog) Unwrap() http.ResponseWriter {
	return l.ResponseWriter
}

// redactedQuery returns the raw query with credentials masked.
func redactedQuery(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
	}
	return q.Encode()
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger logs one line per request. It must wrap RequireAuth for the
// line to carry the caller's user id.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			tr := &requestTrace{}
			rl := &responseLog{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rl, r.WithContext(context.WithValue(r.Context(), traceKey{}, tr)))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			if q := redactedQuery(r.URL); q != "" {
				attrs = append(attrs, slog.String("query", q))
			}
			attrs = append(attrs,
				slog.Int("status", rl.status),
				slog.Int("bytes", rl.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", RealIP(r)),
			)
			if tr.userID != "" {
				attrs = append(attrs, slog.String("user_id", tr.userID))
			}
			logger.LogAttrs(r.Context(), levelFor(rl.status), "request", attrs...)
		})
	}
}
