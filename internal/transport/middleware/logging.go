package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/santega-authz/pkg/logger"
	"github.com/go-chi/chi/middleware"
)

// redactedHeaders carry credentials for the auth service or the directory.
var redactedHeaders = map[string]struct{}{
	"authorization": {},
	"apikey":        {},
	"x-api-key":     {},
	"cookie":        {},
	"set-cookie":    {},
}

// LoggingMiddleware writes one debug line per request and one completion
// line whose level follows the status class. Bodies are never logged; they
// carry permission lists and affiliation ids only.
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := logger.From(r.Context())

			l.Debug("request received",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", redactHeaders(r.Header))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			l.Log(r.Context(), levelFor(status), "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", status,
				"response_size", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if _, secret := redactedHeaders[strings.ToLower(name)]; secret {
			out[name] = "[FILTERED]"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
