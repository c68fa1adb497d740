package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/santega-authz/pkg/logger"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
)

const (
	TraceHeader   = "X-Trace-ID"
	maxTraceIDLen = 128
)

// TraceID echoes the caller's X-Trace-ID, or mints one, and seeds the request
// logger with it. Headers that are too long or not printable ASCII are
// replaced.
func TraceID(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceHeader)
			if !validTraceID(traceID) {
				traceID = uuid.NewString()
			}
			w.Header().Set(TraceHeader, traceID)

			l := base.With("trace_id", traceID)
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				l = l.With("request_id", reqID)
			}
			next.ServeHTTP(w, r.WithContext(logger.Into(r.Context(), l)))
		})
	}
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
