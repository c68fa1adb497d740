package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/pkg/logger"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR body. The panic
// value and stack go to the request logger only.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.From(r.Context()).Error("panic recovered",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()))
			writeAppError(w, internal.NewInternalError("internal server error", nil))
		}()

		next.ServeHTTP(w, r)
	})
}
