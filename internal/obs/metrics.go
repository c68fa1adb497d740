package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

var (
	DirectoryFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_fetch_total",
			Help: "Directory fetches by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	DirectoryFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directory_fetch_duration_seconds",
			Help:    "Directory fetch latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	DirectoryInvalidRows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "directory_invalid_rows_total",
		Help: "Affiliation rows rejected at the directory boundary.",
	})

	SwitchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "establishment_switch_total",
			Help: "Establishment switch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "establishment_state_transitions_total",
			Help: "Resolver transitions by target state.",
		},
		[]string{"state"},
	)

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "establishment_sessions",
		Help: "Signed-in professionals with a live resolver.",
	})
)

var registerOnce sync.Once

// Init registers every collector in the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			DirectoryFetchTotal, DirectoryFetchDuration, DirectoryInvalidRows,
			SwitchTotal, StateTransitions, ActiveSessions,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDirectoryFetch records one fetch. outcome is "ok" or a failure kind.
func ObserveDirectoryFetch(backend, outcome string, elapsed time.Duration) {
	DirectoryFetchTotal.WithLabelValues(backend, outcome).Inc()
	DirectoryFetchDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// Instrument measures request rate, latency and in-flight count. pathOf maps
// a request to a low-cardinality label; nil uses the raw path.
func Instrument(pathOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpInFlight.Inc()
			defer httpInFlight.Dec()
			start := time.Now()

			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)

			path := r.URL.Path
			if pathOf != nil {
				path = pathOf(r)
			}
			status := strconv.Itoa(sw.code)
			httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
