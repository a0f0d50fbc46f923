// Package metrics exposes Prometheus collectors for the query pipeline
// and an HTTP middleware that records request counts and latencies.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts processed queries by type and processing level.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kge_queries_total",
			Help: "Total queries processed, by query type and processing level",
		},
		[]string{"type", "level"},
	)

	// QueryDuration tracks end-to-end query processing time by level.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kge_query_duration_seconds",
			Help:    "Query processing duration in seconds, by processing level",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"level"},
	)

	// CacheHits counts cache lookups that returned a stored response.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kge_cache_hits_total",
		Help: "Query cache hits",
	})

	// CacheMisses counts cache lookups that fell through to the pipeline.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kge_cache_misses_total",
		Help: "Query cache misses",
	})

	// FallbacksTotal counts queries answered by the fallback responder.
	FallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kge_fallbacks_total",
		Help: "Queries that fell back to the apology response",
	})

	// TokensUsed accumulates LLM tokens consumed, by processing level.
	TokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kge_llm_tokens_total",
			Help: "LLM tokens consumed, by processing level",
		},
		[]string{"level"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kge_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveQuery records a completed query for the given type and level.
func ObserveQuery(queryType, level string, duration time.Duration) {
	QueriesTotal.WithLabelValues(queryType, level).Inc()
	QueryDuration.WithLabelValues(level).Observe(duration.Seconds())
}

var idSegmentPattern = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)

// normalizePath collapses UUID path segments into {id} so metric
// cardinality stays bounded.
func normalizePath(path string) string {
	return idSegmentPattern.ReplaceAllString(path, "/{id}")
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// HTTPMiddleware records request counts and durations for every handler
// it wraps.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
