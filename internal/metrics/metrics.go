// Package metrics provides Prometheus metrics for the ArquivaDoc server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arquivadoc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arquivadoc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upload metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arquivadoc_uploads_total",
			Help: "Total number of document uploads",
		},
		[]string{"status"},
	)

	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arquivadoc_upload_bytes_total",
			Help: "Total bytes uploaded to the remote store",
		},
	)

	// Compression metrics
	compressionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arquivadoc_compression_attempts_total",
			Help: "Compression attempts by quality level and outcome",
		},
		[]string{"level", "outcome"},
	)

	compressionSavedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arquivadoc_compression_saved_bytes_total",
			Help: "Total bytes shaved off uploads by compression",
		},
	)

	// Folder resolution metrics
	folderCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arquivadoc_folder_cache_hits_total",
			Help: "Folder resolutions served from the in-memory cache",
		},
	)

	folderCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arquivadoc_folder_cache_misses_total",
			Help: "Folder resolutions that had to ask the remote store",
		},
	)

	folderCreates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arquivadoc_folder_creates_total",
			Help: "Folders created on the remote store",
		},
	)

	// Remote store metrics
	remoteOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arquivadoc_remote_op_duration_seconds",
			Help:    "Remote store operation duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"op", "success"},
	)

	// Database metrics
	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arquivadoc_db_connections_open",
			Help: "Open database connections",
		},
	)
)

// RecordUpload records a completed (or failed) upload.
func RecordUpload(status string, bytes int64) {
	uploadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		uploadBytes.Add(float64(bytes))
	}
}

// RecordCompressionAttempt records one compression attempt outcome
// ("accepted", "discarded", "failed", "timeout").
func RecordCompressionAttempt(level, outcome string) {
	compressionAttempts.WithLabelValues(level, outcome).Inc()
}

// RecordCompressionSavings records bytes saved by a selected candidate.
func RecordCompressionSavings(saved int64) {
	if saved > 0 {
		compressionSavedBytes.Add(float64(saved))
	}
}

// RecordFolderCacheHit counts a cache hit during path resolution.
func RecordFolderCacheHit() { folderCacheHits.Inc() }

// RecordFolderCacheMiss counts a cache miss during path resolution.
func RecordFolderCacheMiss() { folderCacheMisses.Inc() }

// RecordFolderCreate counts a folder created on the remote store.
func RecordFolderCreate() { folderCreates.Inc() }

// RecordRemoteOp records a remote store call with its duration.
func RecordRemoteOp(op string, d time.Duration, success bool) {
	remoteOpDuration.WithLabelValues(op, strconv.FormatBool(success)).Observe(d.Seconds())
}

// SetDBConnectionsOpen updates the open-connections gauge.
func SetDBConnectionsOpen(n int) {
	dbConnectionsOpen.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
