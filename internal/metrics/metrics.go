// Package metrics provides Prometheus metrics for the yanode server.
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
			Name: "yanode_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yanode_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Index metrics
	indexItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yanode_index_items",
			Help: "Number of file entries in the current index snapshot",
		},
	)

	indexRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yanode_index_rebuild_duration_seconds",
			Help:    "Time to walk the remote folder tree and install a snapshot",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	indexEnsureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yanode_index_ensure_total",
			Help: "Index ensure calls by outcome",
		},
		[]string{"outcome"},
	)

	// Search metrics
	searchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yanode_search_total",
			Help: "Searches by the stage that produced the outcome",
		},
		[]string{"stage"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yanode_search_duration_seconds",
			Help:    "End-to-end search duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 3.5, 5, 8, 12, 20},
		},
	)

	extractDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yanode_extract_duration_seconds",
			Help:    "Content extraction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "ext"},
	)

	sniffCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yanode_sniff_cache_total",
			Help: "Sniff cache lookups",
		},
		[]string{"result"},
	)

	// Drive metrics
	driveRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yanode_drive_requests_total",
			Help: "Remote drive requests by operation and status",
		},
		[]string{"op", "status"},
	)

	driveRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yanode_drive_request_duration_seconds",
			Help:    "Remote drive request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	blobBytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yanode_blob_bytes_downloaded_total",
			Help: "Total bytes downloaded from the drive into the blob cache",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yanode_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetIndexItems sets the current snapshot size.
func SetIndexItems(n int) {
	indexItems.Set(float64(n))
}

// RecordIndexRebuild records a full rebuild.
func RecordIndexRebuild(duration time.Duration) {
	indexRebuildDuration.Observe(duration.Seconds())
}

// RecordEnsure records an ensure outcome ("skip" or "rebuilt").
func RecordEnsure(outcome string) {
	indexEnsureTotal.WithLabelValues(outcome).Inc()
}

// RecordSearch records which stage answered a search.
func RecordSearch(stage string, duration time.Duration) {
	searchTotal.WithLabelValues(stage).Inc()
	searchDuration.Observe(duration.Seconds())
}

// RecordExtract records one extraction call.
func RecordExtract(kind, ext string, duration time.Duration) {
	extractDuration.WithLabelValues(kind, ext).Observe(duration.Seconds())
}

// RecordSniffCache records a sniff cache lookup.
func RecordSniffCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	sniffCacheTotal.WithLabelValues(result).Inc()
}

// RecordDriveRequest records a remote drive request.
func RecordDriveRequest(op string, status int, duration time.Duration) {
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
	}
	driveRequestsTotal.WithLabelValues(op, label).Inc()
	driveRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordBlobDownload records bytes pulled into the blob cache.
func RecordBlobDownload(bytes int64) {
	blobBytesDownloaded.Add(float64(bytes))
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
