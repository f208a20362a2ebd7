// Package metrics provides Prometheus metrics for the bot.
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
	// Telegram update metrics
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ncbot_updates_total",
			Help: "Total number of Telegram updates handled",
		},
		[]string{"kind", "result"},
	)

	updateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ncbot_update_duration_seconds",
			Help:    "Time spent handling a Telegram update",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Nextcloud WebDAV metrics
	webdavRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ncbot_webdav_requests_total",
			Help: "Total number of WebDAV requests sent to Nextcloud",
		},
		[]string{"method", "status"},
	)

	webdavRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ncbot_webdav_request_duration_seconds",
			Help:    "WebDAV request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Transfer metrics
	bytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ncbot_bytes_transferred_total",
			Help: "Bytes moved between Telegram and Nextcloud",
		},
		[]string{"direction"},
	)

	bulkItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ncbot_bulk_items_total",
			Help: "Items processed by bulk operations",
		},
		[]string{"operation", "result"},
	)

	// Session metrics
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ncbot_active_sessions",
			Help: "Number of chats with an open files dialog",
		},
	)
)

// Transfer directions.
const (
	DirectionDownload = "download" // Nextcloud to Telegram
	DirectionUpload   = "upload"   // Telegram to Nextcloud
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordUpdate records a handled Telegram update.
func RecordUpdate(kind string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	updatesTotal.WithLabelValues(kind, result).Inc()
	updateDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordWebDAV records a WebDAV request. status is 0 when no response was received.
func RecordWebDAV(method string, status int, duration time.Duration) {
	webdavRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	webdavRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordTransfer records bytes moved in one direction.
func RecordTransfer(direction string, n int64) {
	if n > 0 {
		bytesTransferred.WithLabelValues(direction).Add(float64(n))
	}
}

// RecordBulkItem records one item of a bulk operation.
func RecordBulkItem(operation, result string) {
	bulkItemsTotal.WithLabelValues(operation, result).Inc()
}

// SetActiveSessions sets the number of open dialogs.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
