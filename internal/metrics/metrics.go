// Package metrics exposes Prometheus instrumentation for the loyalty API.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bonuspark_http_requests_total",
			Help: "Number of HTTP requests",
		},
		[]string{"path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bonuspark_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "code"},
	)

	// PointsCredited counts successful credit operations.
	PointsCredited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bonuspark_points_credits_total",
		Help: "Number of successful point credits",
	})

	// PointsDebited counts successful debit operations.
	PointsDebited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bonuspark_points_debits_total",
		Help: "Number of successful point debits",
	})

	// PointsTransferred counts successful peer-to-peer transfers.
	PointsTransferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bonuspark_points_transfers_total",
		Help: "Number of successful point transfers",
	})

	// RFMRuns counts per-user RFM computations, labelled by outcome.
	RFMRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bonuspark_rfm_runs_total",
		Help: "Number of per-user RFM computations",
	}, []string{"outcome"})

	// NotifyFailures counts failed notification deliveries.
	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bonuspark_notify_failures_total",
		Help: "Number of failed notification deliveries",
	})
)

// HTTPMiddleware returns a Gin middleware recording request counts and
// latencies per route and status code.
func HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(path, code).Inc()
		httpRequestDuration.WithLabelValues(path, code).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
