// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation. The Metrics() middleware
// measures request counts, latencies, in-flight concurrency, and response
// sizes with careful attention to label cardinality:
//
//   - method:   HTTP method verb (GET/POST/…)
//   - path:     the registered Gin route (e.g. /chat); falls back to the raw
//     URL path when no route matched
//   - status:   numeric status code as a string (e.g. "200", "404")
//
// Alongside the HTTP collectors, this file hosts the domain counters the
// handlers and the broadcast orchestrator feed: messages by channel,
// completion-gateway latency, and broadcast outcomes.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	// Status is omitted to keep histogram cardinality lower.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges the number of in-flight requests.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// httpRespSize captures response sizes in bytes by method and route path.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 25 << 10, 50 << 10,
				100 << 10, 250 << 10, 500 << 10,
				1 << 20,
			},
		},
		[]string{"method", "path"},
	)

	// chatMessages counts processed user messages by channel (web, whatsapp,
	// voice) and outcome (ok, quota, error).
	chatMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "User messages processed, by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	// completionLat records completion-gateway round-trip time. The upstream
	// dominates request latency, so it gets its own histogram with wider
	// buckets than general HTTP.
	completionLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "completion_duration_seconds",
			Help:    "Duration of completion-gateway calls in seconds.",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 60},
		},
	)

	// broadcastSends counts broadcast deliveries by type and outcome
	// (sent, failed, skipped).
	broadcastSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_sends_total",
			Help: "Broadcast message deliveries, by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize,
		chatMessages, completionLat, broadcastSends)
}

// ObserveChatMessage records one processed user message.
func ObserveChatMessage(channel, outcome string) {
	chatMessages.WithLabelValues(channel, outcome).Inc()
}

// ObserveCompletion records one completion-gateway call duration.
func ObserveCompletion(d time.Duration) {
	completionLat.Observe(d.Seconds())
}

// ObserveBroadcastSend records one broadcast delivery attempt.
func ObserveBroadcastSend(kind, outcome string) {
	broadcastSends.WithLabelValues(kind, outcome).Inc()
}

// ObserveBroadcastSends records n broadcast delivery attempts at once; the
// orchestrator reports per-campaign totals, not per-delivery events.
func ObserveBroadcastSends(kind, outcome string, n int) {
	if n > 0 {
		broadcastSends.WithLabelValues(kind, outcome).Add(float64(n))
	}
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
//
// The "path" label uses the registered route (c.FullPath()) to avoid
// unbounded label cardinality from raw URLs; it falls back to
// c.Request.URL.Path when no route matched.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())
		size := c.Writer.Size() // -1 when unknown

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(dur)
		if size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
