// Package monitoring exposes Prometheus metrics for the preview runtime.
package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	RebuildsTotal    prometheus.Counter
	RebuildDuration  prometheus.Histogram
	PassesSuperseded prometheus.Counter

	SandboxExecs  prometheus.Counter
	SandboxErrors prometheus.Counter

	HandlesLive prometheus.Gauge

	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics creates a metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "previewd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "previewd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
		RebuildsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "previewd_rebuilds_total",
			Help: "Total number of preview rebuild passes",
		}),
		RebuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "previewd_rebuild_duration_seconds",
			Help:    "Assembly duration per rebuild pass",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		}),
		PassesSuperseded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "previewd_passes_superseded_total",
			Help: "Rebuild passes superseded before load",
		}),
		SandboxExecs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "previewd_sandbox_execs_total",
			Help: "Ad-hoc exec commands forwarded to the sandbox",
		}),
		SandboxErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "previewd_sandbox_errors_total",
			Help: "Runtime errors reported by the sandbox",
		}),
		HandlesLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "previewd_asset_handles_live",
			Help: "Live asset handles in the registry",
		}),
		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "previewd_ws_connections",
			Help: "Connected WebSocket clients",
		}),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "previewd_ws_messages_total",
				Help: "WebSocket messages by direction",
			},
			[]string{"direction"},
		),
	}
}

// Middleware records request metrics for every route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, statusClass(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
