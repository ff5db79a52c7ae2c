package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// httpMetrics groups the request collectors. Labels use the registered route
// template, so /api/pix/status/:id stays one series whatever the id.
type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inflight prometheus.Gauge
	size     *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pixpanel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served, by method, route and status code.",
		}, []string{"method", "path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pixpanel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Handler latency by method and route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pixpanel",
			Subsystem: "http",
			Name:      "requests_inflight",
			Help:      "Requests currently being handled.",
		}),
		// Charge responses embed a base64 QR image.
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pixpanel",
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Response body size by method and route.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"method", "path"}),
	}
	reg.MustRegister(m.requests, m.latency, m.inflight, m.size)
	return m
}

var defaultHTTPMetrics = newHTTPMetrics(prometheus.DefaultRegisterer)

// Metrics instruments every request on the default registry. The router
// exposes it through promhttp on /metrics.
func Metrics() gin.HandlerFunc {
	return defaultHTTPMetrics.handler()
}

func (m *httpMetrics) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.inflight.Inc()
		defer m.inflight.Dec()
		began := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		verb := c.Request.Method
		m.requests.WithLabelValues(verb, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(verb, route).Observe(time.Since(began).Seconds())
		if n := c.Writer.Size(); n >= 0 {
			m.size.WithLabelValues(verb, route).Observe(float64(n))
		}
	}
}
