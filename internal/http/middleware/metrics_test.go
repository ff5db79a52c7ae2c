package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteTemplateAndFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newHTTPMetrics(reg)

	r := gin.New()
	r.Use(m.handler())
	r.GET("/api/pix/status/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, p := range []string{"/api/pix/status/abc", "/api/pix/status/def", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/pix/status/:id", "200")); got != 2 {
		t.Fatalf("route counter = %v; want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/nowhere", "404")); got != 1 {
		t.Fatalf("fallback counter = %v; want 1", got)
	}
	if got := testutil.ToFloat64(m.inflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}
	if n := testutil.CollectAndCount(m.latency); n != 2 {
		t.Fatalf("latency series = %d; want 2", n)
	}
}

func TestMetrics_DefaultRegistryNames(t *testing.T) {
	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "pixpanel_http_requests_inflight")
	if err != nil || n != 1 {
		t.Fatalf("inflight gauge on default registry: n=%d err=%v", n, err)
	}
}
