package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks requests to the ops server.
//
// Metrics:
//   - quorum_http_requests_total{method,path,code}
//   - quorum_http_request_duration_seconds{path}
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers the HTTP metrics.
func NewHTTPMetrics(namespace string, registry prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Ops server requests, by method, route and status code.",
		}, []string{"method", "path", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Ops server request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}
	registry.MustRegister(m.requests, m.duration)
	return m
}

// RecordHTTPRequest records one served request. path must be a route
// pattern, not the raw URL, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, path string, code int, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.http.requests.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	c.http.duration.WithLabelValues(path).Observe(d.Seconds())
}
