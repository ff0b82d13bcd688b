package courier

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promMetrics mirrors the request observations onto a Prometheus registerer,
// for deployments that scrape /metrics instead of exporting OTel metrics.
// Enabled with WithPrometheusMetrics.
type promMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// newPromMetrics registers the instruments on reg. The service label is
// constant per client so dashboards can tell clients apart.
func newPromMetrics(reg prometheus.Registerer, serviceName string) *promMetrics {
	if serviceName == "" {
		serviceName = "courier"
	}

	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"service": serviceName}

	return &promMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_client_requests_total",
			Help:        "Total HTTP client requests by operation, method and status.",
			ConstLabels: constLabels,
		}, []string{"operation", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_client_request_duration_seconds",
			Help:        "HTTP client request duration in seconds.",
			ConstLabels: constLabels,
			Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation", "method"}),
	}
}

// observe records one completed exchange. Nil-safe; status is the numeric
// response code or "error" for transport failures.
func (p *promMetrics) observe(operation, method, status string, duration time.Duration) {
	if p == nil {
		return
	}
	if operation == "" {
		operation = "raw"
	}
	p.requestsTotal.WithLabelValues(operation, method, status).Inc()
	p.requestDuration.WithLabelValues(operation, method).Observe(duration.Seconds())
}
