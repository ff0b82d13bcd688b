package courier

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromMetrics_Observe(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	pm := newPromMetrics(reg, "svc")

	pm.observe("GetUser", http.MethodGet, "200", 50*time.Millisecond)
	pm.observe("GetUser", http.MethodGet, "200", 70*time.Millisecond)
	pm.observe("", http.MethodPost, "error", time.Second)

	counter := pm.requestsTotal.WithLabelValues("GetUser", http.MethodGet, "200")
	assert.InEpsilon(t, 2.0, testutil.ToFloat64(counter), 0.001)

	// The empty operation is normalized so the label is never blank.
	raw := pm.requestsTotal.WithLabelValues("raw", http.MethodPost, "error")
	assert.InEpsilon(t, 1.0, testutil.ToFloat64(raw), 0.001)
}

func TestPromMetrics_NilReceiverIsNoOp(t *testing.T) {
	t.Parallel()

	var pm *promMetrics
	assert.NotPanics(t, func() {
		pm.observe("op", http.MethodGet, "200", time.Second)
	})
}

func TestWithPrometheusMetrics_EndToEnd(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	mock := NewMockTransport().StubResponse(http.StatusOK, "ok")

	client := New(
		WithMockTransport(mock),
		WithServiceName("prom-test"),
		WithPrometheusMetrics(reg),
	)
	client.MustRegister(Endpoint{Name: "GetItem", Method: http.MethodGet, Path: "http://svc.internal/items"})

	_, err := client.Call(context.Background(), "GetItem")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["http_client_requests_total"])
	assert.True(t, names["http_client_request_duration_seconds"])

	count := testutil.CollectAndCount(
		client.cfg.promMetrics.requestsTotal, "http_client_requests_total")
	assert.Equal(t, 1, count)
}
