package metrics

import (
	"strings"
	"testing"

	"cookbook/internal/domain/service"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMetrics_RecordAttempt(t *testing.T) {
	reg := NewRegistry()
	m := NewAuthMetrics(reg)

	m.RecordAttempt("login", service.OutcomeSuccess)
	m.RecordAttempt("login", service.OutcomeSuccess)
	m.RecordAttempt("login", service.OutcomeUnauthorized)

	counter := m.(*authMetrics).operations
	assert.InDelta(t, 2, testutil.ToFloat64(counter.WithLabelValues("login", service.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("login", service.OutcomeUnauthorized)), 0)

	expected := `
# HELP cookbook_auth_operations_total Total number of authentication operations by outcome
# TYPE cookbook_auth_operations_total counter
cookbook_auth_operations_total{operation="login",outcome="success"} 2
cookbook_auth_operations_total{operation="login",outcome="unauthorized"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cookbook_auth_operations_total"))
}

func TestNewHTTPMetrics_Registers(t *testing.T) {
	reg := NewRegistry()
	m := NewHTTPMetrics(reg)

	m.RequestsTotal.WithLabelValues("GET", "/health", "200").Inc()
	m.RequestDuration.WithLabelValues("GET", "/health").Observe(0.01)

	count, err := testutil.GatherAndCount(reg, "cookbook_http_requests_total", "cookbook_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
