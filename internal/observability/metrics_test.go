package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.FlowCompleted("login", "success")
	m.FlowCompleted("login", "success")
	m.FlowCompleted("login", "invalid_credentials")
	m.TokenVerified("access", "expired")
	m.CacheOperation("get", "miss")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FlowsTotal.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsTotal.WithLabelValues("login", "invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenVerifyTotal.WithLabelValues("access", "expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheOpsTotal.WithLabelValues("get", "miss")))
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.FlowCompleted("register", "success")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `authcore_flows_total{flow="register",outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
