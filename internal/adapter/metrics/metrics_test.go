package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shithost/sigma-dash/internal/platform/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_ServesRuntimeMetrics(t *testing.T) {
	reg := NewRegistry(version.Get("Sigma Hosting"))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewRegistry_BuildInfo(t *testing.T) {
	reg := NewRegistry(version.Info{Name: "Sigma Hosting", Version: "1.2.3", Commit: "abc123", GoVersion: "go1.24.0"})

	expected := `
# HELP sigma_dash_build_info Always 1; labels carry the build and the hosting display name.
# TYPE sigma_dash_build_info gauge
sigma_dash_build_info{commit="abc123",go_version="go1.24.0",hosting_name="Sigma Hosting",version="1.2.3"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sigma_dash_build_info"))
}

func TestHTTPMetrics_RecordsRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/auth/:provider", func(c echo.Context) error { return c.NoContent(http.StatusFound) })
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/auth/discord", "/auth/github", "/health/live"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/auth/:provider", "302")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal), "health checks are not recorded")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlightGauge))
}

func TestPanelMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPanelMetrics(reg)

	m.ObservePanelRequest("create_user", "success", 120*time.Millisecond)
	m.ObservePanelRequest("create_user", "error", time.Second)
	m.ObservePanelRequest("list_servers", "rejected", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("create_user", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("list_servers", "rejected")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
}

func TestGateMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGateMetrics(reg)

	m.ObserveGateDecision("blocked")
	m.ObserveGateDecision("blocked")
	m.ObserveReputationCache("memory")

	expected := `
# HELP sigma_dash_gate_decisions_total Total number of VPN gate decisions (allowed, blocked, error).
# TYPE sigma_dash_gate_decisions_total counter
sigma_dash_gate_decisions_total{decision="blocked"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sigma_dash_gate_decisions_total"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookup.WithLabelValues("memory")))
}

func TestProvisionMetrics(t *testing.T) {
	m := NewProvisionMetrics(prometheus.NewRegistry())

	m.ObserveProvision("created")
	m.ObserveProvision("error")
	m.ObserveProvision("created")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("error")))
}

func TestStoreMetrics(t *testing.T) {
	m := NewStoreMetrics(prometheus.NewRegistry())

	m.ObserveQuery("SELECT", time.Millisecond, nil)
	m.ObserveQuery("INSERT", time.Millisecond, errors.New("unique violation"))
	m.ObserveRedisOp("get", time.Millisecond, nil)
	m.ObserveRedisOp("set", time.Millisecond, errors.New("timeout"))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueryErrors.WithLabelValues("SELECT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryErrors.WithLabelValues("INSERT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisOpsTotal.WithLabelValues("set", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisOpsTotal.WithLabelValues("get", "success")))
}

func TestErrorMetrics(t *testing.T) {
	m := NewErrorMetrics(prometheus.NewRegistry())

	m.ObserveError("external")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Total.WithLabelValues("external")))
}
