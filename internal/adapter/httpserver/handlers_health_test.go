package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shithost/sigma-dash/internal/platform/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func TestHandleStartup(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/startup", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	srv := newTestServer(t, &mockAppService{},
		WithHealthChecks(
			HealthCheck{Name: "record_store", Check: healthOK},
			HealthCheck{Name: "redis", Check: healthOK},
		),
	)

	err := srv.handleStartup(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestHandleLiveness(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	srv := newTestServer(t, &mockAppService{},
		WithHealthChecks(HealthCheck{Name: "record_store", Check: healthErr("unreadable")}),
	)
	err := srv.handleLiveness(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `"status":"ok"`)
	assert.Contains(t, body, `"uptime"`)
}

func TestHandleReadiness_NoChecks(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := doRequest(srv, "/health/ready", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantFailed string
		wantError  string
	}{
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "record_store", Check: healthOK},
				{Name: "redis", Check: healthOK},
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "record store down",
			checks: []HealthCheck{
				{Name: "record_store", Check: healthErr("open users.json: permission denied")},
				{Name: "redis", Check: healthOK},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: "record_store",
			wantError:  "open users.json: permission denied",
		},
		{
			name: "redis down",
			checks: []HealthCheck{
				{Name: "record_store", Check: healthOK},
				{Name: "redis", Check: healthErr("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: "redis",
			wantError:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			srv := newTestServer(t, &mockAppService{}, WithHealthChecks(tt.checks...))

			require.NoError(t, srv.handleReadiness(c))
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantFailed == "" {
				assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "unhealthy", body["status"])
			assert.Equal(t, tt.wantFailed, body["failed_check"])
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestHandleReadiness_OptionalCheckDegrades(t *testing.T) {
	srv := newTestServer(t, &mockAppService{}, WithHealthChecks(
		HealthCheck{Name: "record_store", Check: healthOK},
		HealthCheck{Name: "panel", Check: healthErr("circuit breaker is open"), Optional: true},
	))

	rec := doRequest(srv, "/health/ready", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","degraded":{"panel":"circuit breaker is open"}}`, rec.Body.String())
}

func TestHandleReadiness_CriticalFailureWinsOverDegraded(t *testing.T) {
	srv := newTestServer(t, &mockAppService{}, WithHealthChecks(
		HealthCheck{Name: "panel", Check: healthErr("circuit breaker is open"), Optional: true},
		HealthCheck{Name: "redis", Check: healthErr("connection refused")},
	))

	rec := doRequest(srv, "/health/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "redis", body["failed_check"])
}

func TestHandleStartup_SkipsOptionalChecks(t *testing.T) {
	called := false
	srv := newTestServer(t, &mockAppService{}, WithHealthChecks(
		HealthCheck{Name: "record_store", Check: healthOK},
		HealthCheck{Name: "panel", Optional: true, Check: func(context.Context) error {
			called = true
			return errors.New("circuit breaker is open")
		}},
	))

	rec := doRequest(srv, "/health/startup", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
	assert.False(t, called)
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := doRequest(srv, "/version", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var info version.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "Test Hosting", info.Name)
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := newTestServer(t, &mockAppService{},
		WithMetrics(nil, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	rec := doRequest(srv, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_total 1")
}

func TestMetricsEndpoint_NotRegisteredWithoutHandler(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := doRequest(srv, "/metrics", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
