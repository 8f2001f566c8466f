package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HomePulse/internal/alerts"
	"HomePulse/internal/analytics"
	"HomePulse/internal/metrics"
	"HomePulse/internal/models"
	"HomePulse/internal/monitor"
	"HomePulse/internal/realtime"
)

type staticProber struct{}

func (staticProber) DetectProtocol(string) models.Protocol { return models.ProtocolHTTP }

func (staticProber) CheckService(_ context.Context, target models.ServiceTarget) models.CheckResult {
	ms := int64(42)
	return models.CheckResult{ID: target.ID, Status: models.StatusOnline, ResponseTimeMs: &ms}
}

func (p staticProber) CheckServices(ctx context.Context, targets []models.ServiceTarget) map[string]models.CheckResult {
	out := make(map[string]models.CheckResult, len(targets))
	for _, target := range targets {
		out[target.ID] = p.CheckService(ctx, target)
	}
	return out
}

func (staticProber) AvailableProtocols() []models.Protocol { return nil }

func newTestServer(t *testing.T) (*Server, *monitor.Monitor) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	alertManager := alerts.NewManager(alerts.ManagerConfig{}, nil, nil)
	collector := metrics.NewCollector(metrics.CollectorConfig{}, nil, nil)
	engine := analytics.NewEngine(analytics.EngineConfig{}, nil)
	mon := monitor.New(staticProber{}, collector, nil, alertManager, nil, engine, monitor.Config{}, nil)
	hub := realtime.NewHub(mon, alertManager, realtime.Config{}, nil)

	handlers := NewHandlers(mon, alertManager, hub, nil)
	return New(&Config{Port: 0, Mode: "test"}, handlers, hub, nil), mon
}

func doRequest(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyEndpointNotRunning(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAddServerRoundTrip(t *testing.T) {
	s, mon := newTestServer(t)

	body, _ := json.Marshal(models.ServiceTarget{ID: "nas", Name: "NAS", URL: "http://nas.local"})
	rec := doRequest(s, http.MethodPost, "/api/servers", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, mon.TargetCount())

	rec = doRequest(s, http.MethodGet, "/api/servers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"nas"`)
}

func TestAddServerValidationError(t *testing.T) {
	s, _ := newTestServer(t)

	body, _ := json.Marshal(models.ServiceTarget{Name: "no id", URL: "http://x"})
	rec := doRequest(s, http.MethodPost, "/api/servers", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestAddServerMalformedBody(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/servers", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveServerNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodDelete, "/api/servers/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestCheckServerOnDemand(t *testing.T) {
	s, mon := newTestServer(t)
	require.NoError(t, mon.AddServer(models.ServiceTarget{ID: "nas", Name: "NAS", URL: "http://nas.local"}))

	rec := doRequest(s, http.MethodPost, "/api/servers/nas/check", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"online"`)
}

func TestGetServerMetricsBadRange(t *testing.T) {
	s, mon := newTestServer(t)
	require.NoError(t, mon.AddServer(models.ServiceTarget{ID: "nas", Name: "NAS", URL: "http://nas.local"}))

	rec := doRequest(s, http.MethodGet, "/api/servers/nas/metrics?range=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAlertsAndAcknowledge(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/alerts", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/alerts/some-id/ack", []byte(`{"acknowledged_by":"operator"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusesEndpoint(t *testing.T) {
	s, mon := newTestServer(t)
	require.NoError(t, mon.AddServer(models.ServiceTarget{ID: "nas", Name: "NAS", URL: "http://nas.local"}))

	rec := doRequest(s, http.MethodGet, "/api/statuses", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending"`)
}

func TestNotFoundRoute(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/nonsense", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodOptions, "/api/statuses", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
