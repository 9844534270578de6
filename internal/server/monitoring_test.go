package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/voicebridge/internal/bridge"
	"github.com/agentplexus/voicebridge/internal/metrics"
)

func newTestMonitoringServer(t *testing.T) (*MonitoringServer, *metrics.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	s := NewMonitoringServer(testConfig(), bridge.NewManager(), reg, testLogger(), m)
	return s, m
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestMonitoringServer(t)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "voicebridge", body["service"])
	assert.NotEmpty(t, body["version"])
	assert.Equal(t, float64(0), body["active_calls"])
}

func TestCallsEndpoint(t *testing.T) {
	s, _ := newTestMonitoringServer(t)

	rec := httptest.NewRecorder()
	s.handleCalls(rec, httptest.NewRequest(http.MethodGet, "/calls", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int                   `json:"count"`
		Calls []bridge.CallSnapshot `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)
	assert.Empty(t, body.Calls)
}

func TestConfigEndpointRedactsSecrets(t *testing.T) {
	s, _ := newTestMonitoringServer(t)

	rec := httptest.NewRecorder()
	s.handleConfig(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-test")
	assert.Contains(t, rec.Body.String(), "[redacted]")
	assert.Contains(t, rec.Body.String(), `"agent_id":"agent_cfg"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, m := newTestMonitoringServer(t)
	m.CallsStarted.Inc()

	srv := httptest.NewServer(s.srv.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "voicebridge_calls_started_total 1")
}
