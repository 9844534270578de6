package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentplexus/voicebridge"
	"github.com/agentplexus/voicebridge/internal/bridge"
	"github.com/agentplexus/voicebridge/internal/config"
	"github.com/agentplexus/voicebridge/internal/metrics"
)

// MonitoringServer serves health, diagnostics, and Prometheus metrics on a
// private listener.
type MonitoringServer struct {
	cfg       *config.Config
	manager   *bridge.Manager
	logger    *slog.Logger
	startedAt time.Time
	srv       *http.Server
}

// NewMonitoringServer builds the private server. Collectors are gathered
// from the given registry, the same one the service's metrics were
// registered with.
func NewMonitoringServer(cfg *config.Config, manager *bridge.Manager, gatherer prometheus.Gatherer, logger *slog.Logger, m *metrics.Metrics) *MonitoringServer {
	s := &MonitoringServer{
		cfg:       cfg,
		manager:   manager,
		logger:    logger,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", withMetrics(m, "/health", s.handleHealth))
	mux.HandleFunc("/calls", withMetrics(m, "/calls", s.handleCalls))
	mux.HandleFunc("/config", withMetrics(m, "/config", s.handleConfig))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:    cfg.Monitoring.Address(),
		Handler: mux,
	}
	return s
}

// Start serves until Stop is called.
func (s *MonitoringServer) Start() error {
	s.logger.Info("monitoring server listening", "address", s.cfg.Monitoring.Address())
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down.
func (s *MonitoringServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *MonitoringServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        voicebridge.ServiceName,
		"version":        voicebridge.Version,
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"active_calls":   s.manager.Count(),
	})
}

func (s *MonitoringServer) handleCalls(w http.ResponseWriter, _ *http.Request) {
	snapshots := s.manager.Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(snapshots),
		"calls": snapshots,
	})
}

func (s *MonitoringServer) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Redacted())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
