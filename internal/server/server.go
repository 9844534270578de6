// Package server exposes the service's HTTP surface: the public media
// endpoint upgraded to a WebSocket per call, the voice webhook answering
// incoming calls, and a private monitoring server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/agentplexus/voicebridge/internal/audio"
	"github.com/agentplexus/voicebridge/internal/bridge"
	"github.com/agentplexus/voicebridge/internal/config"
	"github.com/agentplexus/voicebridge/internal/metrics"
)

// MediaServer accepts media-stream connections and bridges each one to an
// agent session.
type MediaServer struct {
	cfg      *config.Config
	auth     bridge.SignedURLProvider
	manager  *bridge.Manager
	logger   *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewMediaServer builds the public server.
func NewMediaServer(cfg *config.Config, auth bridge.SignedURLProvider, manager *bridge.Manager, logger *slog.Logger, m *metrics.Metrics) *MediaServer {
	s := &MediaServer{
		cfg:     cfg,
		auth:    auth,
		manager: manager,
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Server.StreamPath, s.handleStream)
	mux.HandleFunc(cfg.Server.VoicePath, withMetrics(m, cfg.Server.VoicePath, s.handleVoice))

	s.srv = &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: mux,
	}
	return s
}

// Start serves until Stop is called.
func (s *MediaServer) Start() error {
	s.logger.Info("media server listening",
		"address", s.cfg.Server.Address(),
		"stream_path", s.cfg.Server.StreamPath,
		"voice_path", s.cfg.Server.VoicePath)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down. Established calls keep running until the
// call manager closes them.
func (s *MediaServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleStream upgrades the connection and runs the bridge for the call's
// lifetime. Requests that cannot possibly produce a working call are
// rejected before the upgrade.
func (s *MediaServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.rejectStream(w, r, http.StatusServiceUnavailable, "agent credentials not configured")
		return
	}

	query := r.URL.Query()
	agentID := query.Get("agent_id")
	if agentID == "" {
		agentID = s.cfg.Agent.AgentID
	}
	if agentID == "" {
		s.rejectStream(w, r, http.StatusBadRequest, "no agent id for call")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Warn("media stream upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	params := bridge.Params{
		CallSID:      query.Get("call_sid"),
		AgentID:      agentID,
		CallerName:   query.Get("caller"),
		CallerNumber: query.Get("number"),
	}

	codec, err := audio.NewCodec(s.cfg.Agent.GetTransport())
	if err != nil {
		s.logger.Error("invalid audio transport", "error", err)
		_ = conn.Close()
		return
	}

	br, err := bridge.New(conn, params,
		bridge.WithLogger(s.logger),
		bridge.WithMetrics(s.metrics),
		bridge.WithAuth(s.auth),
		bridge.WithDialer(bridge.NewDialer(s.cfg.Agent.GetDialTimeoutDuration())),
		bridge.WithCodec(codec),
		bridge.WithSession(s.sessionConfig(params)),
	)
	if err != nil {
		s.logger.Error("bridge setup failed", "error", err)
		_ = conn.Close()
		return
	}

	s.manager.Add(br)
	defer s.manager.Remove(br.CallSID())
	br.Run(r.Context())
}

// sessionConfig seeds the agent with the configured greeting and prompt
// plus whatever call context arrived on the upgrade request. The greeting
// and prompt may reference {caller_name} and {caller_number}.
func (s *MediaServer) sessionConfig(params bridge.Params) bridge.SessionConfig {
	extra := map[string]any{}
	for k, v := range s.cfg.Agent.ExtraBody {
		extra[k] = v
	}
	if params.CallerNumber != "" {
		extra["caller_number"] = params.CallerNumber
	}
	if params.CallerName != "" {
		extra["caller_name"] = params.CallerName
	}
	if params.CallSID != "" {
		extra["call_sid"] = params.CallSID
	}
	if len(extra) == 0 {
		extra = nil
	}

	expand := strings.NewReplacer(
		"{caller_name}", params.CallerName,
		"{caller_number}", params.CallerNumber,
	)
	return bridge.SessionConfig{
		Greeting:  expand.Replace(s.cfg.Agent.Greeting),
		Prompt:    expand.Replace(s.cfg.Agent.Prompt),
		ExtraBody: extra,
	}
}

func (s *MediaServer) rejectStream(w http.ResponseWriter, r *http.Request, status int, reason string) {
	s.logger.Warn("rejecting media stream", "status", status, "reason", reason, "remote", r.RemoteAddr)
	s.metrics.HTTPRequests.WithLabelValues(s.cfg.Server.StreamPath, r.Method, strconv.Itoa(status)).Inc()
	http.Error(w, reason, status)
}
