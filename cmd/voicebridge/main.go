// voicebridge bridges telephony media streams to conversational voice
// agents.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentplexus/voicebridge"
	"github.com/agentplexus/voicebridge/internal/bridge"
	"github.com/agentplexus/voicebridge/internal/config"
	"github.com/agentplexus/voicebridge/internal/convai"
	"github.com/agentplexus/voicebridge/internal/metrics"
	"github.com/agentplexus/voicebridge/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", voicebridge.ServiceName, voicebridge.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting", "service", voicebridge.ServiceName, "version", voicebridge.Version)

	client, err := convai.New(&convai.Config{
		APIKey:  cfg.Agent.APIKey,
		BaseURL: cfg.Agent.BaseURL,
	})
	if err != nil {
		logger.Error("agent client setup failed", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	manager := bridge.NewManager()

	mediaServer := server.NewMediaServer(cfg, client, manager, logger, m)

	errCh := make(chan error, 2)
	go func() {
		if err := mediaServer.Start(); err != nil {
			errCh <- fmt.Errorf("media server: %w", err)
		}
	}()

	var monitoringServer *server.MonitoringServer
	if cfg.Monitoring.Enabled {
		monitoringServer = server.NewMonitoringServer(cfg, manager, registry, logger, m)
		go func() {
			if err := monitoringServer.Start(); err != nil {
				errCh <- fmt.Errorf("monitoring server: %w", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if monitoringServer != nil {
		if err := monitoringServer.Stop(shutdownCtx); err != nil {
			logger.Warn("monitoring server shutdown failed", "error", err)
		}
	}
	if err := mediaServer.Stop(shutdownCtx); err != nil {
		logger.Warn("media server shutdown failed", "error", err)
	}

	active := manager.Count()
	manager.CloseAll()
	logger.Info("shutdown complete", "calls_closed", active)
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}
	return slog.New(handler)
}
