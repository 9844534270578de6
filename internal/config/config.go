// Package config loads service configuration from a YAML file with
// environment overrides for credentials.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentplexus/voicebridge"
	"github.com/agentplexus/voicebridge/internal/audio"
)

// Config is the root service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`
	Agent      AgentConfig      `yaml:"agent" json:"agent"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ServerConfig configures the public media server.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// StreamPath is the WebSocket endpoint the media stream connects to.
	StreamPath string `yaml:"stream_path" json:"stream_path"`

	// VoicePath is the webhook endpoint answering incoming calls.
	VoicePath string `yaml:"voice_path" json:"voice_path"`

	// PublicHost is the externally reachable host for stream URLs placed
	// in call-control responses, e.g. "bridge.example.com".
	PublicHost string `yaml:"public_host" json:"public_host"`
}

// MonitoringConfig configures the private health and metrics server.
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
}

// AgentConfig configures the conversational agent sessions.
type AgentConfig struct {
	// APIKey authenticates the signed-URL exchange. Falls back to the
	// ELEVENLABS_API_KEY environment variable.
	APIKey string `yaml:"api_key" json:"api_key"`

	// AgentID is the default agent when a call does not select one.
	// Falls back to the ELEVENLABS_AGENT_ID environment variable.
	AgentID string `yaml:"agent_id" json:"agent_id"`

	BaseURL string `yaml:"base_url" json:"base_url"`

	// Greeting and Prompt seed each session. Both may reference
	// {caller_name} and {caller_number}, expanded per call.
	Greeting string `yaml:"greeting" json:"greeting"`
	Prompt   string `yaml:"prompt" json:"prompt"`

	// ExtraBody is merged into each session's custom LLM body, under any
	// per-call context keys.
	ExtraBody map[string]any `yaml:"extra_body" json:"extra_body,omitempty"`

	// AudioTransport selects the agent-leg audio framing, "base64_json"
	// or "binary".
	AudioTransport string `yaml:"audio_transport" json:"audio_transport"`

	DialTimeout string `yaml:"dial_timeout" json:"dial_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// Load reads the configuration file at path, applies environment overrides
// and defaults, and validates the result. An empty path yields a default
// configuration driven entirely by environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ELEVENLABS_API_KEY"); v != "" {
		c.Agent.APIKey = v
	}
	if v := os.Getenv("ELEVENLABS_AGENT_ID"); v != "" {
		c.Agent.AgentID = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.StreamPath == "" {
		c.Server.StreamPath = voicebridge.DefaultStreamPath
	}
	if c.Server.VoicePath == "" {
		c.Server.VoicePath = voicebridge.DefaultVoicePath
	}
	if c.Monitoring.Host == "" {
		c.Monitoring.Host = "0.0.0.0"
	}
	if c.Monitoring.Port == 0 {
		c.Monitoring.Port = 9090
	}
	if c.Agent.BaseURL == "" {
		c.Agent.BaseURL = voicebridge.DefaultAPIBaseURL
	}
	if c.Agent.AudioTransport == "" {
		c.Agent.AudioTransport = string(audio.TransportBase64JSON)
	}
	if c.Agent.DialTimeout == "" {
		c.Agent.DialTimeout = "45s"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Monitoring.Validate(); err != nil {
		return fmt.Errorf("monitoring config: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the server section.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.StreamPath == "" || c.StreamPath[0] != '/' {
		return fmt.Errorf("stream path %q must begin with /", c.StreamPath)
	}
	if c.VoicePath == "" || c.VoicePath[0] != '/' {
		return fmt.Errorf("voice path %q must begin with /", c.VoicePath)
	}
	if c.StreamPath == c.VoicePath {
		return fmt.Errorf("stream path and voice path must differ, both are %q", c.StreamPath)
	}
	return nil
}

// Validate checks the monitoring section.
func (c *MonitoringConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Validate checks the agent section.
func (c *AgentConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key is required (set agent.api_key or ELEVENLABS_API_KEY)")
	}
	if c.AgentID == "" {
		return fmt.Errorf("agent id is required (set agent.agent_id or ELEVENLABS_AGENT_ID)")
	}
	switch audio.Transport(c.AudioTransport) {
	case audio.TransportBase64JSON, audio.TransportBinary:
	default:
		return fmt.Errorf("invalid audio transport %q", c.AudioTransport)
	}
	if _, err := time.ParseDuration(c.DialTimeout); err != nil {
		return fmt.Errorf("invalid dial timeout %q", c.DialTimeout)
	}
	return nil
}

// Validate checks the logging section.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Level)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Format)
	}
	return nil
}

// Address returns the listen address of the media server.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Address returns the listen address of the monitoring server.
func (c *MonitoringConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// PublicStreamURL returns the wss URL call-control responses point the
// media stream at. Falls back to the listen address when no public host is
// configured.
func (c *ServerConfig) PublicStreamURL() string {
	host := c.PublicHost
	if host == "" {
		host = c.Address()
	}
	return "wss://" + host + c.StreamPath
}

// GetDialTimeoutDuration returns the agent dial timeout.
func (c *AgentConfig) GetDialTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.DialTimeout)
	if err != nil {
		return 45 * time.Second
	}
	return d
}

// GetTransport returns the configured agent audio transport.
func (c *AgentConfig) GetTransport() audio.Transport {
	return audio.Transport(c.AudioTransport)
}

// Redacted returns a copy safe to expose on diagnostic endpoints.
func (c *Config) Redacted() Config {
	out := *c
	if out.Agent.APIKey != "" {
		out.Agent.APIKey = "[redacted]"
	}
	return out
}
