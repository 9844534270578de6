// Package bridge relays audio between a telephony media stream and a
// conversational agent session. Each accepted call gets one Bridge: a
// caller leg reading the media stream and an agent leg driving the agent
// session, joined by a shared Call context. Caller audio arriving before
// the agent session is ready is buffered and delivered in order the moment
// it becomes ready.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentplexus/voicebridge/internal/audio"
	"github.com/agentplexus/voicebridge/internal/metrics"
)

// Params identifies one call to bridge.
type Params struct {
	// CallSID identifies the call in logs and diagnostics. A random
	// identifier is generated when empty.
	CallSID string

	// AgentID selects the conversational agent. Required.
	AgentID string

	CallerName   string
	CallerNumber string
}

// SessionConfig seeds the agent session.
type SessionConfig struct {
	// Greeting is spoken by the agent as its first message.
	Greeting string

	// Prompt overrides the agent's system prompt when non-empty.
	Prompt string

	// ExtraBody is passed through to the agent's language model backend.
	ExtraBody map[string]any
}

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	auth    SignedURLProvider
	dialer  Dialer
	codec   *audio.Codec
	session SessionConfig
}

// Option configures a Bridge.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithAuth sets the signed-URL provider used to open agent sessions.
func WithAuth(p SignedURLProvider) Option {
	return func(o *options) {
		o.auth = p
	}
}

// WithDialer sets the dialer for the agent connection.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithCodec sets the agent-leg audio codec.
func WithCodec(c *audio.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithSession sets the session seed sent to the agent.
func WithSession(s SessionConfig) Option {
	return func(o *options) {
		o.session = s
	}
}

// Bridge joins one caller connection to one agent session.
type Bridge struct {
	call    *Call
	caller  *callerLeg
	agent   *agentLeg
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a Bridge over an already-upgraded caller connection. The
// connection is owned by the Bridge from here on and is closed by Run.
func New(conn Conn, params Params, opts ...Option) (*Bridge, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.auth == nil {
		return nil, errors.New("bridge: signed-url provider is required")
	}
	if params.AgentID == "" {
		return nil, errors.New("bridge: agent id is required")
	}
	if params.CallSID == "" {
		params.CallSID = uuid.NewString()
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	logger := o.logger.With("call_sid", params.CallSID)

	if o.metrics == nil {
		o.metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	if o.dialer == nil {
		o.dialer = NewDialer(45 * time.Second)
	}
	if o.codec == nil {
		codec, err := audio.NewCodec(audio.TransportBase64JSON)
		if err != nil {
			return nil, err
		}
		o.codec = codec
	}

	call := newCall(params)
	agent := newAgentLeg(call, o.auth, o.dialer, o.codec, o.session, logger.With("leg", "agent"), o.metrics)
	caller := &callerLeg{
		conn:    conn,
		call:    call,
		agent:   agent,
		logger:  logger.With("leg", "caller"),
		metrics: o.metrics,
	}
	agent.caller = caller

	return &Bridge{
		call:    call,
		caller:  caller,
		agent:   agent,
		logger:  logger,
		metrics: o.metrics,
	}, nil
}

// Run bridges the call until both legs end. It blocks for the lifetime of
// the call and owns both connections.
func (b *Bridge) Run(ctx context.Context) {
	b.metrics.CallsStarted.Inc()
	b.metrics.ActiveCalls.Inc()
	defer func() {
		b.metrics.ActiveCalls.Dec()
		b.metrics.CallsCompleted.Inc()
	}()

	b.logger.Info("call bridged",
		"agent_id", b.call.AgentID,
		"caller_number", b.call.CallerNumber)

	go b.agent.run(ctx)
	b.caller.run()
	<-b.agent.done

	b.logger.Info("call ended",
		"agent_state", b.agent.State(),
		"duration_seconds", time.Since(b.call.StartedAt).Seconds())
}

// Close tears the call down. Run returns shortly after.
func (b *Bridge) Close() {
	b.caller.close()
	b.agent.close()
}

// CallSID returns the call identifier.
func (b *Bridge) CallSID() string {
	return b.call.SID
}

// Snapshot reports the call's current state for diagnostics.
func (b *Bridge) Snapshot() CallSnapshot {
	return b.call.Snapshot()
}
