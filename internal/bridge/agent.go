package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/looplab/fsm"

	"github.com/agentplexus/voicebridge/internal/audio"
	"github.com/agentplexus/voicebridge/internal/convai"
	"github.com/agentplexus/voicebridge/internal/metrics"
)

// Agent session states.
const (
	StateIdle           = "idle"
	StateAuthenticating = "authenticating"
	StateConnecting     = "connecting"
	StateReady          = "ready"
	StateClosed         = "closed"
	StateFailed         = "failed"
)

// Agent session transitions.
const (
	eventAuthenticate = "authenticate"
	eventConnect      = "connect"
	eventEstablish    = "establish"
	eventFail         = "fail"
	eventClose        = "close"
)

// agentLeg owns the conversational-agent side of a bridged call. It brings
// the session up (credential exchange, dial, initiation), then pumps agent
// events back to the caller. Caller audio enters through ForwardFromCaller
// from the caller leg's goroutine.
type agentLeg struct {
	call    *Call
	caller  *callerLeg
	auth    SignedURLProvider
	dialer  Dialer
	codec   *audio.Codec
	session SessionConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	machine *fsm.FSM

	// writeMu serializes every write to the agent connection. Readiness
	// flips while it is held, so buffered audio always drains ahead of
	// live audio.
	writeMu sync.Mutex

	mu        sync.Mutex
	conn      Conn
	closed    bool
	closeOnce sync.Once

	done chan struct{}
}

func newAgentLeg(call *Call, auth SignedURLProvider, dialer Dialer, codec *audio.Codec, session SessionConfig, logger *slog.Logger, m *metrics.Metrics) *agentLeg {
	a := &agentLeg{
		call:    call,
		auth:    auth,
		dialer:  dialer,
		codec:   codec,
		session: session,
		logger:  logger,
		metrics: m,
		done:    make(chan struct{}),
	}
	a.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventAuthenticate, Src: []string{StateIdle}, Dst: StateAuthenticating},
			{Name: eventConnect, Src: []string{StateAuthenticating}, Dst: StateConnecting},
			{Name: eventEstablish, Src: []string{StateConnecting}, Dst: StateReady},
			{Name: eventFail, Src: []string{StateAuthenticating, StateConnecting}, Dst: StateFailed},
			{Name: eventClose, Src: []string{StateIdle, StateAuthenticating, StateConnecting, StateReady}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				logger.Debug("agent session transition", "from", e.Src, "to", e.Dst)
			},
		},
	)
	return a
}

// State returns the current session state.
func (a *agentLeg) State() string {
	return a.machine.Current()
}

// run drives the session to ready and then reads agent events until the
// connection ends. Any exit tears down the caller leg as well.
func (a *agentLeg) run(ctx context.Context) {
	defer close(a.done)
	defer func() {
		a.close()
		a.caller.close()
	}()

	if err := a.machine.Event(ctx, eventAuthenticate); err != nil {
		return
	}

	start := time.Now()
	signedURL, err := a.auth.GetSignedURL(ctx, a.call.AgentID)
	a.metrics.CredentialExchangeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		a.fail(ctx, metrics.StageCredentialExchange, err)
		return
	}

	if err := a.machine.Event(ctx, eventConnect); err != nil {
		return
	}

	conn, err := a.dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		a.fail(ctx, metrics.StageDial, err)
		return
	}
	if !a.adopt(conn) {
		_ = conn.Close()
		return
	}

	if err := a.initiateSession(); err != nil {
		a.fail(ctx, metrics.StageSessionInit, err)
		return
	}
	if err := a.machine.Event(ctx, eventEstablish); err != nil {
		return
	}
	a.logger.Info("agent session established")

	a.flushPending()
	a.readLoop()
}

// fail records a bring-up failure. The deferred cascade in run closes both
// legs afterwards; the machine stays in StateFailed for the final call log.
func (a *agentLeg) fail(ctx context.Context, stage string, err error) {
	a.metrics.CallFailures.WithLabelValues(stage).Inc()
	a.logger.Error("agent session failed", "stage", stage, "error", err)
	_ = a.machine.Event(ctx, eventFail)
}

// adopt installs the dialed connection unless the leg was closed while the
// dial was in flight, in which case the caller must discard it.
func (a *agentLeg) adopt(conn Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.conn = conn
	return true
}

func (a *agentLeg) activeConn() Conn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn
}

// initiateSession sends the one-time initiation message seeding the agent
// with the greeting, prompt override, and call context.
func (a *agentLeg) initiateSession() error {
	init := convai.NewInitiationMessage(a.session.Greeting, a.session.Prompt, a.session.ExtraBody)
	data, err := json.Marshal(init)
	if err != nil {
		return err
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	conn := a.activeConn()
	if conn == nil {
		return errors.New("agent connection not established")
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// flushPending marks the session ready and drains everything buffered
// before it. Holding writeMu across both steps keeps live caller audio
// behind the backlog.
func (a *agentLeg) flushPending() {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	pending := a.call.SetReady()
	a.metrics.PendingFlushed.Observe(float64(len(pending)))
	if len(pending) == 0 {
		return
	}
	a.logger.Debug("flushing buffered caller audio", "frames", len(pending))
	for _, unit := range pending {
		if err := a.writeAudioLocked(unit); err != nil {
			a.logger.Warn("agent write failed during flush", "error", err)
			a.close()
			return
		}
	}
}

// ForwardFromCaller delivers one canonical caller audio unit: buffered
// before readiness, written through after, dropped once the leg is closed.
func (a *agentLeg) ForwardFromCaller(unit []byte) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if a.isClosed() {
		return
	}
	if !a.call.Ready() {
		a.call.EnqueuePending(unit)
		return
	}
	if err := a.writeAudioLocked(unit); err != nil {
		a.logger.Warn("agent write failed", "error", err)
		a.close()
	}
}

// writeAudioLocked encodes and sends one unit. Callers hold writeMu.
func (a *agentLeg) writeAudioLocked(unit []byte) error {
	conn := a.activeConn()
	if conn == nil {
		return errors.New("agent connection not established")
	}
	data, binary := a.codec.EncodeUserAudio(unit)
	messageType := websocket.TextMessage
	if binary {
		messageType = websocket.BinaryMessage
	}
	if err := conn.WriteMessage(messageType, data); err != nil {
		return err
	}
	a.metrics.AudioFrames.WithLabelValues(metrics.DirectionCallerToAgent).Inc()
	a.metrics.AudioBytes.WithLabelValues(metrics.DirectionCallerToAgent).Add(float64(len(unit)))
	return nil
}

// readLoop consumes agent events until the connection ends.
func (a *agentLeg) readLoop() {
	conn := a.activeConn()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Warn("agent read failed", "error", err)
			} else {
				a.logger.Debug("agent connection closed", "error", err)
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			unit, err := a.codec.DecodeBinaryFrame(data)
			if err != nil {
				a.metrics.DecodeErrors.WithLabelValues(metrics.LegAgent).Inc()
				a.logger.Warn("dropping agent binary frame", "error", err)
				continue
			}
			a.caller.SendMedia(unit)
			continue
		}

		a.handleEvent(data)
	}
}

func (a *agentLeg) handleEvent(data []byte) {
	ev, err := convai.ParseServerEvent(data)
	if err != nil {
		a.metrics.DecodeErrors.WithLabelValues(metrics.LegAgent).Inc()
		a.logger.Warn("dropping malformed agent event", "error", err)
		return
	}

	switch ev.Type {
	case convai.EventAudio:
		payload := ev.AudioPayload()
		if payload == "" {
			a.metrics.DecodeErrors.WithLabelValues(metrics.LegAgent).Inc()
			a.logger.Warn("dropping audio event without payload")
			return
		}
		unit, err := audio.DecodePayload(payload)
		if err != nil {
			a.metrics.DecodeErrors.WithLabelValues(metrics.LegAgent).Inc()
			a.logger.Warn("dropping undecodable agent audio", "error", err)
			return
		}
		a.caller.SendMedia(unit)
	case convai.EventInterruption:
		a.logger.Debug("agent interrupted, clearing caller playback")
		a.caller.SendClear()
	case convai.EventPing:
		if ev.Ping == nil {
			a.logger.Warn("dropping ping without event id")
			return
		}
		a.sendPong(ev.Ping.EventID)
	case convai.EventMetadata:
		if ev.Metadata != nil {
			a.logger.Info("agent conversation ready",
				"conversation_id", ev.Metadata.ConversationID,
				"agent_output_format", ev.Metadata.AgentOutputAudioFormat)
		}
	default:
		a.logger.Debug("ignoring agent event", "type", ev.Type)
	}
}

func (a *agentLeg) sendPong(eventID int) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	conn := a.activeConn()
	if conn == nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, convai.Pong(eventID)); err != nil {
		a.logger.Warn("pong write failed", "error", err)
		a.close()
		return
	}
	a.metrics.PongsSent.Inc()
}

func (a *agentLeg) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// close shuts the agent leg down. Safe to call from any goroutine and any
// state; the first call wins and the rest are no-ops.
func (a *agentLeg) close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		conn := a.conn
		a.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		_ = a.machine.Event(context.Background(), eventClose)
	})
}
