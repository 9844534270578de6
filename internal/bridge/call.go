package bridge

import (
	"sync"
	"time"
)

// Call is the shared mutable state of one bridged call. It is owned
// exclusively by the pair of legs created for the call and is never reused
// or shared across calls.
type Call struct {
	SID          string
	AgentID      string
	CallerName   string
	CallerNumber string
	StartedAt    time.Time

	mu        sync.Mutex
	streamSID string
	ready     bool
	pending   [][]byte
}

func newCall(params Params) *Call {
	return &Call{
		SID:          params.CallSID,
		AgentID:      params.AgentID,
		CallerName:   params.CallerName,
		CallerNumber: params.CallerNumber,
		StartedAt:    time.Now(),
	}
}

// SetStreamSID records the stream identifier from the caller's start event.
// The first value wins for the lifetime of the call; the return value
// reports whether this call set it.
func (c *Call) SetStreamSID(sid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamSID != "" || sid == "" {
		return false
	}
	c.streamSID = sid
	return true
}

// StreamSID returns the stream identifier, or "" before the start event.
func (c *Call) StreamSID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamSID
}

// Ready reports whether the agent leg has completed session initialization.
func (c *Call) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// EnqueuePending buffers a caller audio unit that arrived before the agent
// leg was ready. Units are held in arrival order in canonical form.
func (c *Call) EnqueuePending(unit []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return
	}
	c.pending = append(c.pending, unit)
}

// SetReady flips the readiness flag and hands back everything buffered so
// far. The flag never resets and the backlog is surrendered exactly once;
// later calls return nil.
func (c *Call) SetReady() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	c.ready = true
	pending := c.pending
	c.pending = nil
	return pending
}

// PendingCount returns the number of buffered units.
func (c *Call) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// CallSnapshot is a point-in-time view of a call for diagnostics.
type CallSnapshot struct {
	CallSID         string  `json:"call_sid"`
	AgentID         string  `json:"agent_id"`
	CallerNumber    string  `json:"caller_number,omitempty"`
	StreamSID       string  `json:"stream_sid,omitempty"`
	AgentReady      bool    `json:"agent_ready"`
	PendingFrames   int     `json:"pending_frames"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Snapshot captures the call's current state.
func (c *Call) Snapshot() CallSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CallSnapshot{
		CallSID:         c.SID,
		AgentID:         c.AgentID,
		CallerNumber:    c.CallerNumber,
		StreamSID:       c.streamSID,
		AgentReady:      c.ready,
		PendingFrames:   len(c.pending),
		DurationSeconds: time.Since(c.StartedAt).Seconds(),
	}
}
