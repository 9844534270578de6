// Package convai speaks the ElevenLabs Conversational AI protocol: the
// signed-URL exchange that opens a session, the one-time initiation message,
// and the typed events flowing over the conversation WebSocket.
package convai

import (
	"encoding/json"
	"fmt"
)

// Server event types.
const (
	EventAudio        = "audio"
	EventInterruption = "interruption"
	EventPing         = "ping"
	EventMetadata     = "conversation_initiation_metadata"
)

// InitiationMessage is sent exactly once after the conversation socket
// opens. It seeds the agent with the greeting and the call context.
type InitiationMessage struct {
	Type                       string             `json:"type"`
	ConversationConfigOverride ConversationConfig `json:"conversation_config_override"`
	CustomLLMExtraBody         map[string]any     `json:"custom_llm_extra_body,omitempty"`
}

// ConversationConfig overrides per-session agent behavior.
type ConversationConfig struct {
	Agent AgentOverride `json:"agent"`
}

// AgentOverride carries the per-call greeting and prompt.
type AgentOverride struct {
	FirstMessage string  `json:"first_message,omitempty"`
	Prompt       *Prompt `json:"prompt,omitempty"`
}

// Prompt is the system prompt override.
type Prompt struct {
	Prompt string `json:"prompt"`
}

// NewInitiationMessage builds the session-initialization message.
func NewInitiationMessage(greeting, prompt string, extraBody map[string]any) *InitiationMessage {
	msg := &InitiationMessage{
		Type: "conversation_initiation_client_data",
		ConversationConfigOverride: ConversationConfig{
			Agent: AgentOverride{FirstMessage: greeting},
		},
		CustomLLMExtraBody: extraBody,
	}
	if prompt != "" {
		msg.ConversationConfigOverride.Agent.Prompt = &Prompt{Prompt: prompt}
	}
	return msg
}

// ServerEvent is one inbound message from the agent, keyed by Type.
// Protocol revisions differ on where audio lives: newer sessions use
// audio_event.audio_base_64, older ones audio.chunk. Both are retained.
type ServerEvent struct {
	Type       string         `json:"type"`
	AudioEvent *AudioEvent    `json:"audio_event,omitempty"`
	Audio      *AudioChunk    `json:"audio,omitempty"`
	Ping       *PingEvent     `json:"ping_event,omitempty"`
	Metadata   *MetadataEvent `json:"conversation_initiation_metadata_event,omitempty"`
}

// AudioEvent is the current-revision audio payload.
type AudioEvent struct {
	AudioBase64 string `json:"audio_base_64"`
	EventID     int    `json:"event_id,omitempty"`
}

// AudioChunk is the legacy audio payload shape.
type AudioChunk struct {
	Chunk string `json:"chunk"`
}

// PingEvent is the keep-alive challenge; EventID must be echoed back.
type PingEvent struct {
	EventID int      `json:"event_id"`
	PingMS  *float64 `json:"ping_ms,omitempty"`
}

// MetadataEvent announces the established conversation.
type MetadataEvent struct {
	ConversationID         string `json:"conversation_id"`
	AgentOutputAudioFormat string `json:"agent_output_audio_format"`
	UserInputAudioFormat   string `json:"user_input_audio_format"`
}

// AudioPayload returns the base64 audio of an audio event regardless of
// which revision shape carried it, or "" when the event has none.
func (e *ServerEvent) AudioPayload() string {
	if e.AudioEvent != nil && e.AudioEvent.AudioBase64 != "" {
		return e.AudioEvent.AudioBase64
	}
	if e.Audio != nil {
		return e.Audio.Chunk
	}
	return ""
}

// ParseServerEvent decodes one inbound text frame.
func ParseServerEvent(data []byte) (*ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed agent event: %w", err)
	}
	return &ev, nil
}

// pongMessage is the keep-alive reply.
type pongMessage struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id"`
}

// Pong builds the reply to a ping carrying the same event identifier.
func Pong(eventID int) []byte {
	data, _ := json.Marshal(pongMessage{Type: "pong", EventID: eventID})
	return data
}
