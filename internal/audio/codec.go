// Package audio translates audio payloads between the two legs' wire
// conventions. The caller leg carries base64 text inside JSON media events;
// the agent leg carries either raw binary frames or a JSON-wrapped base64
// chunk, depending on the protocol revision in use. Both map to the same
// canonical byte slice inside the bridge, so the queueing and forwarding
// code never needs to know which revision is active.
package audio

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Transport selects the agent-leg audio framing.
type Transport string

const (
	// TransportBase64JSON sends and expects audio as base64 text inside
	// JSON messages.
	TransportBase64JSON Transport = "base64_json"

	// TransportBinary sends and expects audio as raw binary frames.
	TransportBinary Transport = "binary"
)

// DecodeError reports an audio payload that could not be decoded. Handlers
// drop the single unit and keep the connection running.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("audio decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// userAudioMessage is the JSON envelope for outbound caller audio on the
// base64_json transport.
type userAudioMessage struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

// Codec converts payloads between wire encodings and canonical bytes for
// one agent protocol revision. Codecs are stateless and safe for
// concurrent use.
type Codec struct {
	transport Transport
}

// NewCodec returns a codec for the given agent transport.
func NewCodec(t Transport) (*Codec, error) {
	switch t {
	case TransportBase64JSON, TransportBinary:
		return &Codec{transport: t}, nil
	default:
		return nil, fmt.Errorf("unknown audio transport %q", t)
	}
}

// Transport returns the configured agent transport.
func (c *Codec) Transport() Transport {
	return c.transport
}

// DecodePayload decodes base64 text into canonical bytes. Used for caller
// media payloads and for base64 audio fields from the agent.
func DecodePayload(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}
	return data, nil
}

// EncodePayload encodes canonical bytes as base64 text for a caller media
// frame.
func EncodePayload(unit []byte) string {
	return base64.StdEncoding.EncodeToString(unit)
}

// EncodeUserAudio wraps one canonical unit for delivery to the agent.
// The returned flag reports whether the frame must be sent as a binary
// message rather than text.
func (c *Codec) EncodeUserAudio(unit []byte) (data []byte, binary bool) {
	if c.transport == TransportBinary {
		return unit, true
	}
	data, _ = json.Marshal(userAudioMessage{
		UserAudioChunk: base64.StdEncoding.EncodeToString(unit),
	})
	return data, false
}

// DecodeUserAudio reverses EncodeUserAudio. It exists so the round-trip
// property of the agent encoding can be checked directly.
func (c *Codec) DecodeUserAudio(data []byte) ([]byte, error) {
	if c.transport == TransportBinary {
		return data, nil
	}
	var msg userAudioMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &DecodeError{Reason: "invalid user audio envelope", Err: err}
	}
	return DecodePayload(msg.UserAudioChunk)
}

// DecodeBinaryFrame interprets a raw binary frame from the agent. Binary
// audio is only valid on the binary transport; on base64_json it is a
// decode failure and the unit is dropped.
func (c *Codec) DecodeBinaryFrame(data []byte) ([]byte, error) {
	if c.transport != TransportBinary {
		return nil, &DecodeError{Reason: fmt.Sprintf("unexpected binary frame on %s transport", c.transport)}
	}
	return data, nil
}
