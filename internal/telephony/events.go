// Package telephony defines the Twilio Media Streams wire protocol: the JSON
// events arriving on an upgraded media-stream connection and the frames sent
// back on it.
package telephony

import (
	"encoding/json"
	"fmt"
)

// Media stream event names.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventDTMF      = "dtmf"
	EventMark      = "mark"
	EventStop      = "stop"
	EventClear     = "clear"
)

// Message is a single media-stream event. Exactly one of the payload fields
// is populated, selected by Event.
type Message struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *Start        `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *Mark         `json:"mark,omitempty"`
	Stop      *Stop         `json:"stop,omitempty"`
	DTMF      *DTMF         `json:"dtmf,omitempty"`
}

// Start carries the stream metadata Twilio sends once per call.
type Start struct {
	StreamSID    string            `json:"streamSid"`
	AccountSID   string            `json:"accountSid"`
	CallSID      string            `json:"callSid"`
	Tracks       []string          `json:"tracks"`
	MediaFormat  MediaFormat       `json:"mediaFormat"`
	CustomParams map[string]string `json:"customParameters"`
}

// MediaFormat describes the audio encoding of the stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one chunk of call audio.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"` // Base64 encoded audio
}

// Mark is a playback-position marker.
type Mark struct {
	Name string `json:"name"`
}

// Stop signals the end of the stream.
type Stop struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// DTMF carries a single pressed digit.
type DTMF struct {
	Digit string `json:"digit"`
}

// Parse decodes a raw media-stream frame.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed media-stream event: %w", err)
	}
	return &msg, nil
}

// MediaFrame builds an outbound media event for the given stream, with the
// payload already base64 encoded.
func MediaFrame(streamSID, payload string) []byte {
	data, _ := json.Marshal(Message{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     &MediaPayload{Payload: payload},
	})
	return data
}

// ClearFrame builds an outbound clear event telling the stream to discard
// any audio buffered for playback.
func ClearFrame(streamSID string) []byte {
	data, _ := json.Marshal(Message{
		Event:     EventClear,
		StreamSID: streamSID,
	})
	return data
}

// MarkFrame builds an outbound mark event for playback synchronization.
func MarkFrame(streamSID, name string) []byte {
	data, _ := json.Marshal(Message{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      &Mark{Name: name},
	})
	return data
}
