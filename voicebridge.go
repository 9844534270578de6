// Package voicebridge connects Twilio Media Streams calls to ElevenLabs
// conversational agents over WebSocket.
//
// The service accepts the media-stream connection Twilio opens for a call,
// fetches a one-time signed URL for the configured agent, opens the agent
// conversation, and relays audio in both directions until either side hangs
// up. Caller audio received before the agent session is ready is buffered
// and flushed, in order, the moment the session initialization completes.
//
// # Running
//
//	go build ./cmd/voicebridge
//	./voicebridge -config configs/config.yaml
//
// # Environment Variables
//
//	ELEVENLABS_API_KEY  - API key used for the signed-URL exchange
//	ELEVENLABS_AGENT_ID - Default agent when the stream URL carries none
//
// # Call Flow
//
//	Twilio webhook -> POST /voice/inbound   (TwiML with <Connect><Stream>)
//	Twilio stream  -> GET  /media-stream    (WebSocket upgrade, one bridge per call)
package voicebridge

// Version is the service version.
const Version = "0.1.0"

// ServiceName identifies the service in logs and diagnostics.
const ServiceName = "voicebridge"

// ElevenLabs API constants.
const (
	// DefaultAPIBaseURL is the ElevenLabs REST API base URL used for the
	// signed-URL exchange.
	DefaultAPIBaseURL = "https://api.elevenlabs.io"

	// SignedURLPath is the conversational-AI endpoint that trades an API
	// key and agent ID for a one-time WebSocket URL.
	SignedURLPath = "/v1/convai/conversation/get-signed-url"
)

// Media stream endpoint defaults.
const (
	// DefaultStreamPath is the WebSocket path Twilio connects to.
	DefaultStreamPath = "/media-stream"

	// DefaultVoicePath is the webhook path that answers inbound calls
	// with TwiML pointing at the stream endpoint.
	DefaultVoicePath = "/voice/inbound"
)

// Audio format constants for Twilio Media Streams.
const (
	// AudioEncodingMulaw is the μ-law encoding (8-bit, 8kHz).
	AudioEncodingMulaw = "audio/x-mulaw"

	// DefaultSampleRate is the sample rate for Twilio call audio (8kHz).
	DefaultSampleRate = 8000
)
