// Package metrics defines the Prometheus collectors exposed by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for the direction label on audio counters.
const (
	DirectionCallerToAgent = "caller_to_agent"
	DirectionAgentToCaller = "agent_to_caller"
)

// Label values for the stage label on call failure counters.
const (
	StageCredentialExchange = "credential_exchange"
	StageDial               = "dial"
	StageSessionInit        = "session_init"
)

// Label values for the leg label on decode error counters.
const (
	LegCaller = "caller"
	LegAgent  = "agent"
)

// Metrics holds all collectors for the bridge service.
type Metrics struct {
	CallsStarted   prometheus.Counter
	CallsCompleted prometheus.Counter
	CallFailures   *prometheus.CounterVec
	ActiveCalls    prometheus.Gauge

	AudioFrames *prometheus.CounterVec
	AudioBytes  *prometheus.CounterVec

	PendingFlushed             prometheus.Histogram
	CredentialExchangeDuration prometheus.Histogram

	ClearsSent   prometheus.Counter
	PongsSent    prometheus.Counter
	DecodeErrors *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors with reg and returns them. Tests pass
// a private registry so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CallsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_calls_started_total",
			Help: "Total number of bridged calls accepted",
		}),
		CallsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_calls_completed_total",
			Help: "Total number of bridged calls that ended",
		}),
		CallFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_call_failures_total",
			Help: "Total number of calls that failed before the agent session was established",
		}, []string{"stage"}),
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicebridge_active_calls",
			Help: "Number of calls currently bridged",
		}),
		AudioFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_audio_frames_total",
			Help: "Total number of audio frames forwarded",
		}, []string{"direction"}),
		AudioBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_audio_bytes_total",
			Help: "Total decoded audio bytes forwarded",
		}, []string{"direction"}),
		PendingFlushed: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebridge_pending_frames_flushed",
			Help:    "Number of buffered caller frames flushed when the agent session became ready",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		CredentialExchangeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebridge_credential_exchange_duration_seconds",
			Help:    "Time spent obtaining a signed agent session URL",
			Buckets: prometheus.DefBuckets,
		}),
		ClearsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_clears_sent_total",
			Help: "Total number of clear events sent to the caller leg",
		}),
		PongsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_pongs_sent_total",
			Help: "Total number of pong replies sent to the agent leg",
		}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_decode_errors_total",
			Help: "Total number of malformed audio payloads dropped",
		}, []string{"leg"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_http_requests_total",
			Help: "Total number of HTTP requests handled",
		}, []string{"endpoint", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicebridge_http_request_duration_seconds",
			Help:    "HTTP request handling time",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}
