package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/agentplexus/voicebridge/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics records request counts and latency per endpoint. Not applied
// to the stream endpoint, whose connections are hijacked by the upgrade.
func withMetrics(m *metrics.Metrics, endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		m.HTTPRequests.WithLabelValues(endpoint, r.Method, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
