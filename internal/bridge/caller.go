package bridge

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/agentplexus/voicebridge/internal/audio"
	"github.com/agentplexus/voicebridge/internal/metrics"
	"github.com/agentplexus/voicebridge/internal/telephony"
)

// callerLeg owns the telephony side of a bridged call: it consumes
// media-stream events from the already-upgraded connection and writes media
// and clear frames back to it.
type callerLeg struct {
	conn    Conn
	call    *Call
	agent   *agentLeg
	logger  *slog.Logger
	metrics *metrics.Metrics

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// run consumes the media stream until it ends. Either leg ending tears the
// other down, so a failed agent session surfaces here as a read error.
func (l *callerLeg) run() {
	defer func() {
		l.close()
		l.agent.close()
	}()

	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.logger.Warn("caller stream read failed", "error", err)
			} else {
				l.logger.Debug("caller stream closed", "error", err)
			}
			return
		}

		msg, err := telephony.Parse(data)
		if err != nil {
			l.metrics.DecodeErrors.WithLabelValues(metrics.LegCaller).Inc()
			l.logger.Warn("dropping malformed caller event", "error", err)
			continue
		}

		switch msg.Event {
		case telephony.EventConnected:
			l.logger.Debug("caller stream connected")
		case telephony.EventStart:
			l.handleStart(msg)
		case telephony.EventMedia:
			l.handleMedia(msg)
		case telephony.EventDTMF:
			if msg.DTMF != nil {
				l.logger.Info("caller pressed digit", "digit", msg.DTMF.Digit)
			}
		case telephony.EventMark:
			if msg.Mark != nil {
				l.logger.Debug("caller mark reached", "name", msg.Mark.Name)
			}
		case telephony.EventStop:
			l.logger.Info("caller stream stopped")
			return
		default:
			l.logger.Debug("ignoring caller event", "event", msg.Event)
		}
	}
}

func (l *callerLeg) handleStart(msg *telephony.Message) {
	sid := msg.StreamSID
	if msg.Start != nil && msg.Start.StreamSID != "" {
		sid = msg.Start.StreamSID
	}
	if sid == "" {
		l.logger.Warn("start event without stream sid")
		return
	}
	if !l.call.SetStreamSID(sid) {
		l.logger.Warn("ignoring repeated start event",
			"stream_sid", sid,
			"active_stream_sid", l.call.StreamSID())
		return
	}
	attrs := []any{"stream_sid", sid}
	if msg.Start != nil {
		attrs = append(attrs,
			"twilio_call_sid", msg.Start.CallSID,
			"tracks", msg.Start.Tracks,
			"encoding", msg.Start.MediaFormat.Encoding)
		for k, v := range msg.Start.CustomParams {
			attrs = append(attrs, "param_"+k, v)
		}
	}
	l.logger.Info("caller stream started", attrs...)
}

func (l *callerLeg) handleMedia(msg *telephony.Message) {
	if msg.Media == nil || msg.Media.Payload == "" {
		l.metrics.DecodeErrors.WithLabelValues(metrics.LegCaller).Inc()
		l.logger.Warn("dropping media event without payload")
		return
	}
	unit, err := audio.DecodePayload(msg.Media.Payload)
	if err != nil {
		l.metrics.DecodeErrors.WithLabelValues(metrics.LegCaller).Inc()
		l.logger.Warn("dropping undecodable caller audio", "error", err)
		return
	}
	l.agent.ForwardFromCaller(unit)
}

// SendMedia forwards one canonical audio unit to the caller. Audio arriving
// before the start event has no stream to address and is dropped.
func (l *callerLeg) SendMedia(unit []byte) {
	sid := l.call.StreamSID()
	if sid == "" {
		l.logger.Debug("dropping agent audio before stream start")
		return
	}
	l.metrics.AudioFrames.WithLabelValues(metrics.DirectionAgentToCaller).Inc()
	l.metrics.AudioBytes.WithLabelValues(metrics.DirectionAgentToCaller).Add(float64(len(unit)))
	l.write(telephony.MediaFrame(sid, audio.EncodePayload(unit)))
}

// SendClear tells the stream to discard buffered playback audio. Dropped
// before the start event for the same reason as SendMedia.
func (l *callerLeg) SendClear() {
	sid := l.call.StreamSID()
	if sid == "" {
		l.logger.Debug("dropping clear before stream start")
		return
	}
	l.metrics.ClearsSent.Inc()
	l.write(telephony.ClearFrame(sid))
}

func (l *callerLeg) write(frame []byte) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		l.logger.Debug("caller write failed", "error", err)
		l.close()
	}
}

// close shuts the caller connection down. Closing the connection unblocks
// the read loop, whose deferred cascade then closes the agent leg.
func (l *callerLeg) close() {
	l.closeOnce.Do(func() {
		_ = l.conn.Close()
	})
}
