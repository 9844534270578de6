package server

import (
	"encoding/xml"
	"net/http"
	"net/url"
)

// TwiML elements for the voice webhook response. Only the subset needed to
// connect a call to the media stream is modeled.
type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// handleVoice answers the incoming-call webhook with instructions to open a
// media stream back to this service. Call context travels both in the
// stream URL's query and as stream parameters, which the stream echoes in
// its start event.
func (s *MediaServer) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	callSID := r.FormValue("CallSid")
	from := r.FormValue("From")
	callerName := r.FormValue("CallerName")

	s.logger.Info("incoming call", "twilio_call_sid", callSID, "from", from)

	params := []twimlParameter{
		{Name: "callSid", Value: callSID},
		{Name: "callerNumber", Value: from},
	}
	if callerName != "" {
		params = append(params, twimlParameter{Name: "callerName", Value: callerName})
	}
	if s.cfg.Agent.AgentID != "" {
		params = append(params, twimlParameter{Name: "agentId", Value: s.cfg.Agent.AgentID})
	}

	response := twimlResponse{
		Connect: &twimlConnect{
			Stream: twimlStream{
				URL: s.streamURL(callSID, from, callerName),
				Parameters: params,
			},
		},
	}

	body, err := xml.MarshalIndent(response, "", "  ")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}

func (s *MediaServer) streamURL(callSID, from, callerName string) string {
	base := s.cfg.Server.PublicStreamURL()
	values := url.Values{}
	if callSID != "" {
		values.Set("call_sid", callSID)
	}
	if from != "" {
		values.Set("number", from)
	}
	if callerName != "" {
		values.Set("caller", callerName)
	}
	if len(values) == 0 {
		return base
	}
	return base + "?" + values.Encode()
}
