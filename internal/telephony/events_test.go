package telephony

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		expectError bool
		check       func(t *testing.T, msg *Message)
	}{
		{
			name: "start event",
			data: `{"event":"start","sequenceNumber":"1","start":{"streamSid":"MZ123","accountSid":"AC123","callSid":"CA123","tracks":["inbound"],"mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1},"customParameters":{"caller":"Alice"}}}`,
			check: func(t *testing.T, msg *Message) {
				if msg.Event != EventStart {
					t.Errorf("expected event %q, got %q", EventStart, msg.Event)
				}
				if msg.Start == nil {
					t.Fatal("expected start payload")
				}
				if msg.Start.StreamSID != "MZ123" {
					t.Errorf("expected streamSid MZ123, got %q", msg.Start.StreamSID)
				}
				if msg.Start.CallSID != "CA123" {
					t.Errorf("expected callSid CA123, got %q", msg.Start.CallSID)
				}
				if msg.Start.MediaFormat.SampleRate != 8000 {
					t.Errorf("expected sample rate 8000, got %d", msg.Start.MediaFormat.SampleRate)
				}
				if msg.Start.CustomParams["caller"] != "Alice" {
					t.Errorf("expected custom parameter caller=Alice, got %q", msg.Start.CustomParams["caller"])
				}
			},
		},
		{
			name: "media event",
			data: `{"event":"media","media":{"track":"inbound","chunk":"2","timestamp":"5","payload":"dGVzdA=="}}`,
			check: func(t *testing.T, msg *Message) {
				if msg.Event != EventMedia {
					t.Errorf("expected event %q, got %q", EventMedia, msg.Event)
				}
				if msg.Media == nil {
					t.Fatal("expected media payload")
				}
				if msg.Media.Payload != "dGVzdA==" {
					t.Errorf("expected payload dGVzdA==, got %q", msg.Media.Payload)
				}
			},
		},
		{
			name: "stop event",
			data: `{"event":"stop","stop":{"accountSid":"AC123","callSid":"CA123"}}`,
			check: func(t *testing.T, msg *Message) {
				if msg.Event != EventStop {
					t.Errorf("expected event %q, got %q", EventStop, msg.Event)
				}
				if msg.Stop == nil {
					t.Fatal("expected stop payload")
				}
			},
		},
		{
			name: "dtmf event",
			data: `{"event":"dtmf","dtmf":{"digit":"5"}}`,
			check: func(t *testing.T, msg *Message) {
				if msg.DTMF == nil {
					t.Fatal("expected dtmf payload")
				}
				if msg.DTMF.Digit != "5" {
					t.Errorf("expected digit 5, got %q", msg.DTMF.Digit)
				}
			},
		},
		{
			name: "connected event",
			data: `{"event":"connected","protocol":"Call","version":"1.0.0"}`,
			check: func(t *testing.T, msg *Message) {
				if msg.Event != EventConnected {
					t.Errorf("expected event %q, got %q", EventConnected, msg.Event)
				}
			},
		},
		{
			name: "unknown fields ignored",
			data: `{"event":"mark","streamSid":"MZ123","mark":{"name":"greeting"},"extra":42}`,
			check: func(t *testing.T, msg *Message) {
				if msg.Mark == nil || msg.Mark.Name != "greeting" {
					t.Errorf("expected mark greeting, got %+v", msg.Mark)
				}
			},
		},
		{
			name:        "malformed json",
			data:        `{"event":"media",`,
			expectError: true,
		},
		{
			name:        "not an object",
			data:        `[1,2,3]`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse([]byte(tt.data))

			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, msg)
		})
	}
}

func TestMediaFrame(t *testing.T) {
	got := string(MediaFrame("MZ123", "QkJCQg=="))
	want := `{"event":"media","streamSid":"MZ123","media":{"payload":"QkJCQg=="}}`
	if got != want {
		t.Errorf("MediaFrame mismatch:\n got  %s\n want %s", got, want)
	}

	// Outbound frames must survive a parse round trip.
	msg, err := Parse([]byte(got))
	if err != nil {
		t.Fatalf("parsing own media frame: %v", err)
	}
	if msg.Event != EventMedia || msg.StreamSID != "MZ123" || msg.Media == nil || msg.Media.Payload != "QkJCQg==" {
		t.Errorf("round-tripped frame lost fields: %+v", msg)
	}
}

func TestClearFrame(t *testing.T) {
	got := string(ClearFrame("MZ123"))
	want := `{"event":"clear","streamSid":"MZ123"}`
	if got != want {
		t.Errorf("ClearFrame mismatch:\n got  %s\n want %s", got, want)
	}
}

func TestMarkFrame(t *testing.T) {
	got := string(MarkFrame("MZ123", "chunk-1"))
	want := `{"event":"mark","streamSid":"MZ123","mark":{"name":"chunk-1"}}`
	if got != want {
		t.Errorf("MarkFrame mismatch:\n got  %s\n want %s", got, want)
	}
}
