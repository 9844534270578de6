package audio

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewCodec(t *testing.T) {
	tests := []struct {
		name        string
		transport   Transport
		expectError bool
	}{
		{name: "base64 json", transport: TransportBase64JSON},
		{name: "binary", transport: TransportBinary},
		{name: "unknown", transport: Transport("msgpack"), expectError: true},
		{name: "empty", transport: Transport(""), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(tt.transport)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Transport() != tt.transport {
				t.Errorf("expected transport %q, got %q", tt.transport, c.Transport())
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		unit []byte
	}{
		{name: "short", unit: []byte{0x00, 0x7f, 0xff}},
		{name: "empty", unit: []byte{}},
		{name: "mulaw silence", unit: bytes.Repeat([]byte{0xff}, 160)},
		{name: "arbitrary", unit: []byte("not really audio but any bytes must survive")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodePayload(tt.unit)
			decoded, err := DecodePayload(encoded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(decoded, tt.unit) {
				t.Errorf("round trip mismatch: got %v, want %v", decoded, tt.unit)
			}
		})
	}
}

func TestDecodePayloadInvalid(t *testing.T) {
	_, err := DecodePayload("not-base64!!!")
	if err == nil {
		t.Fatal("expected error for invalid base64")
	}

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Errorf("expected *DecodeError, got %T", err)
	}
}

func TestUserAudioRoundTrip(t *testing.T) {
	unit := []byte{0x01, 0x02, 0x03, 0xfe}

	for _, transport := range []Transport{TransportBase64JSON, TransportBinary} {
		t.Run(string(transport), func(t *testing.T) {
			c, err := NewCodec(transport)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			data, binary := c.EncodeUserAudio(unit)
			if binary != (transport == TransportBinary) {
				t.Errorf("binary flag %v does not match transport %q", binary, transport)
			}

			decoded, err := c.DecodeUserAudio(data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(decoded, unit) {
				t.Errorf("round trip mismatch: got %v, want %v", decoded, unit)
			}
		})
	}
}

func TestEncodeUserAudioEnvelope(t *testing.T) {
	c, err := NewCodec(TransportBase64JSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, binary := c.EncodeUserAudio([]byte("BBBB"))
	if binary {
		t.Error("base64_json transport must produce text frames")
	}

	want := `{"user_audio_chunk":"QkJCQg=="}`
	if string(data) != want {
		t.Errorf("envelope mismatch:\n got  %s\n want %s", data, want)
	}
}

func TestDecodeBinaryFrame(t *testing.T) {
	unit := []byte{0xaa, 0xbb}

	binaryCodec, err := NewCodec(TransportBinary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := binaryCodec.DecodeBinaryFrame(unit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, unit) {
		t.Errorf("binary frame must pass through unchanged, got %v", got)
	}

	jsonCodec, err := NewCodec(TransportBase64JSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := jsonCodec.DecodeBinaryFrame(unit); err == nil {
		t.Error("expected decode error for binary frame on base64_json transport")
	} else {
		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			t.Errorf("expected *DecodeError, got %T", err)
		}
	}
}
