package convai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetSignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/conversation/get-signed-url" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("agent_id"); got != "agent_1" {
			t.Errorf("expected agent_id agent_1, got %q", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("expected xi-api-key test-key, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"signed_url":"wss://api.elevenlabs.io/v1/convai/conversation?token=abc"}`))
	}))
	defer srv.Close()

	client, err := New(&Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	url, err := client.GetSignedURL(context.Background(), "agent_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "wss://api.elevenlabs.io/v1/convai/conversation?token=abc" {
		t.Errorf("unexpected signed url %q", url)
	}
}

func TestGetSignedURLAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	client, err := New(&Config{APIKey: "bad-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.GetSignedURL(context.Background(), "agent_1")
	if err == nil {
		t.Fatal("expected error for non-success response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.Status)
	}
	if apiErr.Detail != "invalid api key" {
		t.Errorf("expected detail 'invalid api key', got %q", apiErr.Detail)
	}
}

func TestGetSignedURLNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	client, err := New(&Config{APIKey: "key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.GetSignedURL(context.Background(), "agent_1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Detail != "upstream unavailable" {
		t.Errorf("expected raw body detail, got %q", apiErr.Detail)
	}
}

func TestGetSignedURLMissingAgentID(t *testing.T) {
	client, err := New(&Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.GetSignedURL(context.Background(), ""); err == nil {
		t.Error("expected error for missing agent ID")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")

	if _, err := New(nil); err == nil {
		t.Error("expected error when no API key is configured")
	}
}

func TestNewAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "env-key")

	client, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.apiKey != "env-key" {
		t.Errorf("expected env-key, got %q", client.apiKey)
	}
}

func TestGetSignedURLEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := New(&Config{APIKey: "key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.GetSignedURL(context.Background(), "agent_1"); err == nil {
		t.Error("expected error for response without signed_url")
	}
}
