package bridge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentplexus/voicebridge/internal/convai"
)

// Conn is the minimal WebSocket surface a leg needs. *websocket.Conn
// satisfies it directly; tests substitute in-memory fakes.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Verify interface compliance at compile time.
var _ Conn = (*websocket.Conn)(nil)

// SignedURLProvider performs the credential exchange: a static service
// credential plus the agent identifier buys a one-time connection URL.
type SignedURLProvider interface {
	GetSignedURL(ctx context.Context, agentID string) (string, error)
}

// Verify interface compliance at compile time.
var _ SignedURLProvider = (*convai.Client)(nil)

// Dialer opens the agent-side WebSocket connection.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (Conn, error)
}

// wsDialer adapts *websocket.Dialer to the Dialer interface.
type wsDialer struct {
	d *websocket.Dialer
}

// NewDialer returns a Dialer backed by gorilla/websocket. A zero timeout
// uses the library default.
func NewDialer(handshakeTimeout time.Duration) Dialer {
	return wsDialer{
		d: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (w wsDialer) DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (Conn, error) {
	conn, resp, err := w.d.DialContext(ctx, urlStr, requestHeader)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial agent: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	return conn, nil
}
