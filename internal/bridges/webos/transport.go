package webos

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultPort is the plain WebSocket port of the SSAP service.
	DefaultPort = 3000

	// DefaultSecurePort is the TLS WebSocket port.
	DefaultSecurePort = 3001

	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second

	// maxFrameSize bounds inbound frames; channel and app lists are the largest.
	maxFrameSize = 4 << 20
)

// Transport is one duplex, message-oriented connection to a television.
//
// ReadMessage blocks until a frame arrives or the transport closes; Close
// must unblock a pending ReadMessage. Only the owning Session writes.
type Transport interface {
	WriteMessage(ctx context.Context, data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens transports. Tests substitute an in-memory implementation.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Transport, error)
}

// Endpoint builds the SSAP URL for a television.
func Endpoint(address string, port int, secure bool) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	if port == 0 {
		port = DefaultPort
		if secure {
			port = DefaultSecurePort
		}
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(address, strconv.Itoa(port))}
	return u.String()
}

// WSDialer dials televisions with gorilla/websocket.
type WSDialer struct {
	// HandshakeTimeout bounds the HTTP upgrade. Zero uses 10s.
	HandshakeTimeout time.Duration

	// WriteTimeout is used when a write context has no deadline. Zero uses 5s.
	WriteTimeout time.Duration
}

var _ Dialer = (*WSDialer)(nil)

// Dial opens a WebSocket to rawURL. Televisions serve self-signed
// certificates on the secure port, so certificate verification is skipped.
func (d *WSDialer) Dial(ctx context.Context, rawURL string) (Transport, error) {
	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            nil,
		HandshakeTimeout: handshake,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // webOS uses a self-signed certificate
			MinVersion:         tls.VersionTLS12,
		},
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Upgrade response body carries nothing useful
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, rawURL, err)
	}
	conn.SetReadLimit(maxFrameSize)

	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}, nil
}

// wsTransport adapts *websocket.Conn to Transport.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (t *wsTransport) WriteMessage(ctx context.Context, data []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.writeTimeout)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends a close frame (best effort) and closes the socket.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		// WriteControl may run concurrently with WriteMessage.
		_ = t.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // Peer may already be gone
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
