package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed for the opening handshake.
	handshakeTimeout = 15 * time.Second

	wsPath = "/ws"
)

// Conn is the transport half the bridge talks to. It mirrors the subset of
// *websocket.Conn the bridge needs so tests can swap in a fake.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a Conn to a terminal server.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// WebSocketDialer dials terminal servers with gorilla/websocket.
type WebSocketDialer struct {
	dialer *websocket.Dialer
}

func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   8192,
			WriteBufferSize:  1024,
		},
	}
}

func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", rawURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return &webSocketConn{conn: conn}, nil
}

// webSocketConn serializes writes; gorilla/websocket allows one concurrent
// writer, and input, keepalive and resize all write from different goroutines.
type webSocketConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteJSON sends v as one text frame. Conn.WriteJSON would append a
// newline after the object, so the encoding is done here.
func (w *webSocketConn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *webSocketConn) ReadMessage() (int, []byte, error) {
	return w.conn.ReadMessage()
}

// Close sends a normal close frame (best effort) and drops the socket.
func (w *webSocketConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

// terminalURL builds ws://host:port/ws. IPv6 literals get bracketed.
func terminalURL(host, port string) string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(host, port),
		Path:   wsPath,
	}
	return u.String()
}

// isAbnormalClose reports whether a read error is anything other than the
// peer closing the socket normally.
func isAbnormalClose(err error) bool {
	if err == nil {
		return false
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return websocket.IsUnexpectedCloseError(closeErr, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	}
	return true
}
