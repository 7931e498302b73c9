package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestTerminalURL(t *testing.T) {
	tests := []struct {
		host, port string
		want       string
	}{
		{"127.0.0.1", "8080", "ws://127.0.0.1:8080/ws"},
		{"term.example.com", "443", "ws://term.example.com:443/ws"},
		{"::1", "7681", "ws://[::1]:7681/ws"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, terminalURL(tt.host, tt.port))
	}
}

func TestIsAbnormalClose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"normal", &websocket.CloseError{Code: websocket.CloseNormalClosure}, false},
		{"going_away", &websocket.CloseError{Code: websocket.CloseGoingAway}, false},
		{"abnormal", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, true},
		{"internal_error", &websocket.CloseError{Code: websocket.CloseInternalServerErr}, true},
		{"network", io.ErrUnexpectedEOF, true},
		{"wrapped_normal", wrap(&websocket.CloseError{Code: websocket.CloseNormalClosure}), false},
		{"wrapped_abnormal", wrap(&websocket.CloseError{Code: websocket.CloseAbnormalClosure}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAbnormalClose(tt.err))
		})
	}
}

func wrap(err error) error {
	return errors.Join(errors.New("read"), err)
}

func TestWireMessageShapes(t *testing.T) {
	tests := []struct {
		name string
		msg  interface{}
		want string
	}{
		{"resize", newResizeMessage(120, 40), `{"action":"resize","cols":120,"rows":40}`},
		{"read", newReadMessage("ls\r"), `{"action":"read","data":"ls\r"}`},
		{"keepalive_keeps_empty_data", newReadMessage(""), `{"action":"read","data":""}`},
		{"control_bytes", newReadMessage("\x03"), `{"action":"read","data":"\u0003"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

// hostPort splits an httptest URL into the host and port the bridge takes.
func hostPort(t *testing.T, rawURL string) (string, string) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	return host, port
}

func TestWebSocketDialerRoundTrip(t *testing.T) {
	received := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wsPath {
			http.NotFound(w, r)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		conn.WriteMessage(websocket.TextMessage, []byte("hello\r\n"))
		conn.ReadMessage()
	}))
	defer srv.Close()

	host, port := hostPort(t, srv.URL)
	conn, err := NewWebSocketDialer().Dial(context.Background(), terminalURL(host, port))
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(newResizeMessage(80, 24)))
	select {
	case got := <-received:
		assert.Equal(t, `{"action":"resize","cols":80,"rows":24}`, got)
	case <-time.After(waitFor):
		t.Fatal("server never got the resize")
	}

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello\r\n", string(data))

	assert.NoError(t, conn.Close())
}

func TestWebSocketDialerRejectsNonWebSocket(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	host, port := hostPort(t, srv.URL)
	_, err := NewWebSocketDialer().Dial(context.Background(), terminalURL(host, port))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestWebSocketDialerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWebSocketDialer().Dial(ctx, "ws://127.0.0.1:1/ws")
	assert.Error(t, err)
}
