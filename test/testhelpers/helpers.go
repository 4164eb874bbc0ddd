// Package testhelpers provides common utilities for testing the chat relay.
//
// It wraps server setup, WebSocket dialing, and frame expectations so the
// integration tests stay focused on protocol behavior instead of plumbing.
package testhelpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// FrameTimeout bounds how long a test waits for a single frame.
const FrameTimeout = 2 * time.Second

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// WebSocketURL converts an httptest server's base URL into its ws:// endpoint.
func WebSocketURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// ConnectWebSocket dials the relay's WebSocket endpoint with the given origin
// header and fails the test if the handshake does not succeed.
func ConnectWebSocket(t *testing.T, url, origin string) *websocket.Conn {
	t.Helper()

	conn, err := DialWebSocket(url, origin)
	require.NoError(t, err, "websocket handshake failed")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialWebSocket dials the endpoint and returns the raw result so tests can
// assert on handshake failures.
func DialWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendFrame writes one JSON frame to the connection.
func SendFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

// ExpectFrame reads the next frame and asserts its type discriminator.
func ExpectFrame(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(FrameTimeout)))

	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame), "waiting for %q frame", wantType)
	require.Equal(t, wantType, frame["type"], "unexpected frame: %v", frame)
	return frame
}

// ExpectNoFrame asserts that nothing arrives on the connection within the
// timeout. Close frames and timeouts both count as silence.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, but received one")
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("unexpected error while waiting for absence of frame: %v", err)
}

// Users extracts the user list from a user-list frame.
func Users(t *testing.T, frame map[string]any) []string {
	t.Helper()

	raw, ok := frame["users"].([]any)
	require.True(t, ok, "frame has no users array: %v", frame)

	users := make([]string, 0, len(raw))
	for _, u := range raw {
		name, ok := u.(string)
		require.True(t, ok, "user entry is not a string: %v", u)
		users = append(users, name)
	}
	return users
}
