package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"word-party/internal/config"
	"word-party/internal/protocol"
	"word-party/internal/transport"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.LogLevel = "disabled"
	return cfg
}

func newApp(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	logger := zerolog.Nop()
	srv := New(Options{Config: cfg, Logger: &logger})
	t.Cleanup(srv.Shutdown)
	return srv
}

func dialWS(t *testing.T, ts *httptest.Server, playerID, name string, header http.Header) *websocket.Conn {
	t.Helper()
	query := url.Values{}
	if playerID != "" {
		query.Set("playerId", playerID)
	}
	if name != "" {
		query.Set("name", name)
	}
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query.Encode()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		if resp != nil {
			t.Fatalf("websocket dial failed with status %d: %v", resp.StatusCode, err)
		}
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	hello := readWS(t, conn, waitTimeout)
	require.Equal(t, protocol.TypeConnected, hello.Type)
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn, timeout time.Duration) protocol.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	env, err := protocol.Decode(payload)
	require.NoError(t, err)
	return env
}

func waitForWS(t *testing.T, conn *websocket.Conn, want protocol.MessageType) protocol.Envelope {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	var seen []protocol.MessageType
	for time.Now().Before(deadline) {
		env := readWS(t, conn, time.Until(deadline))
		if env.Type == want {
			return env
		}
		seen = append(seen, env.Type)
	}
	t.Fatalf("timed out waiting for %s; seen=%v", want, seen)
	return protocol.Envelope{}
}

func expectNoWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no websocket message within %s", timeout)
	} else {
		netErr, ok := err.(net.Error)
		if !ok || !netErr.Timeout() {
			t.Fatalf("expected websocket timeout, got %v", err)
		}
	}
}

func writeWS(t *testing.T, conn *websocket.Conn, env protocol.Envelope) {
	t.Helper()
	data, err := protocol.Encode(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// requestWS sends env with a fresh requestId and returns the reply that
// echoes it, skipping broadcasts in between.
func requestWS(t *testing.T, conn *websocket.Conn, env protocol.Envelope) protocol.Envelope {
	t.Helper()
	env.RequestID = uuid.NewString()
	writeWS(t, conn, env)
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		reply := readWS(t, conn, time.Until(deadline))
		if reply.RequestID == env.RequestID {
			return reply
		}
	}
	t.Fatalf("no reply to %s", env.Type)
	return protocol.Envelope{}
}

type closeInfo struct {
	code   int
	reason string
}

// pipeClient is a bare protocol client over an in-process pipe.
type pipeClient struct {
	t      *testing.T
	pipe   *transport.Pipe
	msgs   chan protocol.Envelope
	closed chan closeInfo
}

func dialPipe(t *testing.T, srv *Server, playerID, name string) *pipeClient {
	t.Helper()
	c := &pipeClient{
		t:      t,
		pipe:   transport.NewPipe(srv.DialPipe),
		msgs:   make(chan protocol.Envelope, 256),
		closed: make(chan closeInfo, 1),
	}
	err := c.pipe.Connect(context.Background(), transport.Hello{PlayerID: playerID, Name: name}, transport.Events{
		OnMessage: func(env protocol.Envelope) { c.msgs <- env },
		OnClose:   func(code int, reason string) { c.closed <- closeInfo{code, reason} },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.pipe.Close(transport.CloseNormal, "") })
	hello := c.next()
	require.Equal(t, protocol.TypeConnected, hello.Type)
	return c
}

func (c *pipeClient) send(env protocol.Envelope) {
	c.t.Helper()
	require.NoError(c.t, c.pipe.Send(context.Background(), env))
}

func (c *pipeClient) next() protocol.Envelope {
	c.t.Helper()
	select {
	case env := <-c.msgs:
		return env
	case <-time.After(waitTimeout):
		c.t.Fatalf("timed out waiting for a message")
		return protocol.Envelope{}
	}
}

func (c *pipeClient) waitFor(want protocol.MessageType) protocol.Envelope {
	c.t.Helper()
	for {
		env := c.next()
		if env.Type == want {
			return env
		}
	}
}

func (c *pipeClient) request(env protocol.Envelope) protocol.Envelope {
	c.t.Helper()
	env.RequestID = uuid.NewString()
	c.send(env)
	for {
		reply := c.next()
		if reply.RequestID == env.RequestID {
			return reply
		}
	}
}

func (c *pipeClient) expectQuiet(d time.Duration) {
	c.t.Helper()
	select {
	case env := <-c.msgs:
		c.t.Fatalf("unexpected message %s", env.Type)
	case <-time.After(d):
	}
}

func (c *pipeClient) waitClosed() closeInfo {
	c.t.Helper()
	select {
	case info := <-c.closed:
		return info
	case <-time.After(waitTimeout):
		c.t.Fatalf("connection did not close")
		return closeInfo{}
	}
}

func createRoomVia(t *testing.T, c *pipeClient, settings protocol.Settings) string {
	t.Helper()
	env := protocol.New(protocol.TypeCreateRoom)
	env.Settings = &settings
	reply := c.request(env)
	require.Equal(t, protocol.TypeRoomCreated, reply.Type, "error: %s", reply.Error)
	return reply.RoomCode
}

func joinRoomVia(t *testing.T, c *pipeClient, code string) protocol.Envelope {
	t.Helper()
	env := protocol.New(protocol.TypeJoinRoom)
	env.RoomCode = code
	reply := c.request(env)
	require.Equal(t, protocol.TypeRoomJoined, reply.Type, "error: %s", reply.Error)
	return reply
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
