package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"word-party/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	messages chan protocol.Envelope
	closes   chan int
	errors   chan error
}

func newCollector() *collector {
	return &collector{
		messages: make(chan protocol.Envelope, 16),
		closes:   make(chan int, 1),
		errors:   make(chan error, 16),
	}
}

func (c *collector) events() Events {
	return Events{
		OnMessage: func(env protocol.Envelope) { c.messages <- env },
		OnClose:   func(code int, _ string) { c.closes <- code },
		OnError:   func(err error) { c.errors <- err },
	}
}

func (c *collector) next(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case env := <-c.messages:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return protocol.Envelope{}
}

func (c *collector) closed(t *testing.T) int {
	t.Helper()
	select {
	case code := <-c.closes:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
	return 0
}

func TestPipeDeliversInOrderAndReportsClose(t *testing.T) {
	var server *PipeConn
	pipe := NewPipe(func(ctx context.Context, hello Hello) (*PipeConn, error) {
		client, srv := NewPipePair(8)
		server = srv
		return client, nil
	})
	c := newCollector()
	require.NoError(t, pipe.Connect(context.Background(), Hello{PlayerID: "p1"}, c.events()))

	for _, typ := range []protocol.MessageType{protocol.TypeConnected, protocol.TypePong} {
		data, err := protocol.Encode(protocol.New(typ))
		require.NoError(t, err)
		require.NoError(t, server.Write(context.Background(), data))
	}
	require.NoError(t, server.Write(context.Background(), []byte("garbage")))

	assert.Equal(t, protocol.TypeConnected, c.next(t).Type)
	assert.Equal(t, protocol.TypePong, c.next(t).Type)
	select {
	case err := <-c.errors:
		assert.ErrorIs(t, err, protocol.ErrInvalidMessage)
	case <-time.After(2 * time.Second):
		t.Fatal("expected decode error")
	}

	require.NoError(t, pipe.Send(context.Background(), protocol.New(protocol.TypePing)))
	data, err := server.Read(context.Background())
	require.NoError(t, err)
	env, err := protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypePing, env.Type)

	server.Close(CloseGoingAway, "shutdown")
	assert.Equal(t, CloseGoingAway, c.closed(t))
	assert.ErrorIs(t, pipe.Send(context.Background(), protocol.New(protocol.TypePing)), protocol.ErrConnectionLost)
}

func TestPipeReadDrainsBeforeClose(t *testing.T) {
	a, b := NewPipePair(4)
	require.NoError(t, a.Write(context.Background(), []byte("last")))
	a.Close(CloseNormal, "bye")

	data, err := b.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "last", string(data))

	_, err = b.Read(context.Background())
	assert.ErrorIs(t, err, protocol.ErrConnectionLost)
	code, reason := b.CloseInfo()
	assert.Equal(t, CloseNormal, code)
	assert.Equal(t, "bye", reason)
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		hello := protocol.New(protocol.TypeConnected)
		hello.PlayerID = r.URL.Query().Get("playerId")
		_ = conn.WriteJSON(hello)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.WriteMessage(kind, data)
		}
	})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen not permitted: %v", err)
	}
	srv := &httptest.Server{Listener: listener, Config: &http.Server{Handler: handler}}
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv := newEchoServer(t)
	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	c := newCollector()

	err := ws.Connect(context.Background(), Hello{PlayerID: "p1", Name: "Ana", Token: "secret-token"}, c.events())
	require.NoError(t, err)

	connected := c.next(t)
	assert.Equal(t, protocol.TypeConnected, connected.Type)
	assert.Equal(t, "p1", connected.PlayerID)

	ping := protocol.New(protocol.TypePing)
	ping.RequestID = "r1"
	require.NoError(t, ws.Send(context.Background(), ping))
	echoed := c.next(t)
	assert.Equal(t, "r1", echoed.RequestID)

	require.NoError(t, ws.Close(CloseNormal, "bye"))
	assert.Equal(t, CloseNormal, c.closed(t))
}

func TestWebSocketUnauthorized(t *testing.T) {
	srv := newEchoServer(t)
	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)

	err := ws.Connect(context.Background(), Hello{PlayerID: "p1"}, newCollector().events())

	assert.ErrorIs(t, err, protocol.ErrUnauthorized)
}

func TestWebSocketDialFailure(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1/ws", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := ws.Connect(ctx, Hello{PlayerID: "p1"}, newCollector().events())

	assert.ErrorIs(t, err, protocol.ErrConnectionFailed)
	assert.ErrorIs(t, ws.Send(context.Background(), protocol.New(protocol.TypePing)), protocol.ErrConnectionLost)
}

func TestRelayOpenAndClose(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()
	up := rdb.Subscribe(ctx, RelayUpChannel)
	_, err := up.Receive(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = up.Close() })

	relay := NewRelay(rdb)
	c := newCollector()
	require.NoError(t, relay.Connect(ctx, Hello{PlayerID: "relay-p1", Name: "Ana"}, c.events()))

	msg, err := up.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"kind":"open"`)

	down, err := protocol.Encode(protocol.New(protocol.TypeConnected))
	require.NoError(t, err)
	data, err := EncodeFrame(RelayFrame{Kind: RelayMessage, PlayerID: "relay-p1", Envelope: down})
	require.NoError(t, err)
	require.NoError(t, rdb.Publish(ctx, RelayDownChannel("relay-p1"), data).Err())
	assert.Equal(t, protocol.TypeConnected, c.next(t).Type)

	require.NoError(t, relay.Close(CloseNormal, "bye"))
	assert.Equal(t, CloseNormal, c.closed(t))
}
