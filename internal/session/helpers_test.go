package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"word-party/internal/config"
	"word-party/internal/protocol"
	"word-party/internal/server"
	"word-party/internal/transport"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func fastConfig() Config {
	return Config{
		ConnectTimeout: time.Second,
		Heartbeat:      time.Minute,
		RequestTimeout: 2 * time.Second,
		BackoffBase:    10 * time.Millisecond,
		BackoffMax:     50 * time.Millisecond,
		MaxAttempts:    3,
	}
}

func newServer(t *testing.T) *server.Server {
	t.Helper()
	cfg := config.Default()
	cfg.LogLevel = "disabled"
	logger := zerolog.Nop()
	srv := server.New(server.Options{Config: cfg, Logger: &logger})
	t.Cleanup(srv.Shutdown)
	return srv
}

// connectClient connects a manager to srv over an in-process pipe.
func connectClient(t *testing.T, srv *server.Server, playerID, name string) (*Manager, *transport.Pipe) {
	t.Helper()
	pipe := transport.NewPipe(srv.DialPipe)
	m := newManager(pipe, Identity{PlayerID: playerID, Name: name}, fastConfig())
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { _ = m.Disconnect(context.Background()) })
	return m, pipe
}

func newManager(tr transport.Transport, id Identity, cfg Config) *Manager {
	logger := zerolog.Nop()
	return NewManager(tr, id, Options{Config: cfg, Logger: &logger})
}

func ctxTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

func waitEvent(t *testing.T, m *Manager, kind EventKind) Event {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case ev := <-m.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
			return Event{}
		}
	}
}

func waitMessage(t *testing.T, m *Manager, typ protocol.MessageType) protocol.Envelope {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case ev := <-m.Events():
			if ev.Kind == EventMessage && ev.Envelope.Type == typ {
				return ev.Envelope
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return protocol.Envelope{}
		}
	}
}

// drainEvents returns every event delivered within d.
func drainEvents(m *Manager, d time.Duration) []Event {
	var events []Event
	timeout := time.After(d)
	for {
		select {
		case ev := <-m.Events():
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
}

// fakeTransport is a scripted Transport. Callbacks run synchronously on the
// calling goroutine, which keeps them ordered.
type fakeTransport struct {
	mu          sync.Mutex
	events      transport.Events
	connected   bool
	connects    int
	maxConnects int
	silent      bool
	respond     func(env protocol.Envelope) []protocol.Envelope
	sent        chan protocol.Envelope
	closes      chan int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:   make(chan protocol.Envelope, 64),
		closes: make(chan int, 8),
	}
}

func (f *fakeTransport) Connect(_ context.Context, hello transport.Hello, events transport.Events) error {
	f.mu.Lock()
	f.connects++
	if f.maxConnects > 0 && f.connects > f.maxConnects {
		f.mu.Unlock()
		return errors.New("connection refused")
	}
	f.events = events
	f.connected = true
	silent := f.silent
	f.mu.Unlock()
	if !silent {
		hi := protocol.New(protocol.TypeConnected)
		hi.PlayerID = hello.PlayerID
		events.OnMessage(hi)
	}
	return nil
}

func (f *fakeTransport) Send(_ context.Context, env protocol.Envelope) error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return protocol.ErrConnectionLost
	}
	respond := f.respond
	events := f.events
	f.mu.Unlock()

	select {
	case f.sent <- env:
	default:
	}
	if respond == nil {
		return nil
	}
	for _, reply := range respond(env) {
		events.OnMessage(reply)
	}
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return nil
	}
	f.connected = false
	events := f.events
	f.mu.Unlock()
	select {
	case f.closes <- code:
	default:
	}
	events.OnClose(code, reason)
	return nil
}

// deliver pushes an authority message to the client.
func (f *fakeTransport) deliver(env protocol.Envelope) {
	f.mu.Lock()
	events := f.events
	f.mu.Unlock()
	events.OnMessage(env)
}

func (f *fakeTransport) drop() {
	_ = f.Close(transport.CloseAbnormal, "dropped")
}

func (f *fakeTransport) setRespond(fn func(env protocol.Envelope) []protocol.Envelope) {
	f.mu.Lock()
	f.respond = fn
	f.mu.Unlock()
}

func (f *fakeTransport) nextSent(t *testing.T, typ protocol.MessageType) protocol.Envelope {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case env := <-f.sent:
			if env.Type == typ {
				return env
			}
		case <-timeout:
			t.Fatalf("timed out waiting for client to send %s", typ)
			return protocol.Envelope{}
		}
	}
}

func (f *fakeTransport) clearSent() {
	for {
		select {
		case <-f.sent:
		default:
			return
		}
	}
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// replyTo builds the reply envelope for a request.
func replyTo(req protocol.Envelope, typ protocol.MessageType) protocol.Envelope {
	env := protocol.New(typ)
	env.RequestID = req.RequestID
	env.RoomCode = req.RoomCode
	return env
}
