// Package transport moves protocol envelopes between a client and the room
// server. Every adapter implements Transport, so the session layer does not
// care whether frames travel over a WebSocket, a Redis relay or an in-memory
// pipe.
package transport

import (
	"context"
	"time"

	"word-party/internal/protocol"
)

// Close codes shared by every adapter. They follow the WebSocket numbering.
const (
	CloseNormal           = 1000
	CloseGoingAway        = 1001
	CloseAbnormal         = 1006
	ClosePolicyViolation  = 1008
	CloseHeartbeatTimeout = 4000
	CloseReplaced         = 4001
)

const writeWait = 10 * time.Second

// Hello identifies the client when a connection is opened.
type Hello struct {
	PlayerID string
	Name     string
	Token    string
}

// Events receives what a connection observes. Callbacks for one connection
// run on a single goroutine in arrival order. OnClose fires exactly once per
// successful Connect.
type Events struct {
	OnMessage func(env protocol.Envelope)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

func (e Events) message(env protocol.Envelope) {
	if e.OnMessage != nil {
		e.OnMessage(env)
	}
}

func (e Events) close(code int, reason string) {
	if e.OnClose != nil {
		e.OnClose(code, reason)
	}
}

func (e Events) error(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}

// Transport is a reconnectable, ordered channel to the room server.
// Connect may be called again after the previous connection closed.
type Transport interface {
	Connect(ctx context.Context, hello Hello, events Events) error
	Send(ctx context.Context, env protocol.Envelope) error
	Close(code int, reason string) error
}

// decodeFrame turns raw bytes into an envelope, reporting bad frames through
// events instead of failing the connection.
func decodeFrame(data []byte, events Events) {
	env, err := protocol.Decode(data)
	if err != nil {
		events.error(err)
		return
	}
	events.message(env)
}
