package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"word-party/internal/protocol"

	"github.com/stretchr/testify/require"
)

type sent struct {
	to  string
	env protocol.Envelope
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) Send(playerID string, env protocol.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{to: playerID, env: env})
}

func (r *recorder) to(playerID string) []protocol.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []protocol.Envelope{}
	for _, m := range r.msgs {
		if m.to == playerID {
			out = append(out, m.env)
		}
	}
	return out
}

func (r *recorder) ofType(t protocol.MessageType) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []sent{}
	for _, m := range r.msgs {
		if m.env.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e := NewEngine(rec, opts)
	t.Cleanup(e.Close)
	return e, rec
}

func mixedSettings() protocol.Settings {
	return protocol.Settings{Category: "Mixed", RoundDuration: 60, MaxPlayers: 2}
}

// roomWith creates a room hosted by the first id and joins the rest.
func roomWith(t *testing.T, e *Engine, settings protocol.Settings, ids ...string) string {
	t.Helper()
	ctx := context.Background()
	snap, err := e.CreateRoom(ctx, ids[0], ids[0], settings)
	require.NoError(t, err)
	for _, id := range ids[1:] {
		_, _, err := e.JoinRoom(ctx, snap.Code, id, id)
		require.NoError(t, err)
	}
	return snap.Code
}

func hostsIn(t *testing.T, e *Engine, code string) []string {
	t.Helper()
	var hosts []string
	require.NoError(t, e.rooms.View(code, func(room *Room) {
		for _, p := range room.Ordered() {
			if p.IsHost {
				hosts = append(hosts, p.ID)
			}
		}
	}))
	return hosts
}
