package server

import (
	"sync"

	"word-party/internal/protocol"
	"word-party/internal/transport"
)

// hub routes envelopes to the live connection of each player. A player has
// at most one connection; a newer one replaces the older.
type hub struct {
	mu    sync.Mutex
	peers map[string]*peer
}

func newHub() *hub {
	return &hub{peers: make(map[string]*peer)}
}

func (h *hub) attach(p *peer) {
	h.mu.Lock()
	old := h.peers[p.id]
	h.peers[p.id] = p
	h.mu.Unlock()
	if old != nil && old != p {
		old.log.Info().Msg("connection replaced")
		old.shutdown(transport.CloseReplaced, "replaced by a new connection")
	}
}

// detach reports whether p was still the player's current connection.
func (h *hub) detach(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[p.id] != p {
		return false
	}
	delete(h.peers, p.id)
	return true
}

// Send never blocks. It is called while the room registry is locked.
func (h *hub) Send(playerID string, env protocol.Envelope) {
	h.mu.Lock()
	p := h.peers[playerID]
	h.mu.Unlock()
	if p != nil {
		p.enqueue(env)
	}
}

func (h *hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *hub) closeAll(code int, reason string) {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.shutdown(code, reason)
	}
}
