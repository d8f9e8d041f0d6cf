package room

import (
	"sort"
	"time"

	"word-party/internal/game"
	"word-party/internal/protocol"
)

type Player struct {
	ID       string
	Name     string
	IsHost   bool
	Status   protocol.PresenceStatus
	JoinedAt time.Time
	LastSeen time.Time
}

func (p *Player) Info() protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:       p.ID,
		Name:     p.Name,
		IsHost:   p.IsHost,
		Status:   p.Status,
		JoinedAt: p.JoinedAt.UnixMilli(),
		LastSeen: p.LastSeen.UnixMilli(),
	}
}

// Room is the authoritative record for one live room. It is only touched
// inside Registry.Update.
type Room struct {
	Code         string
	HostID       string
	Settings     protocol.Settings
	Players      map[string]*Player
	CreatedAt    time.Time
	LastActivity time.Time

	projection *game.Projection
	seq        int64
	lastStamp  int64
	closed     bool
}

func newRoom(settings protocol.Settings, now time.Time) *Room {
	return &Room{
		Settings:     settings,
		Players:      make(map[string]*Player),
		CreatedAt:    now,
		LastActivity: now,
		projection:   game.NewProjection(),
	}
}

func (r *Room) State() game.State {
	return r.projection.State()
}

func (r *Room) Status() game.Status {
	return r.projection.Status()
}

// Log returns a copy of the action log.
func (r *Room) Log() []game.Action {
	return r.projection.Log()
}

// Ordered lists players by join time, earliest first.
func (r *Room) Ordered() []*Player {
	players := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
	return players
}

func (r *Room) Infos() []protocol.PlayerInfo {
	ordered := r.Ordered()
	infos := make([]protocol.PlayerInfo, 0, len(ordered))
	for _, p := range ordered {
		infos = append(infos, p.Info())
	}
	return infos
}

func (r *Room) Snapshot() protocol.RoomSnapshot {
	return protocol.RoomSnapshot{
		Code:         r.Code,
		HostID:       r.HostID,
		Settings:     r.Settings,
		Players:      r.Infos(),
		State:        r.State(),
		Actions:      r.Log(),
		CreatedAt:    r.CreatedAt.UnixMilli(),
		LastActivity: r.LastActivity.UnixMilli(),
	}
}

// Hosts counts players flagged as host.
func (r *Room) Hosts() int {
	n := 0
	for _, p := range r.Players {
		if p.IsHost {
			n++
		}
	}
	return n
}

// transferHost hands authority to the earliest remaining joiner and returns
// the new host id, or "" when the room is empty.
func (r *Room) transferHost() string {
	ordered := r.Ordered()
	for _, p := range ordered {
		p.IsHost = false
	}
	if len(ordered) == 0 {
		r.HostID = ""
		return ""
	}
	ordered[0].IsHost = true
	r.HostID = ordered[0].ID
	return r.HostID
}

// stamp appends an action with the canonical id, sequence and timestamp.
func (r *Room) stamp(t game.ActionType, playerID string, payload []byte, now time.Time) game.Action {
	r.seq++
	ts := now.UnixMilli()
	if ts <= r.lastStamp {
		ts = r.lastStamp + 1
	}
	r.lastStamp = ts
	a := game.Action{
		ID:        actionID(r.Code, r.seq),
		Seq:       r.seq,
		Type:      t,
		PlayerID:  playerID,
		Payload:   payload,
		Timestamp: ts,
	}
	r.projection.Apply(a)
	return a
}

// close marks the room for removal at the end of the current update.
func (r *Room) close() {
	r.closed = true
}
