package session

import (
	"sort"

	"word-party/internal/game"
	"word-party/internal/protocol"
)

type roomState struct {
	code       string
	hostID     string
	settings   protocol.Settings
	players    map[string]protocol.PlayerInfo
	projection *game.Projection
	overlay    *game.Overlay
	lastSeq    int64
}

// newRoomState rebuilds the projection by replaying the snapshot's log.
// Only the host-owned fields are taken from the snapshot state.
func newRoomState(snap protocol.RoomSnapshot) *roomState {
	r := &roomState{
		code:       snap.Code,
		hostID:     snap.HostID,
		settings:   snap.Settings,
		projection: game.Replay(snap.Actions),
	}
	for _, a := range snap.Actions {
		if a.Seq > r.lastSeq {
			r.lastSeq = a.Seq
		}
	}
	r.setPlayers(snap.Players)
	r.projection.SetEphemeral(ephemeralOf(snap.State))
	r.overlay = game.NewOverlay(r.projection.State())
	return r
}

func ephemeralOf(s game.State) game.Ephemeral {
	round, word, left := s.CurrentRound, s.CurrentWord, s.TimeLeft
	return game.Ephemeral{CurrentRound: &round, CurrentWord: &word, TimeLeft: &left}
}

func (r *roomState) setPlayers(players []protocol.PlayerInfo) {
	r.players = make(map[string]protocol.PlayerInfo, len(players))
	for _, p := range players {
		r.players[p.ID] = p
	}
}

func (r *roomState) markHost() {
	for id, p := range r.players {
		p.IsHost = id == r.hostID
		r.players[id] = p
	}
}

// patch applies the host-owned fields carried in env's state.
func (r *roomState) patch(env protocol.Envelope) {
	patch, err := env.Ephemeral()
	if err != nil || patch.Empty() {
		return
	}
	r.projection.SetEphemeral(patch)
}

func (r *roomState) view() RoomView {
	players := make([]protocol.PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt != players[j].JoinedAt {
			return players[i].JoinedAt < players[j].JoinedAt
		}
		return players[i].ID < players[j].ID
	})
	return RoomView{
		Code:     r.code,
		HostID:   r.hostID,
		Settings: r.settings,
		Players:  players,
		State:    r.projection.State(),
	}
}
