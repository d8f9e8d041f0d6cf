package protocol

import (
	"fmt"
	"math/rand/v2"

	"word-party/internal/game"
)

// PresenceStatus is a player's connection state as seen by the room.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// PlayerInfo is the public view of a room member.
type PlayerInfo struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	IsHost   bool           `json:"isHost"`
	Status   PresenceStatus `json:"status"`
	JoinedAt int64          `json:"joinedAt"`
	LastSeen int64          `json:"lastSeen"`
}

// RoomSnapshot is everything a joiner needs to render the room and rebuild
// its projection.
type RoomSnapshot struct {
	Code         string        `json:"roomCode"`
	HostID       string        `json:"hostId"`
	Settings     Settings      `json:"settings"`
	Players      []PlayerInfo  `json:"players"`
	State        game.State    `json:"state"`
	Actions      []game.Action `json:"actions"`
	CreatedAt    int64         `json:"createdAt"`
	LastActivity int64         `json:"lastActivity"`
}

// Result is the final summary carried by gameEnded.
type Result struct {
	Scores  map[string]int `json:"scores"`
	Winners []string       `json:"winners"`
}

func ResultFrom(state game.State) *Result {
	scores := make(map[string]int, len(state.Scores))
	for id, score := range state.Scores {
		scores[id] = score
	}
	return &Result{Scores: scores, Winners: state.Leaders()}
}

// DefaultPlayerName is used when a player joins without a name.
func DefaultPlayerName() string {
	return fmt.Sprintf("Player %03d", rand.IntN(1000))
}
