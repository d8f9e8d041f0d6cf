package game

import "encoding/json"

// ActionType names one kind of entry in a room's action log.
type ActionType string

const (
	ActionWordGuessed ActionType = "wordGuessed"
	ActionWordSkipped ActionType = "wordSkipped"
	ActionGameStarted ActionType = "gameStarted"
	ActionGameEnded   ActionType = "gameEnded"
	ActionGamePaused  ActionType = "gamePaused"
	ActionGameResumed ActionType = "gameResumed"
	ActionPlayerReady ActionType = "playerReady"
)

// DefaultPoints is credited for a guess whose payload declares no points.
const DefaultPoints = 1

// Action is an immutable entry in the action log. The authoritative side
// assigns ID, Seq and Timestamp.
type Action struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Type      ActionType      `json:"type"`
	PlayerID  string          `json:"playerId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WordPayload is carried by wordGuessed and wordSkipped. Bonus points from
// streaks are folded into Points by the sender so every peer credits the same
// amount.
type WordPayload struct {
	Word   string `json:"word"`
	Points int    `json:"points,omitempty"`
}

// StartPayload lists the players whose scores are reset by gameStarted.
type StartPayload struct {
	Players []string `json:"players"`
}

// Known reports whether t is part of the closed action vocabulary.
func Known(t ActionType) bool {
	switch t {
	case ActionWordGuessed, ActionWordSkipped, ActionGameStarted, ActionGameEnded,
		ActionGamePaused, ActionGameResumed, ActionPlayerReady:
		return true
	}
	return false
}

// Lifecycle reports whether t may only be produced by the room engine itself.
func Lifecycle(t ActionType) bool {
	return t == ActionGameStarted || t == ActionGameEnded
}

func (a Action) wordPayload() (WordPayload, error) {
	var p WordPayload
	if len(a.Payload) == 0 {
		return p, nil
	}
	err := json.Unmarshal(a.Payload, &p)
	return p, err
}

func (a Action) startPayload() (StartPayload, error) {
	var p StartPayload
	if len(a.Payload) == 0 {
		return p, nil
	}
	err := json.Unmarshal(a.Payload, &p)
	return p, err
}
