package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"word-party/internal/game"
)

// MaxMessageBytes bounds a single inbound envelope.
const MaxMessageBytes = 16 * 1024

// Envelope is the single JSON frame exchanged over every transport. Only the
// fields relevant to Type are populated.
//
// On authority-to-client messages PlayerID names the subject player (the one
// who joined, left or acted), not the recipient.
type Envelope struct {
	Type      MessageType `json:"type"`
	PlayerID  string      `json:"playerId,omitempty"`
	RoomCode  string      `json:"roomCode,omitempty"`
	Timestamp int64       `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`

	Settings   *Settings       `json:"settings,omitempty"`
	PlayerName string          `json:"playerName,omitempty"`
	Name       string          `json:"name,omitempty"`
	Action     game.ActionType `json:"action,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`

	// State is a full game.State on authority messages. On a host's
	// gameStateUpdate it only carries the host-owned fields.
	State        json.RawMessage `json:"state,omitempty"`
	InitialState *game.State     `json:"initialState,omitempty"`
	Record       *game.Action    `json:"record,omitempty"`
	Actions      []game.Action   `json:"actions,omitempty"`
	Players      []PlayerInfo    `json:"players,omitempty"`
	Player       *PlayerInfo     `json:"player,omitempty"`
	HostID       string          `json:"hostId,omitempty"`
	NewHostID    string          `json:"newHostId,omitempty"`
	Result       *Result         `json:"result,omitempty"`
	CreatedAt    int64           `json:"createdAt,omitempty"`
	Reason       string          `json:"reason,omitempty"`

	Error string `json:"error,omitempty"`
	Code  Code   `json:"code,omitempty"`
}

// New returns an envelope of type t stamped with the current time.
func New(t MessageType) Envelope {
	return Envelope{Type: t, Timestamp: time.Now().UnixMilli()}
}

// ErrorEnvelope builds the reply for a failed request.
func ErrorEnvelope(err error, requestID string) Envelope {
	env := New(TypeError)
	env.RequestID = requestID
	env.Error = err.Error()
	env.Code = CodeOf(err)
	if env.Code == "" {
		env.Code = CodeInvalidMessage
	}
	return env
}

// Err returns the typed error carried by an error envelope, or nil.
func (e Envelope) Err() error {
	if e.Type != TypeError {
		return nil
	}
	return FromWire(e.Code, e.Error)
}

// WithState encodes s into the state field.
func (e Envelope) WithState(s game.State) Envelope {
	raw, err := json.Marshal(s)
	if err == nil {
		e.State = raw
	}
	return e
}

// GameState decodes the state field as a full projection.
func (e Envelope) GameState() (game.State, bool) {
	if len(e.State) == 0 {
		return game.State{}, false
	}
	state := game.NewState()
	if err := json.Unmarshal(e.State, &state); err != nil {
		return game.State{}, false
	}
	if state.Scores == nil {
		state.Scores = make(map[string]int)
	}
	return state, true
}

// Ephemeral decodes the host-owned fields from the state field. Any other
// field present is ignored.
func (e Envelope) Ephemeral() (game.Ephemeral, error) {
	var patch game.Ephemeral
	if len(e.State) == 0 {
		return patch, nil
	}
	if err := json.Unmarshal(e.State, &patch); err != nil {
		return patch, Errorf(CodeInvalidMessage, "invalid state patch: %v", err)
	}
	return patch, nil
}

// Snapshot rebuilds the room view carried by roomJoined.
func (e Envelope) Snapshot() RoomSnapshot {
	snap := RoomSnapshot{
		Code:      e.RoomCode,
		HostID:    e.HostID,
		Players:   e.Players,
		Actions:   e.Actions,
		CreatedAt: e.CreatedAt,
	}
	if e.Settings != nil {
		snap.Settings = *e.Settings
	}
	if state, ok := e.GameState(); ok {
		snap.State = state
	} else {
		snap.State = game.NewState()
	}
	return snap
}

// JoinedEnvelope is the roomJoined reply for snap.
func JoinedEnvelope(snap RoomSnapshot) Envelope {
	env := New(TypeRoomJoined)
	env.RoomCode = snap.Code
	env.HostID = snap.HostID
	settings := snap.Settings
	env.Settings = &settings
	env.Players = snap.Players
	env.Actions = snap.Actions
	env.CreatedAt = snap.CreatedAt
	return env.WithState(snap.State)
}

func Encode(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a frame. Any failure is reported as InvalidMessage.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if len(data) > MaxMessageBytes {
		return env, Errorf(CodeInvalidMessage, "message exceeds %d bytes", MaxMessageBytes)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, Errorf(CodeInvalidMessage, "malformed envelope: %v", err)
	}
	if env.Type == "" {
		return env, Errorf(CodeInvalidMessage, "envelope has no type")
	}
	return env, nil
}

// ValidateInbound checks the fields a client request of env.Type needs and
// normalizes the room code.
func ValidateInbound(env *Envelope) error {
	if !Inbound(env.Type) {
		return Errorf(CodeInvalidMessage, "unsupported message type %q", env.Type)
	}
	env.RoomCode = NormalizeRoomCode(env.RoomCode)
	switch env.Type {
	case TypeJoinRoom:
		if !ValidRoomCode(env.RoomCode) {
			return Errorf(CodeInvalidMessage, "room code must be %d letters or digits", RoomCodeLength)
		}
	case TypeGameAction:
		if strings.TrimSpace(string(env.Action)) == "" {
			return Errorf(CodeInvalidMessage, "gameAction requires an action")
		}
		if len(env.Data) > 0 && !json.Valid(env.Data) {
			return Errorf(CodeInvalidMessage, "gameAction data is not valid JSON")
		}
	case TypeUpdatePlayer:
		if strings.TrimSpace(env.Name) == "" {
			return Errorf(CodeInvalidMessage, "updatePlayer requires a name")
		}
	}
	return nil
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s room=%s player=%s request=%s", e.Type, e.RoomCode, e.PlayerID, e.RequestID)
}
