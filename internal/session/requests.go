package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"word-party/internal/game"
	"word-party/internal/protocol"

	"github.com/google/uuid"
)

func (m *Manager) CreateRoom(ctx context.Context, settings protocol.Settings) (protocol.RoomSnapshot, error) {
	env := protocol.New(protocol.TypeCreateRoom)
	env.Settings = &settings
	env.PlayerName = m.Identity().Name
	reply, err := m.request(ctx, env)
	if err != nil {
		return protocol.RoomSnapshot{}, err
	}
	return reply.Snapshot(), nil
}

// JoinRoom joins code, or resumes it when this player is still a member.
func (m *Manager) JoinRoom(ctx context.Context, code string) (protocol.RoomSnapshot, error) {
	env := protocol.New(protocol.TypeJoinRoom)
	env.RoomCode = protocol.NormalizeRoomCode(code)
	env.PlayerName = m.Identity().Name
	reply, err := m.request(ctx, env)
	if err != nil {
		return protocol.RoomSnapshot{}, err
	}
	return reply.Snapshot(), nil
}

// LeaveRoom leaves the current room. Later messages for it are ignored.
func (m *Manager) LeaveRoom(ctx context.Context) error {
	code, err := m.roomCode()
	if err != nil {
		return err
	}
	env := protocol.New(protocol.TypeLeaveRoom)
	env.RoomCode = code
	_, err = m.request(ctx, env)
	if errors.Is(err, protocol.ErrNotInRoom) {
		m.dropRoom(code)
	}
	return err
}

func (m *Manager) StartGame(ctx context.Context) (game.State, error) {
	code, err := m.roomCode()
	if err != nil {
		return game.State{}, err
	}
	env := protocol.New(protocol.TypeStartGame)
	env.RoomCode = code
	reply, err := m.request(ctx, env)
	if err != nil {
		return game.State{}, err
	}
	state, _ := reply.GameState()
	return state, nil
}

// PostAction shows the action locally right away and sends it. The local
// copy is discarded on the next authoritative message or on failure.
func (m *Manager) PostAction(ctx context.Context, t game.ActionType, payload any) (game.Action, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return game.Action{}, protocol.Errorf(protocol.CodeInvalidMessage, "encode payload: %v", err)
		}
		data = raw
	}

	m.mu.Lock()
	room := m.room
	if room == nil {
		m.mu.Unlock()
		return game.Action{}, protocol.ErrNotInRoom
	}
	room.overlay.Push(game.Action{
		ID:        "local-" + uuid.NewString(),
		Type:      t,
		PlayerID:  m.id.PlayerID,
		Payload:   data,
		Timestamp: time.Now().UnixMilli(),
	})
	code := room.code
	m.mu.Unlock()

	env := protocol.New(protocol.TypeGameAction)
	env.RoomCode = code
	env.Action = t
	env.Data = data
	reply, err := m.request(ctx, env)
	// The accepted record may already be in the projection, so the
	// speculation is dropped here rather than by applying the reply.
	m.mu.Lock()
	if m.room == room {
		room.overlay.Reset(room.projection.State())
	}
	m.mu.Unlock()
	if err != nil {
		return game.Action{}, err
	}
	if reply.Record == nil {
		return game.Action{}, protocol.Errorf(protocol.CodeInvalidMessage, "actionAccepted without record")
	}
	return *reply.Record, nil
}

func (m *Manager) Guess(ctx context.Context, word string, points int) (game.Action, error) {
	return m.PostAction(ctx, game.ActionWordGuessed, game.WordPayload{Word: word, Points: points})
}

func (m *Manager) Skip(ctx context.Context, word string) (game.Action, error) {
	return m.PostAction(ctx, game.ActionWordSkipped, game.WordPayload{Word: word})
}

func (m *Manager) Pause(ctx context.Context) (game.Action, error) {
	return m.PostAction(ctx, game.ActionGamePaused, nil)
}

func (m *Manager) Resume(ctx context.Context) (game.Action, error) {
	return m.PostAction(ctx, game.ActionGameResumed, nil)
}

func (m *Manager) Ready(ctx context.Context) (game.Action, error) {
	return m.PostAction(ctx, game.ActionPlayerReady, nil)
}

func (m *Manager) EndGame(ctx context.Context) (*protocol.Result, error) {
	code, err := m.roomCode()
	if err != nil {
		return nil, err
	}
	env := protocol.New(protocol.TypeEndGame)
	env.RoomCode = code
	reply, err := m.request(ctx, env)
	if err != nil {
		return nil, err
	}
	return reply.Result, nil
}

// PushState sends host-owned fields such as the current word or the timer.
func (m *Manager) PushState(ctx context.Context, patch game.Ephemeral) (game.State, error) {
	code, err := m.roomCode()
	if err != nil {
		return game.State{}, err
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return game.State{}, err
	}
	env := protocol.New(protocol.TypeGameStateUpdate)
	env.RoomCode = code
	env.State = raw
	reply, err := m.request(ctx, env)
	if err != nil {
		return game.State{}, err
	}
	state, _ := reply.GameState()
	return state, nil
}

// SetName stores the display name locally and, when in a room, announces it.
func (m *Manager) SetName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return protocol.Errorf(protocol.CodeInvalidMessage, "name is required")
	}
	if err := m.kv.Set(keyPlayerName, name); err != nil {
		m.log.Warn().Err(err).Msg("could not store player name")
	}
	m.mu.Lock()
	m.id.Name = name
	code := ""
	if m.room != nil && m.state == StateConnected {
		code = m.room.code
	}
	m.mu.Unlock()
	if code == "" {
		return nil
	}
	env := protocol.New(protocol.TypeUpdatePlayer)
	env.RoomCode = code
	env.Name = name
	_, err := m.request(ctx, env)
	return err
}

// Ping asks the server for a pong and refreshes the heartbeat.
func (m *Manager) Ping(ctx context.Context) error {
	_, err := m.request(ctx, protocol.New(protocol.TypePing))
	return err
}

func (m *Manager) roomCode() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room == nil {
		return "", protocol.ErrNotInRoom
	}
	return m.room.code, nil
}

func (m *Manager) dropRoom(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room != nil && m.room.code == code {
		m.room = nil
	}
}
