package server

import (
	"context"

	"word-party/internal/protocol"
)

// dispatch handles one client request. Every request gets exactly one reply
// carrying its requestId; failures become error envelopes. The player is
// always the connection's identity, never env.PlayerID.
func (s *Server) dispatch(ctx context.Context, p *peer, env protocol.Envelope) {
	if err := protocol.ValidateInbound(&env); err != nil {
		p.log.Warn().Err(err).Str("type", string(env.Type)).Msg("invalid request")
		if env.RequestID != "" {
			p.enqueue(protocol.ErrorEnvelope(err, env.RequestID))
		}
		return
	}
	reply, err := s.handle(ctx, p, env)
	if err != nil {
		p.log.Debug().Err(err).Str("type", string(env.Type)).Str("request", env.RequestID).Msg("request failed")
		p.enqueue(protocol.ErrorEnvelope(err, env.RequestID))
		return
	}
	reply.RequestID = env.RequestID
	p.enqueue(reply)
}

func (s *Server) handle(ctx context.Context, p *peer, env protocol.Envelope) (protocol.Envelope, error) {
	switch env.Type {
	case protocol.TypeCreateRoom:
		return s.handleCreateRoom(ctx, p, env)
	case protocol.TypeJoinRoom:
		return s.handleJoinRoom(ctx, p, env)
	case protocol.TypePing:
		if code, ok := s.engine.RoomOf(p.id); ok {
			s.engine.Touch(code, p.id)
		}
		return protocol.New(protocol.TypePong), nil
	}

	code, err := s.currentRoom(p, env)
	if err != nil {
		return protocol.Envelope{}, err
	}
	switch env.Type {
	case protocol.TypeLeaveRoom:
		if err := s.engine.LeaveRoom(ctx, code, p.id); err != nil {
			return protocol.Envelope{}, err
		}
		reply := protocol.New(protocol.TypeRoomLeft)
		reply.RoomCode = code
		reply.PlayerID = p.id
		return reply, nil

	case protocol.TypeStartGame:
		record, state, err := s.engine.StartGame(ctx, code, p.id)
		if err != nil {
			return protocol.Envelope{}, err
		}
		initial := state.Clone()
		reply := protocol.New(protocol.TypeGameStarted)
		reply.RoomCode = code
		reply.PlayerID = p.id
		reply.Record = &record
		reply.InitialState = &initial
		return reply.WithState(state), nil

	case protocol.TypeGameAction:
		record, state, err := s.engine.PostAction(ctx, code, p.id, env.Action, env.Data)
		if err != nil {
			return protocol.Envelope{}, err
		}
		reply := protocol.New(protocol.TypeActionAccepted)
		reply.RoomCode = code
		reply.PlayerID = p.id
		reply.Action = record.Type
		reply.Record = &record
		return reply.WithState(state), nil

	case protocol.TypeEndGame:
		record, state, err := s.engine.EndGame(ctx, code, p.id)
		if err != nil {
			return protocol.Envelope{}, err
		}
		reply := protocol.New(protocol.TypeGameEnded)
		reply.RoomCode = code
		reply.PlayerID = p.id
		reply.Record = &record
		reply.Result = protocol.ResultFrom(state)
		return reply.WithState(state), nil

	case protocol.TypeGameStateUpdate:
		patch, err := env.Ephemeral()
		if err != nil {
			return protocol.Envelope{}, err
		}
		state, err := s.engine.UpdateState(ctx, code, p.id, patch)
		if err != nil {
			return protocol.Envelope{}, err
		}
		reply := protocol.New(protocol.TypeGameStateUpdate)
		reply.RoomCode = code
		reply.PlayerID = p.id
		return reply.WithState(state), nil

	case protocol.TypeUpdatePlayer:
		name, err := validateName(env.Name)
		if err != nil {
			return protocol.Envelope{}, err
		}
		info, err := s.engine.RenamePlayer(ctx, code, p.id, name)
		if err != nil {
			return protocol.Envelope{}, err
		}
		reply := protocol.New(protocol.TypePlayerUpdated)
		reply.RoomCode = code
		reply.PlayerID = p.id
		reply.Player = &info
		return reply, nil
	}
	return protocol.Envelope{}, protocol.Errorf(protocol.CodeInvalidMessage, "unsupported message type %q", env.Type)
}

func (s *Server) handleCreateRoom(ctx context.Context, p *peer, env protocol.Envelope) (protocol.Envelope, error) {
	settings := protocol.DefaultSettings()
	if env.Settings != nil {
		settings = *env.Settings
	}
	name, err := s.requestedName(p, env)
	if err != nil {
		return protocol.Envelope{}, err
	}
	snap, err := s.engine.CreateRoom(ctx, p.id, name, settings)
	if err != nil {
		return protocol.Envelope{}, err
	}
	reply := protocol.JoinedEnvelope(snap)
	reply.Type = protocol.TypeRoomCreated
	reply.PlayerID = p.id
	return reply, nil
}

func (s *Server) handleJoinRoom(ctx context.Context, p *peer, env protocol.Envelope) (protocol.Envelope, error) {
	name, err := s.requestedName(p, env)
	if err != nil {
		return protocol.Envelope{}, err
	}
	snap, rejoined, err := s.engine.JoinRoom(ctx, env.RoomCode, p.id, name)
	if err != nil {
		return protocol.Envelope{}, err
	}
	reply := protocol.JoinedEnvelope(snap)
	reply.PlayerID = p.id
	if rejoined {
		reply.Reason = "rejoined"
	}
	return reply, nil
}

// requestedName prefers the name in the request over the one given when
// connecting. An empty result lets the room pick a default.
func (s *Server) requestedName(p *peer, env protocol.Envelope) (string, error) {
	raw := env.PlayerName
	if raw == "" {
		raw = p.name
	}
	if normalizeText(raw) == "" {
		return "", nil
	}
	return validateName(raw)
}

// currentRoom resolves the room the player is in. A request naming a
// different room is refused.
func (s *Server) currentRoom(p *peer, env protocol.Envelope) (string, error) {
	code, ok := s.engine.RoomOf(p.id)
	if !ok {
		return "", protocol.ErrNotInRoom
	}
	if env.RoomCode != "" && env.RoomCode != code {
		return "", protocol.Errorf(protocol.CodeNotInRoom, "not a member of room %s", env.RoomCode)
	}
	return code, nil
}
