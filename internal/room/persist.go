package room

import (
	"context"
	"time"

	"word-party/internal/game"
	"word-party/internal/protocol"
)

const storeTimeout = 3 * time.Second

// Archive and mirror failures are logged and never undo a committed update.

func (e *Engine) reserve(ctx context.Context, code string) bool {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	ok, err := e.mirror.Reserve(ctx, code)
	if err != nil {
		e.log.Warn().Err(err).Str("room", code).Msg("room code reservation failed, using local check")
		return true
	}
	return ok
}

func (e *Engine) storeMirror(ctx context.Context, snap protocol.RoomSnapshot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := e.mirror.Store(ctx, snap); err != nil {
		e.log.Warn().Err(err).Str("room", snap.Code).Msg("mirror room failed")
	}
}

func (e *Engine) saveRoom(ctx context.Context, snap protocol.RoomSnapshot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := e.archive.SaveRoom(ctx, snap); err != nil {
		e.log.Error().Err(err).Str("room", snap.Code).Msg("archive room failed")
	}
	if err := e.mirror.Store(ctx, snap); err != nil {
		e.log.Warn().Err(err).Str("room", snap.Code).Msg("mirror room failed")
	}
}

func (e *Engine) savePlayer(ctx context.Context, code string, player protocol.PlayerInfo) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := e.archive.SavePlayer(ctx, code, player); err != nil {
		e.log.Error().Err(err).Str("room", code).Str("player", player.ID).Msg("archive player failed")
	}
}

func (e *Engine) appendAction(ctx context.Context, code string, action game.Action) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := e.archive.AppendAction(ctx, code, action); err != nil {
		e.log.Error().Err(err).Str("room", code).Str("action_id", action.ID).Msg("archive action failed")
	}
	if snap, err := e.Snapshot(code); err == nil {
		if err := e.mirror.Store(ctx, snap); err != nil {
			e.log.Warn().Err(err).Str("room", code).Msg("mirror room failed")
		}
	}
}

func (e *Engine) recordEvent(ctx context.Context, code, eventType string, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := e.archive.RecordEvent(ctx, code, eventType, payload); err != nil {
		e.log.Error().Err(err).Str("room", code).Str("event", eventType).Msg("archive event failed")
	}
}

func (e *Engine) closeRoom(ctx context.Context, code, reason string, final game.State) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := e.archive.CloseRoom(ctx, code, reason, final); err != nil {
		e.log.Error().Err(err).Str("room", code).Msg("archive close failed")
	}
	if err := e.mirror.Release(ctx, code); err != nil {
		e.log.Warn().Err(err).Str("room", code).Msg("release room code failed")
	}
}

type nopArchive struct{}

func (nopArchive) SaveRoom(context.Context, protocol.RoomSnapshot) error { return nil }
func (nopArchive) SavePlayer(context.Context, string, protocol.PlayerInfo) error { return nil }
func (nopArchive) AppendAction(context.Context, string, game.Action) error { return nil }
func (nopArchive) RecordEvent(context.Context, string, string, any) error { return nil }
func (nopArchive) CloseRoom(context.Context, string, string, game.State) error { return nil }

type nopMirror struct{}

func (nopMirror) Reserve(context.Context, string) (bool, error) { return true, nil }
func (nopMirror) Store(context.Context, protocol.RoomSnapshot) error { return nil }
func (nopMirror) Release(context.Context, string) error { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Send(string, protocol.Envelope) {}
