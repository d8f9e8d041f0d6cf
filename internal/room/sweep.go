package room

import (
	"context"
	"time"

	"word-party/internal/game"
	"word-party/internal/protocol"
)

// Stats summarizes the registry for the status endpoints.
type Stats struct {
	Rooms       int `json:"rooms"`
	Players     int `json:"players"`
	Online      int `json:"online"`
	ActiveGames int `json:"activeGames"`
}

func (e *Engine) Stats() Stats {
	var stats Stats
	e.rooms.Each(func(room *Room) {
		stats.Rooms++
		stats.Players += len(room.Players)
		for _, p := range room.Players {
			if p.Status == protocol.StatusOnline {
				stats.Online++
			}
		}
		if room.State().Active() {
			stats.ActiveGames++
		}
	})
	return stats
}

// Summaries lists every live room.
func (e *Engine) Summaries() []protocol.RoomSnapshot {
	summaries := []protocol.RoomSnapshot{}
	e.rooms.Each(func(room *Room) {
		snap := room.Snapshot()
		snap.Actions = nil
		summaries = append(summaries, snap)
	})
	return summaries
}

type closure struct {
	code   string
	reason string
	final  game.State
}

// Sweep force-closes rooms idle beyond their TTL. Finished rooms use the
// shorter finished TTL. Members get roomClosed before the room is removed.
// It returns the number of rooms closed.
func (e *Engine) Sweep(ctx context.Context) int {
	now := e.now()
	var candidates []string
	e.rooms.Each(func(room *Room) {
		if e.expired(room, now) != "" {
			candidates = append(candidates, room.Code)
		}
	})

	closed := make([]closure, 0, len(candidates))
	for _, code := range candidates {
		var c closure
		removed, err := e.rooms.Update(code, func(room *Room) error {
			reason := e.expired(room, now)
			if reason == "" {
				return nil
			}
			env := protocol.New(protocol.TypeRoomClosed)
			env.RoomCode = code
			env.Reason = reason
			e.broadcast(room, "", env)
			c = closure{code: code, reason: reason, final: room.State()}
			for _, p := range room.Players {
				e.cancelGrace(code, p.ID)
			}
			room.close()
			return nil
		})
		if err != nil || !removed || c.code == "" {
			continue
		}
		closed = append(closed, c)
	}

	for _, c := range closed {
		e.log.Info().Str("room", c.code).Str("reason", c.reason).Msg("room closed by sweep")
		e.closeRoom(ctx, c.code, c.reason, c.final)
	}
	return len(closed)
}

func (e *Engine) expired(room *Room, now time.Time) string {
	idle := now.Sub(room.LastActivity)
	if room.Status() == game.StatusFinished && idle > e.opts.FinishedTTL {
		return ReasonFinished
	}
	if idle > e.opts.RoomTTL {
		return ReasonIdle
	}
	return ""
}

// Run sweeps on every interval until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.Close()
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}
