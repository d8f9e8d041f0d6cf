package room

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"word-party/internal/game"
	"word-party/internal/protocol"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Broadcaster delivers an envelope to one player. Send is called while the
// registry lock is held and must not block.
type Broadcaster interface {
	Send(playerID string, env protocol.Envelope)
}

// Archive keeps a durable record of rooms and their action logs.
type Archive interface {
	SaveRoom(ctx context.Context, snap protocol.RoomSnapshot) error
	SavePlayer(ctx context.Context, code string, player protocol.PlayerInfo) error
	AppendAction(ctx context.Context, code string, action game.Action) error
	RecordEvent(ctx context.Context, code, eventType string, payload any) error
	CloseRoom(ctx context.Context, code, reason string, final game.State) error
}

// Mirror shares room codes and snapshots with other server processes.
type Mirror interface {
	Reserve(ctx context.Context, code string) (bool, error)
	Store(ctx context.Context, snap protocol.RoomSnapshot) error
	Release(ctx context.Context, code string) error
}

// WordPicker chooses the opening word for a new game.
type WordPicker func(settings protocol.Settings) string

var errReconnected = errors.New("player reconnected")

const (
	ReasonIdle     = "idle"
	ReasonFinished = "finished"
	ReasonEmpty    = "empty"
	ReasonGrace    = "grace_expired"
)

type Options struct {
	Grace         time.Duration
	RoomTTL       time.Duration
	FinishedTTL   time.Duration
	SweepInterval time.Duration
	Archive       Archive
	Mirror        Mirror
	Words         WordPicker
	Logger        *zerolog.Logger
	Now           func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Grace:         20 * time.Second,
		RoomTTL:       time.Hour,
		FinishedTTL:   5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Engine runs the room state machine on top of a Registry. The requester of
// an operation gets the result as a return value; every other member gets a
// broadcast.
type Engine struct {
	rooms   *Registry
	out     Broadcaster
	opts    Options
	log     zerolog.Logger
	now     func() time.Time
	archive Archive
	mirror  Mirror

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

func NewEngine(out Broadcaster, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Grace <= 0 {
		opts.Grace = defaults.Grace
	}
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = defaults.RoomTTL
	}
	if opts.FinishedTTL <= 0 {
		opts.FinishedTTL = defaults.FinishedTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaults.SweepInterval
	}
	e := &Engine{
		rooms:   NewRegistry(),
		out:     out,
		opts:    opts,
		log:     log.Logger,
		now:     time.Now,
		archive: nopArchive{},
		mirror:  nopMirror{},
		timers:  make(map[string]*time.Timer),
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	}
	if opts.Now != nil {
		e.now = opts.Now
	}
	if opts.Archive != nil {
		e.archive = opts.Archive
	}
	if opts.Mirror != nil {
		e.mirror = opts.Mirror
	}
	if e.out == nil {
		e.out = nopBroadcaster{}
	}
	return e
}

func (e *Engine) Registry() *Registry {
	return e.rooms
}

// CreateRoom registers a new room hosted by playerID. A player already in
// another room leaves it first.
func (e *Engine) CreateRoom(ctx context.Context, playerID, name string, settings protocol.Settings) (protocol.RoomSnapshot, error) {
	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		return protocol.RoomSnapshot{}, err
	}
	e.leaveCurrent(ctx, playerID, "")

	now := e.now()
	room := newRoom(settings, now)
	room.HostID = playerID
	room.Players[playerID] = &Player{
		ID:       playerID,
		Name:     displayName(name),
		IsHost:   true,
		Status:   protocol.StatusOnline,
		JoinedAt: now,
		LastSeen: now,
	}
	code, err := e.rooms.Create(room, func(code string) bool {
		return e.reserve(ctx, code)
	})
	if err != nil {
		return protocol.RoomSnapshot{}, err
	}
	var snap protocol.RoomSnapshot
	_ = e.rooms.View(code, func(room *Room) {
		snap = room.Snapshot()
	})
	e.log.Info().Str("room", code).Str("player", playerID).Str("category", settings.Category).Int("max_players", settings.MaxPlayers).Msg("room created")
	e.saveRoom(ctx, snap)
	e.recordEvent(ctx, code, "room_created", map[string]any{"host": playerID, "settings": settings})
	return snap, nil
}

// JoinRoom adds playerID to the room, or restores an existing membership.
// rejoined reports the latter; no playerJoined is broadcast in that case.
func (e *Engine) JoinRoom(ctx context.Context, code, playerID, name string) (snap protocol.RoomSnapshot, rejoined bool, err error) {
	code = protocol.NormalizeRoomCode(code)
	e.leaveCurrent(ctx, playerID, code)

	_, err = e.rooms.Update(code, func(room *Room) error {
		now := e.now()
		if player, ok := room.Players[playerID]; ok {
			rejoined = true
			e.cancelGrace(code, playerID)
			wasOffline := player.Status == protocol.StatusOffline
			player.Status = protocol.StatusOnline
			player.LastSeen = now
			room.LastActivity = now
			if wasOffline {
				e.broadcastPlayerUpdated(room, player)
			}
			snap = room.Snapshot()
			return nil
		}
		if room.State().Active() {
			return protocol.ErrGameInProgress
		}
		if len(room.Players) >= room.Settings.MaxPlayers {
			return protocol.ErrRoomFull
		}
		player := &Player{
			ID:       playerID,
			Name:     displayName(name),
			Status:   protocol.StatusOnline,
			JoinedAt: now,
			LastSeen: now,
		}
		room.Players[playerID] = player
		room.LastActivity = now
		env := protocol.New(protocol.TypePlayerJoined)
		env.RoomCode = code
		env.PlayerID = playerID
		info := player.Info()
		env.Player = &info
		env.Players = room.Infos()
		e.broadcast(room, playerID, env)
		snap = room.Snapshot()
		return nil
	})
	if err != nil {
		return protocol.RoomSnapshot{}, false, err
	}
	if rejoined {
		e.log.Info().Str("room", code).Str("player", playerID).Msg("player rejoined")
	} else {
		e.log.Info().Str("room", code).Str("player", playerID).Int("players", len(snap.Players)).Msg("player joined")
		e.recordEvent(ctx, code, "player_joined", map[string]any{"player": playerID})
		for _, info := range snap.Players {
			if info.ID == playerID {
				e.savePlayer(ctx, code, info)
			}
		}
	}
	e.storeMirror(ctx, snap)
	return snap, rejoined, nil
}

// LeaveRoom removes playerID. The host role moves to the earliest remaining
// joiner within the same update; an emptied room is deleted.
func (e *Engine) LeaveRoom(ctx context.Context, code, playerID string) error {
	return e.leave(ctx, protocol.NormalizeRoomCode(code), playerID, "left")
}

func (e *Engine) leave(ctx context.Context, code, playerID, reason string) error {
	var (
		newHost string
		final   game.State
		snap    protocol.RoomSnapshot
	)
	e.cancelGrace(code, playerID)
	removed, err := e.rooms.Update(code, func(room *Room) error {
		player, ok := room.Players[playerID]
		if !ok {
			return protocol.ErrNotInRoom
		}
		if reason == ReasonGrace && player.Status == protocol.StatusOnline {
			return errReconnected
		}
		delete(room.Players, playerID)
		room.LastActivity = e.now()
		final = room.State()
		if len(room.Players) == 0 {
			return nil
		}
		env := protocol.New(protocol.TypePlayerLeft)
		env.RoomCode = code
		env.PlayerID = playerID
		env.Reason = reason
		env.Players = room.Infos()
		if player.IsHost {
			newHost = room.transferHost()
			env.Players = room.Infos()
			e.broadcast(room, "", env)
			changed := protocol.New(protocol.TypeHostChanged)
			changed.RoomCode = code
			changed.NewHostID = newHost
			changed.Players = room.Infos()
			e.broadcast(room, "", changed)
		} else {
			e.broadcast(room, "", env)
		}
		snap = room.Snapshot()
		return nil
	})
	if err != nil {
		return err
	}
	e.log.Info().Str("room", code).Str("player", playerID).Str("reason", reason).Msg("player left")
	e.recordEvent(ctx, code, "player_left", map[string]any{"player": playerID, "reason": reason})
	if newHost != "" {
		e.log.Info().Str("room", code).Str("host", newHost).Msg("host transferred")
		e.recordEvent(ctx, code, "host_changed", map[string]any{"host": newHost})
	}
	if removed {
		e.log.Info().Str("room", code).Msg("room deleted, no players left")
		e.closeRoom(ctx, code, ReasonEmpty, final)
		return nil
	}
	e.storeMirror(ctx, snap)
	return nil
}

// Disconnect marks the player offline and starts the grace timer. When the
// timer fires before a rejoin, the player is removed as if they had left.
func (e *Engine) Disconnect(code, playerID string) {
	code = protocol.NormalizeRoomCode(code)
	_, err := e.rooms.Update(code, func(room *Room) error {
		player, ok := room.Players[playerID]
		if !ok {
			return protocol.ErrNotInRoom
		}
		player.Status = protocol.StatusOffline
		player.LastSeen = e.now()
		e.broadcastPlayerUpdated(room, player)
		return nil
	})
	if err != nil {
		return
	}
	e.log.Info().Str("room", code).Str("player", playerID).Dur("grace", e.opts.Grace).Msg("player disconnected")
	e.startGrace(code, playerID)
}

func (e *Engine) expireGrace(code, playerID string) {
	if err := e.leave(context.Background(), code, playerID, ReasonGrace); err != nil {
		e.log.Debug().Err(err).Str("room", code).Str("player", playerID).Msg("grace expiry skipped")
	}
}

// StartGame moves a waiting room to playing. Only the host may start, and
// at least two players are required.
func (e *Engine) StartGame(ctx context.Context, code, playerID string) (game.Action, game.State, error) {
	code = protocol.NormalizeRoomCode(code)
	var (
		record game.Action
		state  game.State
	)
	_, err := e.rooms.Update(code, func(room *Room) error {
		if _, ok := room.Players[playerID]; !ok {
			return protocol.ErrNotInRoom
		}
		if room.HostID != playerID {
			return protocol.ErrNotHost
		}
		switch room.Status() {
		case game.StatusPlaying, game.StatusPaused:
			return protocol.ErrGameInProgress
		case game.StatusFinished:
			return protocol.ErrGameFinished
		}
		if len(room.Players) < 2 {
			return protocol.ErrInsufficientPlayers
		}
		ordered := room.Ordered()
		ids := make([]string, 0, len(ordered))
		for _, p := range ordered {
			ids = append(ids, p.ID)
		}
		payload, err := json.Marshal(game.StartPayload{Players: ids})
		if err != nil {
			return err
		}
		now := e.now()
		record = room.stamp(game.ActionGameStarted, playerID, payload, now)
		left := room.Settings.RoundDuration
		patch := game.Ephemeral{TimeLeft: &left}
		if e.opts.Words != nil {
			word := e.opts.Words(room.Settings)
			patch.CurrentWord = &word
		}
		room.projection.SetEphemeral(patch)
		room.LastActivity = now
		state = room.State()

		env := protocol.New(protocol.TypeGameStarted)
		env.RoomCode = code
		env.PlayerID = playerID
		env.InitialState = &state
		env.Record = &record
		e.broadcast(room, playerID, env.WithState(state))
		return nil
	})
	if err != nil {
		return game.Action{}, game.State{}, err
	}
	e.log.Info().Str("room", code).Str("host", playerID).Int("players", len(state.Scores)).Msg("game started")
	e.appendAction(ctx, code, record)
	return record, state, nil
}

// PostAction stamps, applies and rebroadcasts a gameplay action. The sender
// is excluded from the broadcast.
func (e *Engine) PostAction(ctx context.Context, code, playerID string, actionType game.ActionType, data json.RawMessage) (game.Action, game.State, error) {
	code = protocol.NormalizeRoomCode(code)
	if game.Lifecycle(actionType) {
		return game.Action{}, game.State{}, protocol.Errorf(protocol.CodeInvalidMessage, "%s is sent with its own message type", actionType)
	}
	var (
		record game.Action
		state  game.State
	)
	_, err := e.rooms.Update(code, func(room *Room) error {
		if _, ok := room.Players[playerID]; !ok {
			return protocol.ErrNotInRoom
		}
		if (actionType == game.ActionGamePaused || actionType == game.ActionGameResumed) && room.HostID != playerID {
			return protocol.ErrNotHost
		}
		if !accepts(room.Status(), actionType) {
			return protocol.ErrRoomNotPlaying
		}
		if !game.Known(actionType) {
			e.log.Warn().Str("room", code).Str("player", playerID).Str("action", string(actionType)).Msg("unknown action type appended")
		}
		now := e.now()
		record = room.stamp(actionType, playerID, data, now)
		room.LastActivity = now
		state = room.State()

		env := protocol.New(protocol.TypeGameAction)
		env.RoomCode = code
		env.PlayerID = playerID
		env.Action = actionType
		env.Data = data
		env.Record = &record
		e.broadcast(room, playerID, env.WithState(state))
		return nil
	})
	if err != nil {
		return game.Action{}, game.State{}, err
	}
	e.log.Debug().Str("room", code).Str("player", playerID).Str("action", string(actionType)).Int64("seq", record.Seq).Msg("action appended")
	e.appendAction(ctx, code, record)
	return record, state, nil
}

func accepts(status game.Status, t game.ActionType) bool {
	switch status {
	case game.StatusPlaying:
		return t != game.ActionGameResumed
	case game.StatusPaused:
		return t == game.ActionGameResumed
	case game.StatusWaiting:
		return t == game.ActionPlayerReady
	}
	return false
}

// EndGame finishes the game. Any member may end it.
func (e *Engine) EndGame(ctx context.Context, code, playerID string) (game.Action, game.State, error) {
	code = protocol.NormalizeRoomCode(code)
	var (
		record game.Action
		state  game.State
	)
	_, err := e.rooms.Update(code, func(room *Room) error {
		if _, ok := room.Players[playerID]; !ok {
			return protocol.ErrNotInRoom
		}
		switch room.Status() {
		case game.StatusFinished:
			return protocol.ErrGameFinished
		case game.StatusWaiting:
			return protocol.ErrRoomNotPlaying
		}
		now := e.now()
		record = room.stamp(game.ActionGameEnded, playerID, nil, now)
		room.LastActivity = now
		state = room.State()

		env := protocol.New(protocol.TypeGameEnded)
		env.RoomCode = code
		env.PlayerID = playerID
		env.Record = &record
		env.Result = protocol.ResultFrom(state)
		e.broadcast(room, playerID, env.WithState(state))
		return nil
	})
	if err != nil {
		return game.Action{}, game.State{}, err
	}
	e.log.Info().Str("room", code).Str("player", playerID).Strs("winners", state.Leaders()).Msg("game ended")
	e.appendAction(ctx, code, record)
	return record, state, nil
}

// UpdateState applies a host-pushed patch of the host-owned fields.
func (e *Engine) UpdateState(ctx context.Context, code, playerID string, patch game.Ephemeral) (game.State, error) {
	code = protocol.NormalizeRoomCode(code)
	var state game.State
	_, err := e.rooms.Update(code, func(room *Room) error {
		if _, ok := room.Players[playerID]; !ok {
			return protocol.ErrNotInRoom
		}
		if room.HostID != playerID {
			return protocol.ErrNotHost
		}
		room.projection.SetEphemeral(patch)
		room.LastActivity = e.now()
		state = room.State()
		if patch.Empty() {
			return nil
		}
		env := protocol.New(protocol.TypeGameStateUpdate)
		env.RoomCode = code
		env.PlayerID = playerID
		e.broadcast(room, playerID, env.WithState(state))
		return nil
	})
	return state, err
}

// RenamePlayer changes the display name of playerID.
func (e *Engine) RenamePlayer(ctx context.Context, code, playerID, name string) (protocol.PlayerInfo, error) {
	code = protocol.NormalizeRoomCode(code)
	name = strings.TrimSpace(name)
	if name == "" {
		return protocol.PlayerInfo{}, protocol.Errorf(protocol.CodeInvalidMessage, "name is required")
	}
	var info protocol.PlayerInfo
	_, err := e.rooms.Update(code, func(room *Room) error {
		player, ok := room.Players[playerID]
		if !ok {
			return protocol.ErrNotInRoom
		}
		player.Name = name
		player.LastSeen = e.now()
		info = player.Info()
		e.broadcastPlayerUpdated(room, player)
		return nil
	})
	if err != nil {
		return protocol.PlayerInfo{}, err
	}
	e.log.Info().Str("room", code).Str("player", playerID).Str("name", name).Msg("player renamed")
	e.savePlayer(ctx, code, info)
	return info, nil
}

// Touch records activity from playerID, keeping the room out of the idle
// sweep.
func (e *Engine) Touch(code, playerID string) {
	code = protocol.NormalizeRoomCode(code)
	_, _ = e.rooms.Update(code, func(room *Room) error {
		player, ok := room.Players[playerID]
		if !ok {
			return protocol.ErrNotInRoom
		}
		now := e.now()
		player.LastSeen = now
		room.LastActivity = now
		return nil
	})
}

func (e *Engine) Snapshot(code string) (protocol.RoomSnapshot, error) {
	var snap protocol.RoomSnapshot
	err := e.rooms.View(protocol.NormalizeRoomCode(code), func(room *Room) {
		snap = room.Snapshot()
	})
	return snap, err
}

// RoomOf returns the code of the room playerID is in.
func (e *Engine) RoomOf(playerID string) (string, bool) {
	return e.rooms.RoomOf(playerID)
}

// Close stops every pending grace timer.
func (e *Engine) Close() {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	for key, timer := range e.timers {
		timer.Stop()
		delete(e.timers, key)
	}
}

func (e *Engine) leaveCurrent(ctx context.Context, playerID, keep string) {
	current, ok := e.rooms.RoomOf(playerID)
	if !ok || current == keep {
		return
	}
	if err := e.leave(ctx, current, playerID, "switched"); err != nil {
		e.log.Debug().Err(err).Str("room", current).Str("player", playerID).Msg("leave previous room")
	}
}

func (e *Engine) broadcast(room *Room, exclude string, env protocol.Envelope) {
	for _, p := range room.Ordered() {
		if p.ID == exclude {
			continue
		}
		e.out.Send(p.ID, env)
	}
}

func (e *Engine) broadcastPlayerUpdated(room *Room, player *Player) {
	env := protocol.New(protocol.TypePlayerUpdated)
	env.RoomCode = room.Code
	env.PlayerID = player.ID
	info := player.Info()
	env.Player = &info
	e.broadcast(room, player.ID, env)
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return protocol.DefaultPlayerName()
	}
	return name
}
