// Package session owns a client's connection to the room server: identity,
// connect and heartbeat, reconnection with backoff, request/reply matching
// and the local projection of the current room.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"word-party/internal/game"
	"word-party/internal/protocol"
	"word-party/internal/transport"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ConnState string

const (
	StateIdle         ConnState = "idle"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateClosed       ConnState = "closed"
)

type EventKind string

const (
	// EventMessage carries an authority broadcast after it was applied.
	EventMessage      EventKind = "message"
	EventReconnecting EventKind = "reconnecting"
	EventReconnected  EventKind = "reconnected"
	// EventRoomLost means the room could not be resumed after a reconnect.
	EventRoomLost     EventKind = "roomLost"
	EventDisconnected EventKind = "disconnected"
	// EventFatal is terminal; the caller has to Connect again.
	EventFatal        EventKind = "fatal"
)

type Event struct {
	Kind     EventKind
	Envelope protocol.Envelope
	Attempt  int
	Err      error
}

const eventBuffer = 128

// errSuperseded means the connection closed right after it was accepted and
// a reconnect loop already owns the session.
var errSuperseded = protocol.Errorf(protocol.CodeConnectionLost, "connection closed while connecting")

type Options struct {
	Config Config
	// Store receives name changes. Defaults to an in-memory store.
	Store  KV
	Logger *zerolog.Logger
}

// RoomView is a copy of the room as this client currently sees it.
type RoomView struct {
	Code     string
	HostID   string
	Settings protocol.Settings
	Players  []protocol.PlayerInfo
	State    game.State
}

type Manager struct {
	tr     transport.Transport
	cfg    Config
	kv     KV
	log    zerolog.Logger
	events chan Event

	mu        sync.Mutex
	id        Identity
	state     ConnState
	gen       uint64
	ready     chan error
	pending   map[string]chan protocol.Envelope
	room      *roomState
	lastPong  time.Time
	stop      chan struct{}
	stopped   bool
	resyncing bool
}

func NewManager(tr transport.Transport, id Identity, opts Options) *Manager {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	kv := opts.Store
	if kv == nil {
		kv = NewMemoryKV()
	}
	return &Manager{
		tr:      tr,
		cfg:     opts.Config.withDefaults(),
		kv:      kv,
		log:     logger.With().Str("component", "session").Logger(),
		events:  make(chan Event, eventBuffer),
		id:      id,
		state:   StateIdle,
		pending: make(map[string]chan protocol.Envelope),
		stop:    make(chan struct{}),
	}
}

// Events delivers broadcasts and connection changes. Events are dropped
// when the channel is full.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) Identity() Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Room returns the current room, if any.
func (m *Manager) Room() (RoomView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room == nil {
		return RoomView{}, false
	}
	return m.room.view(), true
}

// View is the game state to render: the authoritative projection with any
// unconfirmed local actions folded on top.
func (m *Manager) View() game.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room == nil {
		return game.NewState()
	}
	return m.room.overlay.View()
}

// Connect opens the transport and waits for the server's connected message.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected, StateConnecting, StateReconnecting:
		m.mu.Unlock()
		return nil
	}
	if m.stopped {
		m.stop = make(chan struct{})
		m.stopped = false
	}
	m.state = StateConnecting
	m.mu.Unlock()

	if err := m.dial(ctx); err != nil {
		if err != errSuperseded {
			m.setState(StateIdle)
		}
		return err
	}
	m.log.Info().Str("player", m.Identity().PlayerID).Msg("connected")
	return nil
}

func (m *Manager) dial(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	m.mu.Lock()
	m.gen++
	gen := m.gen
	ready := make(chan error, 1)
	m.ready = ready
	hello := transport.Hello{PlayerID: m.id.PlayerID, Name: m.id.Name, Token: m.id.Token}
	m.mu.Unlock()

	events := transport.Events{
		OnMessage: func(env protocol.Envelope) { m.receive(gen, env) },
		OnClose:   func(code int, reason string) { m.closed(gen, code, reason) },
		OnError: func(err error) {
			m.log.Warn().Err(err).Msg("dropped malformed message")
		},
	}
	if err := m.tr.Connect(ctx, hello, events); err != nil {
		m.abandon(gen)
		if protocol.CodeOf(err) != "" {
			return err
		}
		return fmt.Errorf("%w: %v", protocol.ErrConnectionFailed, err)
	}

	select {
	case err := <-ready:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		m.abandon(gen)
		_ = m.tr.Close(transport.CloseNormal, "connect timeout")
		return protocol.Errorf(protocol.CodeConnectionFailed, "no answer from server within %s", m.cfg.ConnectTimeout)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return errSuperseded
	}
	m.state = StateConnected
	m.lastPong = time.Now()
	stop := m.stop
	m.mu.Unlock()
	go m.heartbeat(gen, stop)
	return nil
}

// abandon stops listening to a connection attempt that failed.
func (m *Manager) abandon(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		m.gen++
		m.ready = nil
	}
}

func (m *Manager) setState(state ConnState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Manager) receive(gen uint64, env protocol.Envelope) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	switch env.Type {
	case protocol.TypeConnected:
		if env.PlayerID != "" && env.PlayerID != m.id.PlayerID {
			m.log.Debug().Str("player", env.PlayerID).Msg("server assigned player id")
			m.id.PlayerID = env.PlayerID
		}
		if m.ready != nil {
			m.ready <- nil
			m.ready = nil
		}
		m.mu.Unlock()
		return
	case protocol.TypePong:
		m.lastPong = time.Now()
	}

	var reply chan protocol.Envelope
	if env.RequestID != "" {
		reply = m.pending[env.RequestID]
		delete(m.pending, env.RequestID)
	}
	applied := m.applyLocked(env)
	m.mu.Unlock()

	if reply != nil {
		reply <- env
		return
	}
	if applied {
		m.emit(Event{Kind: EventMessage, Envelope: env})
	}
}

// applyLocked folds an authority message into the current room. Messages
// tagged with a room this client is not in are ignored.
func (m *Manager) applyLocked(env protocol.Envelope) bool {
	switch env.Type {
	case protocol.TypePong, protocol.TypeError:
		return false
	case protocol.TypeRoomCreated, protocol.TypeRoomJoined:
		m.room = newRoomState(env.Snapshot())
		return true
	}

	room := m.room
	if room == nil || (env.RoomCode != "" && env.RoomCode != room.code) {
		m.log.Debug().Str("type", string(env.Type)).Str("room", env.RoomCode).Msg("ignoring message for another room")
		return false
	}
	switch env.Type {
	case protocol.TypeRoomLeft, protocol.TypeRoomClosed:
		m.room = nil
		return true
	case protocol.TypePlayerJoined, protocol.TypePlayerUpdated, protocol.TypePlayerLeft:
		if env.Type == protocol.TypePlayerLeft {
			delete(room.players, env.PlayerID)
		} else if env.Player != nil {
			room.players[env.Player.ID] = *env.Player
		}
		if len(env.Players) > 0 {
			room.setPlayers(env.Players)
		}
	case protocol.TypeHostChanged:
		room.hostID = env.NewHostID
		if len(env.Players) > 0 {
			room.setPlayers(env.Players)
		}
		room.markHost()
	case protocol.TypeGameStarted, protocol.TypeGameAction, protocol.TypeActionAccepted, protocol.TypeGameEnded:
		if env.Record != nil && !m.applyRecordLocked(room, *env.Record) {
			return false
		}
		room.patch(env)
	case protocol.TypeGameStateUpdate:
		room.patch(env)
	default:
		return false
	}
	room.overlay.Reset(room.projection.State())
	return true
}

// applyRecordLocked applies a canonical action in seq order and reports
// whether it was new. A gap means broadcasts were missed, so the room is
// fetched again instead.
func (m *Manager) applyRecordLocked(room *roomState, a game.Action) bool {
	if a.Seq > room.lastSeq+1 {
		m.log.Warn().Str("room", room.code).Int64("seq", a.Seq).Int64("last", room.lastSeq).Msg("action log gap")
		if !m.resyncing {
			m.resyncing = true
			go m.resync(room.code)
		}
		return false
	}
	if !room.projection.Apply(a) {
		return false
	}
	if a.Seq > room.lastSeq {
		room.lastSeq = a.Seq
	}
	return true
}

func (m *Manager) resync(code string) {
	defer func() {
		m.mu.Lock()
		m.resyncing = false
		m.mu.Unlock()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()
	if _, err := m.JoinRoom(ctx, code); err != nil {
		m.log.Warn().Err(err).Str("room", code).Msg("resync failed")
	}
}

func (m *Manager) closed(gen uint64, code int, reason string) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	if m.ready != nil {
		m.ready <- protocol.Errorf(protocol.CodeConnectionFailed, "connection closed before it was accepted: %d %s", code, reason)
		m.ready = nil
		m.mu.Unlock()
		return
	}
	m.failPendingLocked()
	intentional := m.stopped
	replaced := code == transport.CloseReplaced
	if intentional || replaced {
		m.state = StateClosed
	} else {
		m.state = StateReconnecting
	}
	stop := m.stop
	m.mu.Unlock()

	m.log.Info().Int("code", code).Str("reason", reason).Msg("connection closed")
	switch {
	case intentional:
		m.emit(Event{Kind: EventDisconnected})
	case replaced:
		m.emit(Event{Kind: EventDisconnected, Err: protocol.Errorf(protocol.CodeConnectionLost, "replaced by a newer connection")})
	default:
		go m.reconnect(stop)
	}
}

func (m *Manager) failPendingLocked() {
	for id, reply := range m.pending {
		reply <- protocol.ErrorEnvelope(protocol.ErrConnectionLost, id)
		delete(m.pending, id)
	}
}

func (m *Manager) heartbeat(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return
		}
		silent := time.Since(m.lastPong)
		m.mu.Unlock()

		if silent > 2*m.cfg.Heartbeat {
			m.log.Warn().Dur("silent", silent).Msg("heartbeat timeout")
			_ = m.tr.Close(transport.CloseHeartbeatTimeout, "heartbeat timeout")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Heartbeat)
		if err := m.tr.Send(ctx, protocol.New(protocol.TypePing)); err != nil {
			m.log.Debug().Err(err).Msg("ping failed")
		}
		cancel()
	}
}

func (m *Manager) reconnect(stop <-chan struct{}) {
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		wait := m.cfg.Backoff(attempt - 1)
		m.emit(Event{Kind: EventReconnecting, Attempt: attempt})
		m.log.Info().Int("attempt", attempt).Dur("wait", wait).Msg("reconnecting")

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := m.dial(context.Background()); err != nil {
			if err == errSuperseded {
				return
			}
			m.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}
		m.rejoin()
		m.emit(Event{Kind: EventReconnected, Attempt: attempt})
		return
	}

	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()
	m.log.Error().Int("attempts", m.cfg.MaxAttempts).Msg("giving up on reconnect")
	m.emit(Event{Kind: EventFatal, Err: protocol.ErrMaxReconnects})
}

// rejoin resumes the room held before the connection dropped.
func (m *Manager) rejoin() {
	m.mu.Lock()
	code := ""
	if m.room != nil {
		code = m.room.code
	}
	m.mu.Unlock()
	if code == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()
	if _, err := m.JoinRoom(ctx, code); err != nil {
		m.log.Warn().Err(err).Str("room", code).Msg("could not resume room")
		m.mu.Lock()
		if m.room != nil && m.room.code == code {
			m.room = nil
		}
		m.mu.Unlock()
		m.emit(Event{Kind: EventRoomLost, Err: err})
		return
	}
	m.log.Info().Str("room", code).Msg("room resumed")
}

// Disconnect leaves the current room, closes the transport and disables
// reconnection until Connect is called again.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	inRoom := m.room != nil
	connected := m.state == StateConnected
	m.mu.Unlock()

	var leaveErr error
	if inRoom && connected {
		if _, err := m.request(ctx, protocol.New(protocol.TypeLeaveRoom)); err != nil && !errors.Is(err, protocol.ErrNotInRoom) {
			leaveErr = err
		}
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return leaveErr
	}
	m.stopped = true
	close(m.stop)
	m.room = nil
	wasConnected := m.state == StateConnected
	if !wasConnected {
		m.state = StateClosed
	}
	m.mu.Unlock()

	if !wasConnected {
		m.emit(Event{Kind: EventDisconnected})
	}
	_ = m.tr.Close(transport.CloseNormal, "client disconnect")
	return leaveErr
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.log.Warn().Str("kind", string(ev.Kind)).Msg("event buffer full, dropping event")
	}
}

// request sends env and waits for the reply carrying the same request id.
// An error reply is returned as its typed error.
func (m *Manager) request(ctx context.Context, env protocol.Envelope) (protocol.Envelope, error) {
	env.RequestID = uuid.NewString()
	reply := make(chan protocol.Envelope, 1)

	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return protocol.Envelope{}, protocol.ErrConnectionLost
	}
	env.PlayerID = m.id.PlayerID
	m.pending[env.RequestID] = reply
	m.mu.Unlock()

	if err := m.tr.Send(ctx, env); err != nil {
		m.forget(env.RequestID)
		if protocol.CodeOf(err) == "" {
			err = fmt.Errorf("%w: %v", protocol.ErrConnectionLost, err)
		}
		return protocol.Envelope{}, err
	}

	timer := time.NewTimer(m.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case res := <-reply:
		if err := res.Err(); err != nil {
			return res, err
		}
		return res, nil
	case <-timer.C:
		m.forget(env.RequestID)
		return protocol.Envelope{}, protocol.ErrRequestTimeout
	case <-ctx.Done():
		m.forget(env.RequestID)
		return protocol.Envelope{}, ctx.Err()
	}
}

func (m *Manager) forget(requestID string) {
	m.mu.Lock()
	delete(m.pending, requestID)
	m.mu.Unlock()
}
