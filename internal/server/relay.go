package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"word-party/internal/protocol"
	"word-party/internal/transport"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	relayInbox   = 64
	relayPublish = 3 * time.Second
)

// relayBridge accepts connections that arrive over Redis pub/sub instead of
// a socket. Each open frame becomes a peer like any WebSocket client.
type relayBridge struct {
	s       *Server
	rdb     *redis.Client
	timeout time.Duration
	log     zerolog.Logger

	mu    sync.Mutex
	links map[string]*relayLink
}

func newRelayBridge(s *Server, rdb *redis.Client) *relayBridge {
	return &relayBridge{
		s:       s,
		rdb:     rdb,
		timeout: s.cfg.RelayTimeout(),
		log:     s.log.With().Str("component", "relay").Logger(),
		links:   make(map[string]*relayLink),
	}
}

func (b *relayBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, transport.RelayUpChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	b.log.Info().Str("channel", transport.RelayUpChannel).Msg("relay listening")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return nil
		case msg, ok := <-ch:
			if !ok {
				b.closeAll()
				return nil
			}
			b.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (b *relayBridge) handle(ctx context.Context, payload []byte) {
	frame, err := transport.DecodeFrame(payload)
	if err != nil {
		b.log.Warn().Err(err).Msg("dropping relay frame")
		return
	}
	switch frame.Kind {
	case transport.RelayOpen:
		b.open(ctx, frame)
	case transport.RelayMessage:
		l := b.link(frame.PlayerID)
		if l == nil {
			b.log.Debug().Str("player", frame.PlayerID).Msg("message for unknown relay link")
			return
		}
		l.deliver(frame.Envelope)
	case transport.RelayClose:
		if l := b.link(frame.PlayerID); l != nil {
			l.closeRemote()
		}
	default:
		b.log.Warn().Str("kind", string(frame.Kind)).Msg("unknown relay frame kind")
	}
}

func (b *relayBridge) open(ctx context.Context, frame transport.RelayFrame) {
	if frame.PlayerID == "" {
		b.log.Warn().Msg("relay open without player id")
		return
	}
	who, err := b.s.identity.resolve(frame.Token, frame.PlayerID, frame.Name)
	if err == nil && who.PlayerID != frame.PlayerID {
		err = protocol.Errorf(protocol.CodeUnauthorized, "token does not match player")
	}
	if err != nil {
		b.log.Warn().Err(err).Str("player", frame.PlayerID).Msg("relay open rejected")
		b.publish(frame.PlayerID, transport.RelayFrame{
			Kind:     transport.RelayClose,
			PlayerID: frame.PlayerID,
			Code:     transport.ClosePolicyViolation,
			Reason:   err.Error(),
		})
		return
	}
	l := &relayLink{
		bridge:   b,
		playerID: who.PlayerID,
		inbox:    make(chan []byte, relayInbox),
		done:     make(chan struct{}),
		lastSeen: time.Now(),
	}
	b.mu.Lock()
	b.links[who.PlayerID] = l
	b.mu.Unlock()
	go b.s.serve(ctx, b.s.newPeer(who, l))
}

func (b *relayBridge) link(playerID string) *relayLink {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.links[playerID]
}

func (b *relayBridge) forget(l *relayLink) {
	b.mu.Lock()
	if b.links[l.playerID] == l {
		delete(b.links, l.playerID)
	}
	b.mu.Unlock()
}

func (b *relayBridge) closeAll() {
	b.mu.Lock()
	links := make([]*relayLink, 0, len(b.links))
	for _, l := range b.links {
		links = append(links, l)
	}
	b.mu.Unlock()
	for _, l := range links {
		_ = l.Close(transport.CloseGoingAway, "server shutting down")
	}
}

func (b *relayBridge) publish(playerID string, frame transport.RelayFrame) error {
	data, err := transport.EncodeFrame(frame)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayPublish)
	defer cancel()
	if err := b.rdb.Publish(ctx, transport.RelayDownChannel(playerID), data).Err(); err != nil {
		b.log.Debug().Err(err).Str("player", playerID).Msg("relay publish failed")
		return err
	}
	return nil
}

type relayLink struct {
	bridge   *relayBridge
	playerID string
	inbox    chan []byte
	done     chan struct{}

	mu       sync.Mutex
	closed   bool
	remote   bool
	lastSeen time.Time
}

func (l *relayLink) Kind() string { return "relay" }

func (l *relayLink) deliver(data []byte) {
	l.mu.Lock()
	l.lastSeen = time.Now()
	l.mu.Unlock()
	select {
	case <-l.done:
	case l.inbox <- data:
	default:
		l.bridge.log.Warn().Str("player", l.playerID).Msg("relay inbox full, closing link")
		_ = l.Close(transport.ClosePolicyViolation, "inbox full")
	}
}

func (l *relayLink) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-l.inbox:
		return data, nil
	case <-l.done:
		return nil, protocol.ErrConnectionLost
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *relayLink) Write(ctx context.Context, env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return l.bridge.publish(l.playerID, transport.RelayFrame{
		Kind:     transport.RelayMessage,
		PlayerID: l.playerID,
		Envelope: data,
	})
}

// Ping fails once the client has been silent for longer than the relay
// timeout. Relay clients keep the link alive with protocol pings.
func (l *relayLink) Ping(context.Context) error {
	l.mu.Lock()
	idle := time.Since(l.lastSeen)
	l.mu.Unlock()
	if idle > l.bridge.timeout {
		return protocol.Errorf(protocol.CodeConnectionLost, "relay idle for %s", idle.Round(time.Second))
	}
	return nil
}

func (l *relayLink) closeRemote() {
	l.mu.Lock()
	l.remote = true
	l.mu.Unlock()
	_ = l.Close(transport.CloseNormal, "")
}

func (l *relayLink) Close(code int, reason string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	remote := l.remote
	l.mu.Unlock()
	close(l.done)
	l.bridge.forget(l)
	if remote || code == transport.CloseReplaced {
		return nil
	}
	return l.bridge.publish(l.playerID, transport.RelayFrame{
		Kind:     transport.RelayClose,
		PlayerID: l.playerID,
		Code:     code,
		Reason:   reason,
	})
}
