package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"word-party/internal/protocol"
	"word-party/internal/transport"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const sendBuffer = 64

// link is one accepted connection, whatever carries it.
type link interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, env protocol.Envelope) error
	Ping(ctx context.Context) error
	Close(code int, reason string) error
	Kind() string
}

type peer struct {
	id      string
	name    string
	link    link
	send    chan protocol.Envelope
	done    chan struct{}
	flushed chan struct{}
	limiter *rate.Limiter
	log     zerolog.Logger

	once   sync.Once
	code   int
	reason string
}

func (s *Server) newPeer(who caller, l link) *peer {
	return &peer{
		id:      who.PlayerID,
		name:    who.Name,
		link:    l,
		send:    make(chan protocol.Envelope, sendBuffer),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.MessageRate), s.cfg.MessageBurst),
		log:     s.log.With().Str("player", who.PlayerID).Str("transport", l.Kind()).Logger(),
	}
}

// enqueue drops the connection instead of blocking when the client cannot
// keep up; the client resyncs from roomJoined after reconnecting.
func (p *peer) enqueue(env protocol.Envelope) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.send <- env:
	default:
		p.log.Warn().Str("type", string(env.Type)).Msg("send buffer full, closing connection")
		p.shutdown(transport.ClosePolicyViolation, "send buffer full")
	}
}

func (p *peer) shutdown(code int, reason string) {
	p.once.Do(func() {
		p.code = code
		p.reason = reason
		close(p.done)
	})
}

// serve runs the connection until either side closes it. It returns once
// the player has been detached.
func (s *Server) serve(ctx context.Context, p *peer) {
	hello := protocol.New(protocol.TypeConnected)
	hello.PlayerID = p.id
	hello.Name = p.name
	p.enqueue(hello)
	s.hub.attach(p)
	p.log.Info().Msg("connected")

	go s.writePump(ctx, p)
	s.readPump(ctx, p)
	p.shutdown(transport.CloseNormal, "")
	<-p.flushed

	if !s.hub.detach(p) {
		p.log.Debug().Msg("replaced connection closed")
		return
	}
	code, ok := s.engine.RoomOf(p.id)
	if ok {
		s.engine.Disconnect(code, p.id)
	}
	p.log.Info().Int("code", p.code).Str("reason", p.reason).Bool("in_room", ok).Msg("disconnected")
}

func (s *Server) readPump(ctx context.Context, p *peer) {
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-readCtx.Done():
		}
	}()
	for {
		data, err := p.link.Read(readCtx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				p.log.Debug().Err(err).Msg("read ended")
			}
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			p.log.Warn().Err(err).Msg("dropping malformed message")
			continue
		}
		if !p.limiter.Allow() {
			p.log.Warn().Str("type", string(env.Type)).Msg("rate limited")
			p.enqueue(protocol.ErrorEnvelope(protocol.ErrRateLimited, env.RequestID))
			continue
		}
		s.dispatch(ctx, p, env)
	}
}

func (s *Server) writePump(ctx context.Context, p *peer) {
	defer close(p.flushed)
	interval := s.cfg.PingInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case env := <-p.send:
			if err := p.link.Write(ctx, env); err != nil {
				p.log.Debug().Err(err).Msg("write failed")
				p.shutdown(transport.CloseAbnormal, "write failed")
				_ = p.link.Close(transport.CloseAbnormal, "write failed")
				return
			}
		case <-ticker.C:
			if err := p.link.Ping(ctx); err != nil {
				p.log.Debug().Err(err).Msg("ping failed")
				p.shutdown(transport.CloseHeartbeatTimeout, "ping failed")
			}
		case <-p.done:
			p.flush(ctx)
			_ = p.link.Close(p.code, p.reason)
			return
		}
	}
}

// flush writes whatever was queued before the close, such as roomClosed.
func (p *peer) flush(ctx context.Context) {
	for {
		select {
		case env := <-p.send:
			if err := p.link.Write(ctx, env); err != nil {
				return
			}
		default:
			return
		}
	}
}
