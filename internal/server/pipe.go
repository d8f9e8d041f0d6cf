package server

import (
	"context"

	"word-party/internal/protocol"
	"word-party/internal/transport"
)

const pipeBuffer = 128

type pipeLink struct {
	conn *transport.PipeConn
}

func (l pipeLink) Kind() string { return "pipe" }

func (l pipeLink) Read(ctx context.Context) ([]byte, error) {
	return l.conn.Read(ctx)
}

func (l pipeLink) Write(ctx context.Context, env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return l.conn.Write(ctx, data)
}

func (l pipeLink) Ping(context.Context) error {
	select {
	case <-l.conn.Done():
		return protocol.ErrConnectionLost
	default:
		return nil
	}
}

func (l pipeLink) Close(code int, reason string) error {
	l.conn.Close(code, reason)
	return nil
}

// DialPipe accepts an in-process connection. It satisfies
// transport.PipeDialer.
func (s *Server) DialPipe(ctx context.Context, hello transport.Hello) (*transport.PipeConn, error) {
	who, err := s.identity.resolve(hello.Token, hello.PlayerID, hello.Name)
	if err != nil {
		return nil, err
	}
	client, server := transport.NewPipePair(pipeBuffer)
	p := s.newPeer(who, pipeLink{conn: server})
	go s.serve(s.base, p)
	return client, nil
}
