package transport

import (
	"context"
	"sync"

	"word-party/internal/protocol"
)

// PipeConn is one end of an in-memory duplex link. Both ends share the
// close state.
type PipeConn struct {
	in    <-chan []byte
	out   chan<- []byte
	state *pipeState
}

type pipeState struct {
	once   sync.Once
	done   chan struct{}
	code   int
	reason string
}

// NewPipePair returns two connected ends with the given buffer per
// direction.
func NewPipePair(buffer int) (*PipeConn, *PipeConn) {
	ab := make(chan []byte, buffer)
	ba := make(chan []byte, buffer)
	state := &pipeState{done: make(chan struct{})}
	return &PipeConn{in: ba, out: ab, state: state}, &PipeConn{in: ab, out: ba, state: state}
}

// Read blocks until a frame arrives or the pipe closes. Frames written
// before the close are still delivered.
func (c *PipeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	default:
	}
	select {
	case data := <-c.in:
		return data, nil
	case <-c.state.done:
		select {
		case data := <-c.in:
			return data, nil
		default:
		}
		return nil, protocol.ErrConnectionLost
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *PipeConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-c.state.done:
		return protocol.ErrConnectionLost
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.state.done:
		return protocol.ErrConnectionLost
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes both ends. Only the first code and reason are kept.
func (c *PipeConn) Close(code int, reason string) {
	c.state.once.Do(func() {
		c.state.code = code
		c.state.reason = reason
		close(c.state.done)
	})
}

func (c *PipeConn) Done() <-chan struct{} {
	return c.state.done
}

// CloseInfo is valid once Done is closed.
func (c *PipeConn) CloseInfo() (int, string) {
	return c.state.code, c.state.reason
}

// PipeDialer opens the server end of a pipe for a client.
type PipeDialer func(ctx context.Context, hello Hello) (*PipeConn, error)

// Pipe is an in-process Transport, used by tests and embedded servers.
type Pipe struct {
	dial PipeDialer

	mu   sync.Mutex
	conn *PipeConn
}

func NewPipe(dial PipeDialer) *Pipe {
	return &Pipe{dial: dial}
}

func (p *Pipe) Connect(ctx context.Context, hello Hello, events Events) error {
	conn, err := p.dial(ctx, hello)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	go p.readLoop(conn, events)
	return nil
}

func (p *Pipe) readLoop(conn *PipeConn, events Events) {
	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			p.mu.Lock()
			if p.conn == conn {
				p.conn = nil
			}
			p.mu.Unlock()
			code, reason := conn.CloseInfo()
			events.close(code, reason)
			return
		}
		decodeFrame(data, events)
	}
}

func (p *Pipe) Send(ctx context.Context, env protocol.Envelope) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return protocol.ErrConnectionLost
	}
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, data)
}

func (p *Pipe) Close(code int, reason string) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn != nil {
		conn.Close(code, reason)
	}
	return nil
}

// Drop simulates a network failure on the current connection.
func (p *Pipe) Drop() {
	_ = p.Close(CloseAbnormal, "connection dropped")
}
