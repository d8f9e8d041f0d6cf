package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"word-party/internal/protocol"

	"github.com/gorilla/websocket"
)

// WebSocket dials the room server's /ws endpoint.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
	header http.Header

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	closing bool
}

func NewWebSocket(rawURL string, header http.Header) *WebSocket {
	return &WebSocket{
		url:    rawURL,
		dialer: websocket.DefaultDialer,
		header: header,
	}
}

func (w *WebSocket) Connect(ctx context.Context, hello Hello, events Events) error {
	u, err := url.Parse(w.url)
	if err != nil {
		return protocol.Errorf(protocol.CodeConnectionFailed, "invalid server url: %v", err)
	}
	query := u.Query()
	query.Set("playerId", hello.PlayerID)
	if hello.Name != "" {
		query.Set("name", hello.Name)
	}
	u.RawQuery = query.Encode()

	header := http.Header{}
	for key, values := range w.header {
		header[key] = append([]string(nil), values...)
	}
	if hello.Token != "" {
		header.Set("Authorization", "Bearer "+hello.Token)
	}

	conn, resp, err := w.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized {
				return protocol.ErrUnauthorized
			}
		}
		return protocol.Errorf(protocol.CodeConnectionFailed, "dial %s: %v", u.Host, err)
	}

	w.mu.Lock()
	w.conn = conn
	w.closing = false
	w.mu.Unlock()

	go w.readLoop(conn, events)
	return nil
}

func (w *WebSocket) readLoop(conn *websocket.Conn, events Events) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code, reason := CloseAbnormal, err.Error()
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				code, reason = closeErr.Code, closeErr.Text
			}
			w.mu.Lock()
			if w.conn == conn {
				w.conn = nil
			}
			if w.closing {
				code = CloseNormal
			}
			w.mu.Unlock()
			_ = conn.Close()
			events.close(code, reason)
			return
		}
		decodeFrame(data, events)
	}
}

func (w *WebSocket) Send(ctx context.Context, env protocol.Envelope) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return protocol.ErrConnectionLost
	}
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrConnectionLost, err)
	}
	return nil
}

func (w *WebSocket) Close(code int, reason string) error {
	w.mu.Lock()
	conn := w.conn
	w.closing = true
	w.mu.Unlock()
	if conn == nil {
		return nil
	}
	w.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	w.writeMu.Unlock()
	if err != nil {
		return conn.Close()
	}
	time.AfterFunc(time.Second, func() { _ = conn.Close() })
	return nil
}
