package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"word-party/internal/protocol"
	"word-party/internal/transport"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// wsReadLimit leaves room for envelopes over protocol.MaxMessageBytes to reach
// Decode and be dropped there. Frames beyond it close the socket with 1009.
const wsReadLimit = 4 * protocol.MaxMessageBytes

type wsLink struct {
	conn    *websocket.Conn
	idle    time.Duration
	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

func newWSLink(conn *websocket.Conn, idle time.Duration) *wsLink {
	l := &wsLink{conn: conn, idle: idle}
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(idle))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idle))
	})
	return l
}

func (l *wsLink) Kind() string { return "websocket" }

func (l *wsLink) Read(ctx context.Context) ([]byte, error) {
	for {
		messageType, data, err := l.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(l.idle))
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (l *wsLink) Write(ctx context.Context, env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

func (l *wsLink) Ping(ctx context.Context) error {
	return l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (l *wsLink) Close(code int, reason string) error {
	l.closeMu.Lock()
	if l.closed {
		l.closeMu.Unlock()
		return nil
	}
	l.closed = true
	l.closeMu.Unlock()
	if code == transport.CloseAbnormal {
		return l.conn.Close()
	}
	_ = l.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
	return l.conn.Close()
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleWebsocket(c *gin.Context) {
	var query connectQuery
	if !bindQuery(c, &query, connectMessages) {
		return
	}
	token := query.Token
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	who, err := s.identity.resolve(token, query.PlayerID, query.Name)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", c.ClientIP()).Msg("websocket rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": protocol.CodeOf(err)})
		return
	}
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("remote", c.ClientIP()).Msg("websocket upgrade failed")
		return
	}
	l := newWSLink(conn, 2*s.cfg.PingInterval())
	s.serve(s.base, s.newPeer(who, l))
}
