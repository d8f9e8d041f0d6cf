package server

import (
	"net/http"
	"time"

	"word-party/internal/game"
	"word-party/internal/protocol"

	"github.com/gin-gonic/gin"
)

type statsResponse struct {
	Rooms       int    `json:"rooms"`
	Players     int    `json:"players"`
	Online      int    `json:"online"`
	ActiveGames int    `json:"activeGames"`
	Connections int    `json:"connections"`
	Node        string `json:"node"`
}

type historyResponse struct {
	Code    string        `json:"roomCode"`
	Source  string        `json:"source"`
	Status  string        `json:"status"`
	Reason  string        `json:"closeReason,omitempty"`
	Actions []game.Action `json:"actions"`
	State   game.State    `json:"state"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
		}
	}
	if s.rdb != nil {
		if err := s.rdb.Ping(c.Request.Context()).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = "unreachable"
		}
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleStats(c *gin.Context) {
	stats := s.engine.Stats()
	c.JSON(http.StatusOK, statsResponse{
		Rooms:       stats.Rooms,
		Players:     stats.Players,
		Online:      stats.Online,
		ActiveGames: stats.ActiveGames,
		Connections: s.hub.Len(),
		Node:        s.nodeID,
	})
}

func (s *Server) handleRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.engine.Summaries()})
}

func (s *Server) handleRoom(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri, roomURIMessages) {
		return
	}
	code := protocol.NormalizeRoomCode(uri.Code)
	snap, err := s.engine.Snapshot(code)
	if err == nil {
		c.JSON(http.StatusOK, snap)
		return
	}
	if s.mirror != nil {
		mirrored, ok, loadErr := s.mirror.Load(c.Request.Context(), code)
		if loadErr != nil {
			s.log.Warn().Err(loadErr).Str("room", code).Msg("mirror load failed")
		}
		if ok {
			c.JSON(http.StatusOK, mirrored)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "code": protocol.CodeRoomNotFound})
}

// handleHistory replays a room's action log. Live rooms answer from memory;
// closed rooms come from the archive.
func (s *Server) handleHistory(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri, roomURIMessages) {
		return
	}
	code := protocol.NormalizeRoomCode(uri.Code)
	if snap, err := s.engine.Snapshot(code); err == nil {
		c.JSON(http.StatusOK, historyResponse{
			Code:    code,
			Source:  "live",
			Status:  string(snap.State.Status),
			Actions: snap.Actions,
			State:   game.Replay(snap.Actions).State(),
		})
		return
	}
	history, ok, err := s.archive.LoadHistory(c.Request.Context(), code)
	if err != nil {
		s.log.Error().Err(err).Str("room", code).Msg("load history failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "code": protocol.CodeRoomNotFound})
		return
	}
	c.JSON(http.StatusOK, historyResponse{
		Code:    history.Code,
		Source:  "archive",
		Status:  history.Status,
		Reason:  history.CloseReason,
		Actions: history.Actions,
		State:   game.Replay(history.Actions).State(),
	})
}

func (s *Server) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": s.words.Categories()})
}
