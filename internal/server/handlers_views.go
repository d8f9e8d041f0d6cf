package server

import (
	"time"

	"word-party/internal/web"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleHome(c *gin.Context) {
	templ.Handler(web.Home(s.homeView())).ServeHTTP(c.Writer, c.Request)
}

func (s *Server) homeView() web.HomeView {
	stats := s.engine.Stats()
	view := web.HomeView{
		RoomCount:   stats.Rooms,
		PlayerCount: stats.Players,
		OnlineCount: stats.Online,
		ActiveGames: stats.ActiveGames,
		GeneratedAt: time.Now(),
	}
	for _, snap := range s.engine.Summaries() {
		summary := web.RoomSummary{
			Code:         snap.Code,
			Category:     snap.Settings.Category,
			Status:       string(snap.State.Status),
			Players:      len(snap.Players),
			MaxPlayers:   snap.Settings.MaxPlayers,
			LastActivity: time.UnixMilli(snap.LastActivity),
		}
		for _, player := range snap.Players {
			if player.ID == snap.HostID {
				summary.HostName = player.Name
			}
		}
		view.Rooms = append(view.Rooms, summary)
	}
	return view
}
