package web

import "time"

type RoomSummary struct {
	Code         string
	Category     string
	Status       string
	Players      int
	MaxPlayers   int
	HostName     string
	LastActivity time.Time
}

type HomeView struct {
	Rooms       []RoomSummary
	RoomCount   int
	PlayerCount int
	OnlineCount int
	ActiveGames int
	GeneratedAt time.Time
}
