package db

import (
	"time"

	"gorm.io/datatypes"
)

// Room is the archived record of one room instance. Codes are reused once a
// room is closed, so lookups by code pick the newest row.
type Room struct {
	ID            uint           `gorm:"primaryKey"`
	Code          string         `gorm:"size:6;index;not null"`
	HostID        string         `gorm:"size:64;not null"`
	Category      string         `gorm:"size:32;not null"`
	RoundDuration int            `gorm:"not null;default:60"`
	MaxPlayers    int            `gorm:"not null;default:2"`
	Status        string         `gorm:"size:16;not null"`
	CloseReason   string         `gorm:"size:32"`
	FinalState    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
	ClosedAt      *time.Time
	Players       []Player
	Actions       []Action
	Events        []Event
}
