package db

import (
	"time"

	"gorm.io/datatypes"
)

// Action is one entry of a room's action log, unique by room and sequence.
type Action struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    uint           `gorm:"index;not null;uniqueIndex:idx_actions_room_seq"`
	Seq       int64          `gorm:"not null;uniqueIndex:idx_actions_room_seq"`
	ActionID  string         `gorm:"size:32;not null"`
	Type      string         `gorm:"size:32;not null"`
	PlayerKey string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	Timestamp int64          `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
