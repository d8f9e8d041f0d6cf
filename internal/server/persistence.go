package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"word-party/internal/db"
	"word-party/internal/game"
	"word-party/internal/protocol"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Archive writes rooms, members and action logs to Postgres. A nil database
// turns every call into a no-op so the server runs without one.
type Archive struct {
	db  *gorm.DB
	log zerolog.Logger

	mu  sync.Mutex
	ids map[string]uint
}

func NewArchive(conn *gorm.DB, logger zerolog.Logger) *Archive {
	return &Archive{
		db:  conn,
		log: logger.With().Str("component", "archive").Logger(),
		ids: make(map[string]uint),
	}
}

// History is the archived log of the newest room instance with a code.
type History struct {
	Code        string        `json:"roomCode"`
	HostID      string        `json:"hostId"`
	Status      string        `json:"status"`
	CloseReason string        `json:"closeReason,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	ClosedAt    *time.Time    `json:"closedAt,omitempty"`
	Actions     []game.Action `json:"actions"`
}

func (a *Archive) SaveRoom(ctx context.Context, snap protocol.RoomSnapshot) error {
	if a.db == nil {
		return nil
	}
	record := db.Room{
		Code:          snap.Code,
		HostID:        snap.HostID,
		Category:      snap.Settings.Category,
		RoundDuration: snap.Settings.RoundDuration,
		MaxPlayers:    snap.Settings.MaxPlayers,
		Status:        string(snap.State.Status),
	}
	if err := a.db.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}
	a.mu.Lock()
	a.ids[snap.Code] = record.ID
	a.mu.Unlock()
	for _, player := range snap.Players {
		if err := a.savePlayer(ctx, record.ID, player); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) SavePlayer(ctx context.Context, code string, player protocol.PlayerInfo) error {
	if a.db == nil {
		return nil
	}
	roomID, err := a.roomID(ctx, code)
	if err != nil {
		return err
	}
	return a.savePlayer(ctx, roomID, player)
}

func (a *Archive) savePlayer(ctx context.Context, roomID uint, player protocol.PlayerInfo) error {
	record := db.Player{
		RoomID:    roomID,
		PlayerKey: player.ID,
		Name:      player.Name,
		IsHost:    player.IsHost,
		JoinedAt:  time.UnixMilli(player.JoinedAt),
	}
	err := a.db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}
	return a.db.WithContext(ctx).Model(&db.Player{}).
		Where("room_id = ? AND player_key = ?", roomID, player.ID).
		Updates(map[string]any{"name": player.Name, "is_host": player.IsHost}).Error
}

func (a *Archive) AppendAction(ctx context.Context, code string, action game.Action) error {
	if a.db == nil {
		return nil
	}
	roomID, err := a.roomID(ctx, code)
	if err != nil {
		return err
	}
	record := db.Action{
		RoomID:    roomID,
		Seq:       action.Seq,
		ActionID:  action.ID,
		Type:      string(action.Type),
		PlayerKey: action.PlayerID,
		Payload:   datatypes.JSON(action.Payload),
		Timestamp: action.Timestamp,
	}
	if err := a.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	status := archivedStatus(action.Type)
	if status == "" {
		return nil
	}
	return a.db.WithContext(ctx).Model(&db.Room{}).Where("id = ?", roomID).Update("status", status).Error
}

// archivedStatus is the room status an action moves the archive to, or
// empty when the action leaves it unchanged.
func archivedStatus(t game.ActionType) string {
	switch t {
	case game.ActionGameStarted, game.ActionGameResumed:
		return string(game.StatusPlaying)
	case game.ActionGamePaused:
		return string(game.StatusPaused)
	case game.ActionGameEnded:
		return string(game.StatusFinished)
	}
	return ""
}

func (a *Archive) RecordEvent(ctx context.Context, code, eventType string, payload any) error {
	if a.db == nil {
		return nil
	}
	roomID, err := a.roomID(ctx, code)
	if err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := db.Event{
		RoomID:  roomID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	}
	return a.db.WithContext(ctx).Create(&event).Error
}

func (a *Archive) CloseRoom(ctx context.Context, code, reason string, final game.State) error {
	if a.db == nil {
		return nil
	}
	roomID, err := a.roomID(ctx, code)
	if err != nil {
		return err
	}
	data, err := json.Marshal(final)
	if err != nil {
		return err
	}
	now := time.Now()
	err = a.db.WithContext(ctx).Model(&db.Room{}).Where("id = ?", roomID).Updates(map[string]any{
		"status":       string(final.Status),
		"close_reason": reason,
		"final_state":  datatypes.JSON(data),
		"closed_at":    &now,
	}).Error
	a.mu.Lock()
	if a.ids[code] == roomID {
		delete(a.ids, code)
	}
	a.mu.Unlock()
	if err == nil {
		a.log.Debug().Str("room", code).Uint("room_id", roomID).Str("reason", reason).Msg("room archived")
	}
	return err
}

// LoadHistory returns the newest archived instance of code. ok is false when
// nothing was archived under that code.
func (a *Archive) LoadHistory(ctx context.Context, code string) (History, bool, error) {
	if a.db == nil {
		return History{}, false, nil
	}
	var record db.Room
	err := a.db.WithContext(ctx).
		Preload("Actions", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq ASC") }).
		Where("code = ?", code).
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return History{}, false, nil
	}
	if err != nil {
		return History{}, false, err
	}
	history := History{
		Code:        record.Code,
		HostID:      record.HostID,
		Status:      record.Status,
		CloseReason: record.CloseReason,
		CreatedAt:   record.CreatedAt,
		ClosedAt:    record.ClosedAt,
		Actions:     make([]game.Action, 0, len(record.Actions)),
	}
	for _, action := range record.Actions {
		history.Actions = append(history.Actions, game.Action{
			ID:        action.ActionID,
			Seq:       action.Seq,
			Type:      game.ActionType(action.Type),
			PlayerID:  action.PlayerKey,
			Payload:   json.RawMessage(action.Payload),
			Timestamp: action.Timestamp,
		})
	}
	return history, true, nil
}

func (a *Archive) roomID(ctx context.Context, code string) (uint, error) {
	a.mu.Lock()
	id, ok := a.ids[code]
	a.mu.Unlock()
	if ok {
		return id, nil
	}
	var record db.Room
	err := a.db.WithContext(ctx).
		Where("code = ? AND closed_at IS NULL", code).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	a.ids[code] = record.ID
	a.mu.Unlock()
	return record.ID, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
