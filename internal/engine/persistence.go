package engine

import (
	"errors"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/larsssmoatsss/pictochatter/internal/db"
)

// Every persist helper tolerates a nil connection so the engine can
// run purely in memory; durability is then limited to process
// lifetime.

func (e *Engine) persistRoom(info RoomInfo) error {
	if e.db == nil {
		return nil
	}
	record := db.Room{
		ID:         info.ID,
		Name:       info.Name,
		MaxPlayers: info.MaxPlayers,
		IsCustom:   info.IsCustom,
		CreatedAt:  info.CreatedAt,
	}
	return e.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "max_players", "updated_at"}),
	}).Create(&record).Error
}

func (e *Engine) persistChat(msg ChatMessage) error {
	if e.db == nil {
		return nil
	}
	record := db.ChatMessage{
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		PlayerID:   msg.PlayerID,
		PlayerName: msg.PlayerName,
		Message:    msg.Text,
		Timestamp:  msg.Timestamp,
	}
	if err := e.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func (e *Engine) persistDrawing(ev DrawingEvent) error {
	if e.db == nil {
		return nil
	}
	record := db.DrawingEvent{
		ID:        ev.ID,
		RoomID:    ev.RoomID,
		PlayerID:  ev.PlayerID,
		EventType: ev.EventType,
		EventData: datatypes.JSON(ev.Data),
		Timestamp: ev.Timestamp,
	}
	if err := e.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func (e *Engine) persistSnapshot(snap Snapshot) error {
	if e.db == nil {
		return nil
	}
	record := db.CanvasSnapshot{
		RoomID:       snap.RoomID,
		SnapshotData: datatypes.JSON(snap.Data),
		Timestamp:    snap.Timestamp,
	}
	return e.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"snapshot_data", "timestamp"}),
	}).Create(&record).Error
}

func (e *Engine) deleteRoomRows(roomID string) error {
	if e.db == nil {
		return nil
	}
	if err := e.db.Where("room_id = ?", roomID).Delete(&db.ChatMessage{}).Error; err != nil {
		return err
	}
	if err := e.db.Where("room_id = ?", roomID).Delete(&db.DrawingEvent{}).Error; err != nil {
		return err
	}
	if err := e.db.Where("room_id = ?", roomID).Delete(&db.CanvasSnapshot{}).Error; err != nil {
		return err
	}
	return e.db.Where("id = ?", roomID).Delete(&db.Room{}).Error
}

func (e *Engine) deleteDrawingState(roomID string) error {
	if e.db == nil {
		return nil
	}
	if err := e.db.Where("room_id = ?", roomID).Delete(&db.DrawingEvent{}).Error; err != nil {
		return err
	}
	return e.db.Where("room_id = ?", roomID).Delete(&db.CanvasSnapshot{}).Error
}

func (e *Engine) deleteDrawingBefore(roomID string, cutoff int64) (int64, error) {
	if e.db == nil {
		return 0, nil
	}
	result := e.db.Where("room_id = ? AND timestamp < ?", roomID, cutoff).Delete(&db.DrawingEvent{})
	return result.RowsAffected, result.Error
}

func (e *Engine) deleteChatBefore(roomID string, cutoff int64) (int64, error) {
	if e.db == nil {
		return 0, nil
	}
	result := e.db.Where("room_id = ? AND timestamp < ?", roomID, cutoff).Delete(&db.ChatMessage{})
	return result.RowsAffected, result.Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
