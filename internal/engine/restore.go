package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/larsssmoatsss/pictochatter/internal/db"
)

// restore rebuilds the arena from storage after a restart: room
// metadata, each room's snapshot slot, a bounded chat tail, and the
// drawing events recorded after the snapshot. The id sequence is
// seeded past every persisted id so new events never collide.
func (e *Engine) restore() error {
	if e.db == nil {
		return nil
	}
	var rooms []db.Room
	if err := e.db.Find(&rooms).Error; err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	events := 0
	for i := range rooms {
		record := &rooms[i]
		rm := newRoom(record.ID, record.Name, record.MaxPlayers, record.IsCustom, record.CreatedAt)

		var snap db.CanvasSnapshot
		err := e.db.Where("room_id = ?", record.ID).First(&snap).Error
		switch {
		case err == nil:
			rm.snapshot = &Snapshot{
				RoomID:    record.ID,
				Data:      json.RawMessage(snap.SnapshotData),
				Timestamp: snap.Timestamp,
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("load snapshot for %s: %w", record.ID, err)
		}

		var msgs []db.ChatMessage
		if err := e.db.Where("room_id = ?", record.ID).
			Order("timestamp DESC, id DESC").
			Limit(e.cfg.ChatHistoryLimit).
			Find(&msgs).Error; err != nil {
			return fmt.Errorf("load chat for %s: %w", record.ID, err)
		}
		for i := len(msgs) - 1; i >= 0; i-- {
			row := msgs[i]
			rm.chat = append(rm.chat, ChatMessage{
				ID:         row.ID,
				RoomID:     row.RoomID,
				PlayerID:   row.PlayerID,
				PlayerName: row.PlayerName,
				Text:       row.Message,
				Timestamp:  row.Timestamp,
			})
		}

		since := int64(0)
		if rm.snapshot != nil {
			since = rm.snapshot.Timestamp
		}
		var rows []db.DrawingEvent
		if err := e.db.Where("room_id = ? AND timestamp > ?", record.ID, since).
			Order("timestamp ASC, id ASC").
			Find(&rows).Error; err != nil {
			return fmt.Errorf("load drawing events for %s: %w", record.ID, err)
		}
		for _, row := range rows {
			rm.drawing = append(rm.drawing, DrawingEvent{
				ID:        row.ID,
				RoomID:    row.RoomID,
				PlayerID:  row.PlayerID,
				EventType: row.EventType,
				Data:      json.RawMessage(row.EventData),
				Timestamp: row.Timestamp,
			})
		}
		events += len(rows)

		e.mu.Lock()
		e.rooms[record.ID] = rm
		e.mu.Unlock()
	}

	var maxChatID, maxDrawID int64
	if err := e.db.Model(&db.ChatMessage{}).Select("COALESCE(MAX(id), 0)").Scan(&maxChatID).Error; err != nil {
		return fmt.Errorf("seed id sequence: %w", err)
	}
	if err := e.db.Model(&db.DrawingEvent{}).Select("COALESCE(MAX(id), 0)").Scan(&maxDrawID).Error; err != nil {
		return fmt.Errorf("seed id sequence: %w", err)
	}
	seq := maxChatID
	if maxDrawID > seq {
		seq = maxDrawID
	}
	e.seq.Store(seq)

	if len(rooms) > 0 {
		e.log.WithFields(logrus.Fields{"rooms": len(rooms), "events": events}).Info("state restored from storage")
	}
	return nil
}
