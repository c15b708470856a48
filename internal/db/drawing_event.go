package db

import "gorm.io/datatypes"

// DrawingEvent rows carry engine-assigned IDs, so the primary key is
// not auto-incremented. Timestamp is Unix milliseconds.
type DrawingEvent struct {
	ID        int64          `gorm:"primaryKey;autoIncrement:false"`
	RoomID    string         `gorm:"size:64;not null;index:idx_drawing_events_room_time,priority:1"`
	PlayerID  string         `gorm:"size:64;not null"`
	EventType string         `gorm:"size:32;not null"`
	EventData datatypes.JSON `gorm:"type:jsonb;not null"`
	Timestamp int64          `gorm:"not null;index:idx_drawing_events_room_time,priority:2"`
}
