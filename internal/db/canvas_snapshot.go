package db

import "gorm.io/datatypes"

// CanvasSnapshot holds at most one row per room; saving a newer
// snapshot replaces the previous one in place.
type CanvasSnapshot struct {
	ID           uint           `gorm:"primaryKey"`
	RoomID       string         `gorm:"size:64;not null;uniqueIndex"`
	SnapshotData datatypes.JSON `gorm:"type:jsonb;not null"`
	Timestamp    int64          `gorm:"not null"`
}
