package db

// ChatMessage rows carry engine-assigned IDs, so the primary key is
// not auto-incremented. Timestamp is Unix milliseconds.
type ChatMessage struct {
	ID         int64  `gorm:"primaryKey;autoIncrement:false"`
	RoomID     string `gorm:"size:64;not null;index:idx_chat_messages_room_time,priority:1"`
	PlayerID   string `gorm:"size:64;not null"`
	PlayerName string `gorm:"size:64;not null"`
	Message    string `gorm:"size:280;not null"`
	Timestamp  int64  `gorm:"not null;index:idx_chat_messages_room_time,priority:2"`
}
