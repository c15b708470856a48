package engine

import (
	"encoding/json"
	"time"
)

// Conn is the transport handle the engine delivers messages through.
// Send must not block; it reports false when the message was dropped
// because the connection is closing or its buffer is full. Close tears
// the connection down and may be called more than once.
type Conn interface {
	Send(data []byte) bool
	Close()
}

// Player describes an active connection inside a room. Players exist
// only while their connection is open; they are never persisted.
type Player struct {
	ID        string `json:"playerId"`
	Name      string `json:"playerName"`
	IsDrawing bool   `json:"isDrawing"`
}

// ChatMessage is immutable once appended. Timestamp is milliseconds
// since epoch, assigned by the server at receipt unless the client
// replayed a buffered event that carried its own.
type ChatMessage struct {
	ID         int64  `json:"id"`
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// DrawingEvent carries an opaque payload; the engine never inspects
// point geometry or style attributes.
type DrawingEvent struct {
	ID        int64           `json:"id"`
	RoomID    string          `json:"roomId"`
	PlayerID  string          `json:"playerId"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Snapshot is a room's single summarized canvas capture. Its timestamp
// is the compaction boundary: drawing events at or before it are
// subsumed by the snapshot data.
type Snapshot struct {
	RoomID    string          `json:"roomId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// RoomInfo is the directory view of a room, enriched with the live
// player count at read time.
type RoomInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PlayerCount int       `json:"playerCount"`
	MaxPlayers  int       `json:"maxPlayers"`
	IsCustom    bool      `json:"isCustom"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RoomState is the reconciliation payload a joining client needs to
// reconstruct the room: the snapshot (if any) plus the drawing events
// recorded after it, and a bounded chat tail.
type RoomState struct {
	RoomID            string          `json:"roomId"`
	RoomName          string          `json:"roomName"`
	PlayerID          string          `json:"playerId"`
	PlayerName        string          `json:"playerName"`
	ActivePlayers     []Player        `json:"activePlayers"`
	ChatHistory       []ChatMessage   `json:"chatHistory"`
	DrawingEvents     []DrawingEvent  `json:"drawingEvents"`
	CanvasSnapshot    json.RawMessage `json:"canvasSnapshot,omitempty"`
	SnapshotTimestamp int64           `json:"snapshotTimestamp,omitempty"`
}

// RejoinState adds the events a reconnecting client missed while
// disconnected, filtered strictly after its watermark.
type RejoinState struct {
	RoomState
	MissedEvents []DrawingEvent `json:"missedEvents"`
}

// ReplayEvent is one client-buffered event submitted through the
// replay path after a reconnect. Kind is the original message type;
// only chat and draw kinds are applied, anything else is skipped.
type ReplayEvent struct {
	Kind      string
	Text      string
	Data      json.RawMessage
	Timestamp int64
}
