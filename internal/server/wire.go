package server

import (
	"encoding/json"
	"errors"

	"github.com/larsssmoatsss/pictochatter/internal/engine"
)

// wireMessage is the one inbound frame shape; fields a message type
// does not use stay at their zero values.
type wireMessage struct {
	Type               string          `json:"type"`
	PlayerID           string          `json:"playerId"`
	PlayerName         string          `json:"playerName"`
	LastEventTimestamp int64           `json:"lastEventTimestamp"`
	Text               string          `json:"text"`
	Points             json.RawMessage `json:"points"`
	Color              string          `json:"color"`
	Size               float64         `json:"size"`
	Tool               string          `json:"tool"`
	SnapshotData       json.RawMessage `json:"snapshotData"`
	Timestamp          int64           `json:"timestamp"`
	Events             []bufferedEvent `json:"events"`
}

// bufferedEvent is one entry of a queueReplay frame: the message the
// client would have sent live, stamped with its local send time.
type bufferedEvent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Points    json.RawMessage `json:"points"`
	Color     string          `json:"color"`
	Size      float64         `json:"size"`
	Tool      string          `json:"tool"`
	Timestamp int64           `json:"timestamp"`
}

// drawPayload is the persisted shape of a drawing event's event_data.
type drawPayload struct {
	Points json.RawMessage `json:"points"`
	Color  string          `json:"color"`
	Size   float64         `json:"size"`
	Tool   string          `json:"tool"`
}

type roomStateEnvelope struct {
	Type string `json:"type"`
	*engine.RoomState
}

type rejoinStateEnvelope struct {
	Type string `json:"type"`
	*engine.RejoinState
}

type errorEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorReply(message string) errorEnvelope {
	return errorEnvelope{Type: "error", Message: message}
}

func encodeDrawPayload(points json.RawMessage, color string, size float64, tool string) (json.RawMessage, error) {
	if len(points) > 0 && !json.Valid(points) {
		return nil, errors.New("points must be valid JSON")
	}
	return json.Marshal(drawPayload{
		Points: points,
		Color:  color,
		Size:   size,
		Tool:   tool,
	})
}

func toReplayEvents(events []bufferedEvent) []engine.ReplayEvent {
	replay := make([]engine.ReplayEvent, 0, len(events))
	for _, ev := range events {
		entry := engine.ReplayEvent{
			Kind:      ev.Type,
			Text:      ev.Text,
			Timestamp: ev.Timestamp,
		}
		if ev.Type == "draw" {
			data, err := encodeDrawPayload(ev.Points, ev.Color, ev.Size, ev.Tool)
			if err != nil {
				continue
			}
			entry.Data = data
		}
		replay = append(replay, entry)
	}
	return replay
}

// wireErrorMessage renders an engine failure as a short client-facing
// string. Detail from wrapped validation errors is preserved.
func wireErrorMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, engine.ErrRoomFull):
		return "room is full"
	case errors.Is(err, engine.ErrValidation):
		return err.Error()
	default:
		return "request failed"
	}
}
