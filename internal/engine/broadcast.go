package engine

import "encoding/json"

// Broadcast sends message to every player currently registered in the
// room except excludePlayerID, using a snapshot of the registry taken
// at call time. Delivery is one-way and best effort: a connection in
// mid-teardown silently misses the message and no failure is reported
// to the sender. Durability lives in the event log, so a dropped
// frame is recovered by the next join or rejoin, not retried here.
func (e *Engine) Broadcast(roomID string, message any, excludePlayerID string) {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return
	}
	rm.mu.Lock()
	conns := rm.connsLocked(excludePlayerID)
	rm.mu.Unlock()
	e.fanOut(conns, message)
}

// fanOut marshals once and writes to each handle without waiting for
// acknowledgment.
func (e *Engine) fanOut(conns []Conn, message any) {
	if len(conns) == 0 {
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		e.log.WithError(err).Warn("broadcast payload not marshalable")
		return
	}
	for _, conn := range conns {
		_ = conn.Send(data)
	}
}

type presenceMessage struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	IsRejoin   bool   `json:"isRejoin,omitempty"`
}

func userJoinedMessage(p Player, isRejoin bool) presenceMessage {
	return presenceMessage{Type: "userJoined", PlayerID: p.ID, PlayerName: p.Name, IsRejoin: isRejoin}
}

func userLeftMessage(p Player) presenceMessage {
	return presenceMessage{Type: "userLeft", PlayerID: p.ID, PlayerName: p.Name}
}

func drawingFlagMessage(p Player, drawing bool) presenceMessage {
	kind := "drawEnd"
	if drawing {
		kind = "drawStart"
	}
	return presenceMessage{Type: kind, PlayerID: p.ID, PlayerName: p.Name}
}

type chatBroadcast struct {
	Type string `json:"type"`
	ChatMessage
}

func chatEnvelope(msg ChatMessage) chatBroadcast {
	return chatBroadcast{Type: "message", ChatMessage: msg}
}

// drawBroadcast carries the persisted event verbatim plus the display
// name of its author.
type drawBroadcast struct {
	Type       string `json:"type"`
	PlayerName string `json:"playerName"`
	DrawingEvent
}

func drawingEnvelope(ev DrawingEvent, playerName string) drawBroadcast {
	return drawBroadcast{Type: ev.EventType, PlayerName: playerName, DrawingEvent: ev}
}

type clearBroadcast struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Timestamp  int64  `json:"timestamp"`
}

func clearEnvelope(playerID, playerName string, timestamp int64) clearBroadcast {
	return clearBroadcast{Type: "clear", PlayerID: playerID, PlayerName: playerName, Timestamp: timestamp}
}
