package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const maxChatLength = 140

// AppendChat validates, stores and fans out one chat message. The
// returned message carries the assigned id and timestamp. A failed
// durable write is reported as ErrPersistence after the in-memory
// append and the broadcast have already happened; callers that only
// care about hard failures should test for it with errors.Is.
func (e *Engine) AppendChat(roomID, playerID, playerName, text string, timestamp int64) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, fmt.Errorf("%w: message text is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		return ChatMessage{}, fmt.Errorf("%w: message text must be %d characters or fewer", ErrValidation, maxChatLength)
	}
	rm, ok := e.roomByID(roomID)
	if !ok {
		return ChatMessage{}, ErrRoomNotFound
	}

	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return ChatMessage{}, ErrRoomNotFound
	}
	if timestamp <= 0 {
		timestamp = nowMillis()
	}
	msg := ChatMessage{
		ID:         e.nextID(),
		RoomID:     roomID,
		PlayerID:   playerID,
		PlayerName: playerName,
		Text:       text,
		Timestamp:  timestamp,
	}
	rm.insertChatLocked(msg, e.cfg.ChatHistoryLimit)
	rm.touchLocked(time.Now())
	conns := rm.connsLocked("")
	rm.mu.Unlock()

	e.fanOut(conns, chatEnvelope(msg))
	if err := e.persistChat(msg); err != nil {
		e.log.WithError(err).WithField("room_id", roomID).Warn("chat message not persisted")
		return msg, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msg, nil
}

// AppendDrawing stores and fans out one drawing event. The payload is
// opaque; only JSON well-formedness is checked. The author does not
// receive the fan-out copy.
func (e *Engine) AppendDrawing(roomID, playerID, eventType string, data json.RawMessage, timestamp int64) (DrawingEvent, error) {
	if eventType == "" {
		return DrawingEvent{}, fmt.Errorf("%w: event type is required", ErrValidation)
	}
	if len(data) == 0 || !json.Valid(data) {
		return DrawingEvent{}, fmt.Errorf("%w: event payload must be valid JSON", ErrValidation)
	}
	rm, ok := e.roomByID(roomID)
	if !ok {
		return DrawingEvent{}, ErrRoomNotFound
	}

	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return DrawingEvent{}, ErrRoomNotFound
	}
	if timestamp <= 0 {
		timestamp = nowMillis()
	}
	ev := DrawingEvent{
		ID:        e.nextID(),
		RoomID:    roomID,
		PlayerID:  playerID,
		EventType: eventType,
		Data:      append(json.RawMessage(nil), data...),
		Timestamp: timestamp,
	}
	rm.insertDrawingLocked(ev)
	playerName := playerID
	if c, ok := rm.players[playerID]; ok {
		playerName = c.player.Name
	}
	rm.touchLocked(time.Now())
	conns := rm.connsLocked(playerID)
	rm.mu.Unlock()

	e.fanOut(conns, drawingEnvelope(ev, playerName))
	if err := e.persistDrawing(ev); err != nil {
		e.log.WithError(err).WithField("room_id", roomID).Warn("drawing event not persisted")
		return ev, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return ev, nil
}

// ChatHistory returns up to limit of the most recent messages in
// ascending order. Callers must not assume the full history; the tail
// is bounded by configuration.
func (e *Engine) ChatHistory(roomID string, limit int) ([]ChatMessage, error) {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if limit <= 0 || limit > e.cfg.ChatHistoryLimit {
		limit = e.cfg.ChatHistoryLimit
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.chatTailLocked(limit), nil
}

// DrawingEventsSince returns the surviving drawing events strictly
// after the given timestamp in ascending (timestamp, id) order.
// Events at or before the room's snapshot boundary are subsumed by
// the snapshot and not returned; callers that pass a watermark older
// than the snapshot must apply the snapshot first.
func (e *Engine) DrawingEventsSince(roomID string, since int64) ([]DrawingEvent, error) {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.drawingSinceLocked(since), nil
}

// CanvasSnapshot returns the room's current snapshot, or false when
// none exists.
func (e *Engine) CanvasSnapshot(roomID string) (Snapshot, bool) {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return Snapshot{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.snapshot == nil {
		return Snapshot{}, false
	}
	return *rm.snapshot, true
}

// SaveSnapshot replaces the room's snapshot. Cached drawing events at
// or before the snapshot timestamp are dropped from memory since the
// snapshot subsumes them; persisted rows stay until a compaction pass
// so a corrupt snapshot can never cause unrecoverable loss. Events
// newer than the snapshot timestamp are kept. A snapshot whose
// timestamp is not newer than the current slot's is ignored: accepting
// it would hide the cached events between the two boundaries from
// joining clients.
func (e *Engine) SaveSnapshot(roomID string, data json.RawMessage, timestamp int64) error {
	if len(data) == 0 || !json.Valid(data) {
		return fmt.Errorf("%w: snapshot data must be valid JSON", ErrValidation)
	}
	rm, ok := e.roomByID(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return ErrRoomNotFound
	}
	if timestamp <= 0 {
		timestamp = nowMillis()
	}
	if rm.snapshot != nil && timestamp <= rm.snapshot.Timestamp {
		rm.mu.Unlock()
		e.log.WithField("room_id", roomID).Debug("stale snapshot ignored")
		return nil
	}
	snap := &Snapshot{
		RoomID:    roomID,
		Data:      append(json.RawMessage(nil), data...),
		Timestamp: timestamp,
	}
	rm.snapshot = snap
	rm.snapshotDirty = true
	kept := rm.drawing[:0:0]
	for _, ev := range rm.drawing {
		if ev.Timestamp > timestamp {
			kept = append(kept, ev)
		}
	}
	rm.drawing = kept
	rm.touchLocked(time.Now())
	rm.mu.Unlock()

	if err := e.persistSnapshot(*snap); err != nil {
		e.log.WithError(err).WithField("room_id", roomID).Warn("snapshot not persisted, will retry")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	rm.mu.Lock()
	if rm.snapshot == snap {
		rm.snapshotDirty = false
	}
	rm.mu.Unlock()
	return nil
}

// ClearDrawing wipes the room's drawing state: the in-memory cache,
// the snapshot slot, and the persisted rows. The remaining players
// are told to clear their canvases.
func (e *Engine) ClearDrawing(roomID, playerID string) error {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return ErrRoomNotFound
	}
	rm.drawing = nil
	rm.snapshot = nil
	rm.snapshotDirty = false
	playerName := playerID
	if c, ok := rm.players[playerID]; ok {
		playerName = c.player.Name
	}
	rm.touchLocked(time.Now())
	conns := rm.connsLocked(playerID)
	rm.mu.Unlock()

	e.fanOut(conns, clearEnvelope(playerID, playerName, nowMillis()))
	if err := e.deleteDrawingState(roomID); err != nil {
		e.log.WithError(err).WithField("room_id", roomID).Warn("drawing state not cleared in storage")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// CompactionPass deletes persisted drawing events older than the
// cutoff, but only when a durably written snapshot at or past the
// cutoff exists. History that is not subsumed by a durable snapshot
// is never deleted.
func (e *Engine) CompactionPass(roomID string, olderThan int64) error {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	rm.mu.Lock()
	snap := rm.snapshot
	dirty := rm.snapshotDirty
	rm.mu.Unlock()

	if snap == nil || dirty || snap.Timestamp < olderThan {
		return nil
	}
	deleted, err := e.deleteDrawingBefore(roomID, olderThan)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if deleted > 0 {
		e.log.WithFields(logrus.Fields{"room_id": roomID, "deleted": deleted}).Debug("drawing log compacted")
	}
	return nil
}

// PruneChat deletes chat messages older than the cutoff. Chat is not
// snapshot-summarized, so this is plain age-based retention.
func (e *Engine) PruneChat(roomID string, olderThan int64) error {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	rm.mu.Lock()
	kept := rm.chat[:0:0]
	for _, msg := range rm.chat {
		if msg.Timestamp >= olderThan {
			kept = append(kept, msg)
		}
	}
	rm.chat = kept
	rm.mu.Unlock()

	if _, err := e.deleteChatBefore(roomID, olderThan); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
