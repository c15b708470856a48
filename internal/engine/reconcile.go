package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxPlayerNameLength = 64

// Join registers the connection in the room and returns the state the
// client needs to render it: the active player set, a bounded chat
// tail, the canvas snapshot if one exists, and the drawing events
// recorded after it. A player id is assigned when the client did not
// supply one. The rest of the room hears userJoined; the joining
// client does not.
func (e *Engine) Join(roomID, playerID, playerName string, conn Conn) (*RoomState, error) {
	state, _, err := e.attach(roomID, playerID, playerName, conn, false, 0)
	return state, err
}

// Rejoin is Join plus catch-up: missedEvents carries the drawing
// events strictly after the client's watermark, so the event that
// produced the watermark is never delivered twice. Safe to call
// repeatedly; a retry replaces the previous connection handle without
// consuming extra capacity.
func (e *Engine) Rejoin(roomID, playerID, playerName string, lastEventTimestamp int64, conn Conn) (*RejoinState, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: playerId is required to rejoin", ErrValidation)
	}
	state, missed, err := e.attach(roomID, playerID, playerName, conn, true, lastEventTimestamp)
	if err != nil {
		return nil, err
	}
	if missed == nil {
		missed = []DrawingEvent{}
	}
	return &RejoinState{RoomState: *state, MissedEvents: missed}, nil
}

func (e *Engine) attach(roomID, playerID, playerName string, conn Conn, isRejoin bool, since int64) (*RoomState, []DrawingEvent, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		playerName = "guest"
	}
	if utf8.RuneCountInString(playerName) > maxPlayerNameLength {
		return nil, nil, fmt.Errorf("%w: player name must be %d characters or fewer", ErrValidation, maxPlayerNameLength)
	}
	rm, ok := e.roomByID(roomID)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	if playerID == "" {
		playerID = uuid.NewString()
	}

	// A player is registered in at most one room at a time; a join
	// elsewhere evicts the stale registration.
	if prev, ok := e.roomOfPlayer(playerID); ok && prev != rm {
		e.evict(prev, playerID)
	}

	var replaced Conn
	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return nil, nil, ErrRoomNotFound
	}
	if existing, ok := rm.players[playerID]; ok {
		// Same player reconnecting before the old socket noticed: the
		// slot is kept, the dead handle is replaced.
		if existing.conn != conn {
			replaced = existing.conn
			existing.conn = conn
		}
		existing.player.Name = playerName
		existing.player.IsDrawing = false
	} else {
		if len(rm.players) >= rm.maxPlayers {
			rm.mu.Unlock()
			return nil, nil, ErrRoomFull
		}
		rm.players[playerID] = &connection{
			player: Player{ID: playerID, Name: playerName},
			conn:   conn,
		}
	}
	self := rm.players[playerID].player
	state := &RoomState{
		RoomID:        rm.id,
		RoomName:      rm.name,
		PlayerID:      playerID,
		PlayerName:    playerName,
		ActivePlayers: rm.playersLocked(),
		ChatHistory:   rm.chatTailLocked(e.cfg.ChatHistoryLimit),
		DrawingEvents: rm.drawingSinceLocked(0),
	}
	if rm.snapshot != nil {
		state.CanvasSnapshot = rm.snapshot.Data
		state.SnapshotTimestamp = rm.snapshot.Timestamp
	}
	var missed []DrawingEvent
	if isRejoin {
		missed = rm.drawingSinceLocked(since)
	}
	rm.touchLocked(time.Now())
	conns := rm.connsLocked(playerID)
	rm.mu.Unlock()

	e.setPlayerRoom(playerID, roomID)
	if replaced != nil {
		replaced.Close()
	}
	e.fanOut(conns, userJoinedMessage(self, isRejoin))
	e.log.WithFields(logrus.Fields{
		"room_id":   roomID,
		"player_id": playerID,
		"rejoin":    isRejoin,
	}).Info("player joined")
	return state, missed, nil
}

// evict removes a registration the player left behind in another
// room, closing its handle and telling that room the player left.
func (e *Engine) evict(rm *room, playerID string) {
	rm.mu.Lock()
	c, ok := rm.players[playerID]
	if !ok {
		rm.mu.Unlock()
		return
	}
	delete(rm.players, playerID)
	rm.touchLocked(time.Now())
	conns := rm.connsLocked("")
	rm.mu.Unlock()

	e.clearPlayerRoom(playerID, rm.id)
	c.conn.Close()
	e.fanOut(conns, userLeftMessage(c.player))
}

// ApplyReplayedEvents absorbs events a client buffered while offline.
// Attribution is re-stamped with the replaying connection's identity;
// timestamps are taken from the events when present, otherwise
// assigned at receipt. Only chat and draw kinds are applied, anything
// else is skipped. No deduplication happens here: the same buffered
// event replayed twice is persisted and broadcast twice. Returns the
// number of applied events.
func (e *Engine) ApplyReplayedEvents(roomID, playerID, playerName string, events []ReplayEvent) int {
	applied := 0
	for _, ev := range events {
		switch ev.Kind {
		case "message":
			if _, err := e.AppendChat(roomID, playerID, playerName, ev.Text, ev.Timestamp); err != nil && !errors.Is(err, ErrPersistence) {
				e.log.WithError(err).WithField("room_id", roomID).Debug("replayed message skipped")
				continue
			}
		case "draw":
			if _, err := e.AppendDrawing(roomID, playerID, "draw", ev.Data, ev.Timestamp); err != nil && !errors.Is(err, ErrPersistence) {
				e.log.WithError(err).WithField("room_id", roomID).Debug("replayed drawing skipped")
				continue
			}
		default:
			continue
		}
		applied++
	}
	return applied
}
