package engine

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Leave removes a player from the room's active set and notifies the
// remaining players. When conn is non-nil the removal only happens if
// that handle is still the registered one, so a dying socket cannot
// remove the registration a reconnect just replaced. The handle is
// not closed here; the transport layer owns its teardown. Returns
// false if the player was not registered.
func (e *Engine) Leave(roomID, playerID string, conn Conn) bool {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return false
	}
	rm.mu.Lock()
	c, ok := rm.players[playerID]
	if !ok || (conn != nil && c.conn != conn) {
		rm.mu.Unlock()
		return false
	}
	delete(rm.players, playerID)
	rm.touchLocked(time.Now())
	conns := rm.connsLocked("")
	rm.mu.Unlock()

	e.clearPlayerRoom(playerID, roomID)
	e.fanOut(conns, userLeftMessage(c.player))
	e.log.WithFields(logrus.Fields{"room_id": roomID, "player_id": playerID}).Debug("player left")
	return true
}

// Players returns a copy of the room's active set; the order is not
// meaningful.
func (e *Engine) Players(roomID string) []Player {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return nil
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.playersLocked()
}

// SetDrawingFlag flips the transient drawing indicator and tells the
// rest of the room. Best effort: a player that already left is a
// no-op.
func (e *Engine) SetDrawingFlag(roomID, playerID string, drawing bool) {
	rm, ok := e.roomByID(roomID)
	if !ok {
		return
	}
	rm.mu.Lock()
	c, ok := rm.players[playerID]
	if !ok {
		rm.mu.Unlock()
		return
	}
	c.player.IsDrawing = drawing
	player := c.player
	rm.touchLocked(time.Now())
	conns := rm.connsLocked(playerID)
	rm.mu.Unlock()

	e.fanOut(conns, drawingFlagMessage(player, drawing))
}
