package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxRoomNameLength = 64

// CreateRoom registers a room under the given id, generating one when
// id is empty. Creating an id that already exists updates the metadata
// only; players, chat, drawing events and the snapshot are untouched.
func (e *Engine) CreateRoom(id, name string, maxPlayers int, isCustom bool) (RoomInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoomInfo{}, fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return RoomInfo{}, fmt.Errorf("%w: room name must be %d characters or fewer", ErrValidation, maxRoomNameLength)
	}
	if maxPlayers <= 0 {
		maxPlayers = e.cfg.DefaultMaxPlayers
	}
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	e.mu.Lock()
	rm, exists := e.rooms[id]
	if exists {
		rm.mu.Lock()
		rm.name = name
		rm.maxPlayers = maxPlayers
		info := rm.infoLocked()
		rm.mu.Unlock()
		e.mu.Unlock()
		if err := e.persistRoom(info); err != nil {
			e.log.WithError(err).WithField("room_id", id).Warn("room metadata not persisted")
			return info, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return info, nil
	}
	rm = newRoom(id, name, maxPlayers, isCustom, now)
	e.rooms[id] = rm
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"room_id": id, "custom": isCustom}).Info("room created")
	info := RoomInfo{ID: id, Name: name, MaxPlayers: maxPlayers, IsCustom: isCustom, CreatedAt: now}
	if err := e.persistRoom(info); err != nil {
		e.log.WithError(err).WithField("room_id", id).Warn("room not persisted")
		return info, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return info, nil
}

// GetRoom returns the directory view of a room.
func (e *Engine) GetRoom(id string) (RoomInfo, bool) {
	rm, ok := e.roomByID(id)
	if !ok {
		return RoomInfo{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return RoomInfo{}, false
	}
	return rm.infoLocked(), true
}

// ListRooms returns every live room with its current player count,
// oldest first.
func (e *Engine) ListRooms() []RoomInfo {
	e.mu.RLock()
	rooms := make([]*room, 0, len(e.rooms))
	for _, rm := range e.rooms {
		rooms = append(rooms, rm)
	}
	e.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.Lock()
		if !rm.closed {
			infos = append(infos, rm.infoLocked())
		}
		rm.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// DeleteRoom removes a custom room and all of its persisted state.
// Built-in rooms cannot be deleted, and a room with active players
// must drain first.
func (e *Engine) DeleteRoom(id string) error {
	e.mu.Lock()
	rm, ok := e.rooms[id]
	if !ok {
		e.mu.Unlock()
		return ErrRoomNotFound
	}
	rm.mu.Lock()
	if !rm.isCustom {
		rm.mu.Unlock()
		e.mu.Unlock()
		return fmt.Errorf("%w: built-in rooms cannot be deleted", ErrPermission)
	}
	if len(rm.players) > 0 {
		rm.mu.Unlock()
		e.mu.Unlock()
		return fmt.Errorf("%w: %d active", ErrConflict, len(rm.players))
	}
	rm.closed = true
	delete(e.rooms, id)
	rm.mu.Unlock()
	e.mu.Unlock()

	e.log.WithField("room_id", id).Info("room deleted")
	if err := e.deleteRoomRows(id); err != nil {
		e.log.WithError(err).WithField("room_id", id).Warn("room rows not deleted")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// ExpireIdleRooms deletes every custom room that has no players and
// has been inactive for longer than maxIdle. Built-in rooms are
// exempt. Returns the number of rooms removed.
func (e *Engine) ExpireIdleRooms(maxIdle time.Duration) int {
	now := time.Now()
	e.mu.RLock()
	candidates := make([]*room, 0)
	for _, rm := range e.rooms {
		if rm.isCustom {
			candidates = append(candidates, rm)
		}
	}
	e.mu.RUnlock()

	expired := 0
	for _, rm := range candidates {
		rm.mu.Lock()
		idle := !rm.closed && len(rm.players) == 0 && now.Sub(rm.lastActivity) > maxIdle
		rm.mu.Unlock()
		if !idle {
			continue
		}
		// ErrPersistence still means the room left the arena; only a
		// conflicting join or a prior delete keeps it alive.
		if err := e.DeleteRoom(rm.id); err != nil && !errors.Is(err, ErrPersistence) {
			continue
		}
		expired++
	}
	return expired
}
