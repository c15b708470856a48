package engine

import (
	"sort"
	"sync"
	"time"
)

// connection pairs a registered player with its transport handle.
type connection struct {
	player Player
	conn   Conn
}

// room owns all mutable state for one collaboration space. Every
// mutation happens under mu. When both the arena lock in Engine and mu
// are needed, the arena lock is taken first. Fields outside mu (id,
// isCustom, createdAt) are immutable after creation.
type room struct {
	id        string
	isCustom  bool
	createdAt time.Time

	mu         sync.Mutex
	name       string
	maxPlayers int
	closed     bool

	players map[string]*connection

	// chat is a bounded tail of recent messages; drawing caches the
	// events recorded after the current snapshot (or the full history
	// when no snapshot exists). snapshotDirty marks a snapshot that
	// has not yet been durably written.
	chat          []ChatMessage
	drawing       []DrawingEvent
	snapshot      *Snapshot
	snapshotDirty bool

	lastActivity time.Time
}

func newRoom(id, name string, maxPlayers int, isCustom bool, now time.Time) *room {
	return &room{
		id:           id,
		isCustom:     isCustom,
		createdAt:    now,
		name:         name,
		maxPlayers:   maxPlayers,
		players:      make(map[string]*connection),
		lastActivity: now,
	}
}

func (r *room) touchLocked(now time.Time) {
	r.lastActivity = now
}

// playersLocked copies the active set so callers can iterate without
// holding the room lock.
func (r *room) playersLocked() []Player {
	players := make([]Player, 0, len(r.players))
	for _, c := range r.players {
		players = append(players, c.player)
	}
	return players
}

// connsLocked snapshots the connection handles for fan-out, skipping
// excludePlayerID when non-empty.
func (r *room) connsLocked(excludePlayerID string) []Conn {
	conns := make([]Conn, 0, len(r.players))
	for id, c := range r.players {
		if excludePlayerID != "" && id == excludePlayerID {
			continue
		}
		conns = append(conns, c.conn)
	}
	return conns
}

// insertChatLocked keeps the tail in (timestamp, id) order even when
// a replayed message carries a timestamp older than the newest entry,
// then trims the tail to the given bound.
func (r *room) insertChatLocked(msg ChatMessage, bound int) {
	at := len(r.chat)
	for at > 0 && chatBefore(msg, r.chat[at-1]) {
		at--
	}
	r.chat = append(r.chat, ChatMessage{})
	copy(r.chat[at+1:], r.chat[at:])
	r.chat[at] = msg
	if bound > 0 && len(r.chat) > bound {
		r.chat = append(r.chat[:0:0], r.chat[len(r.chat)-bound:]...)
	}
}

// insertDrawingLocked keeps the cache in (timestamp, id) order;
// live events almost always append at the end, replayed events with
// stale timestamps land at their chronological position.
func (r *room) insertDrawingLocked(ev DrawingEvent) {
	if n := len(r.drawing); n == 0 || eventBefore(r.drawing[n-1], ev) {
		r.drawing = append(r.drawing, ev)
		return
	}
	at := sort.Search(len(r.drawing), func(i int) bool {
		return eventBefore(ev, r.drawing[i])
	})
	r.drawing = append(r.drawing, DrawingEvent{})
	copy(r.drawing[at+1:], r.drawing[at:])
	r.drawing[at] = ev
}

func eventBefore(a, b DrawingEvent) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.ID < b.ID
}

func chatBefore(a, b ChatMessage) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.ID < b.ID
}

// drawingSinceLocked returns the cached events strictly after the
// given timestamp, in ascending (timestamp, id) order. Events at or
// before the snapshot boundary are subsumed by the snapshot and never
// served from here.
func (r *room) drawingSinceLocked(since int64) []DrawingEvent {
	if r.snapshot != nil && since < r.snapshot.Timestamp {
		since = r.snapshot.Timestamp
	}
	events := make([]DrawingEvent, 0, len(r.drawing))
	for _, ev := range r.drawing {
		if ev.Timestamp > since {
			events = append(events, ev)
		}
	}
	return events
}

// chatTailLocked returns up to limit of the most recent messages in
// ascending order.
func (r *room) chatTailLocked(limit int) []ChatMessage {
	if limit <= 0 || limit > len(r.chat) {
		limit = len(r.chat)
	}
	tail := make([]ChatMessage, limit)
	copy(tail, r.chat[len(r.chat)-limit:])
	return tail
}

func (r *room) infoLocked() RoomInfo {
	return RoomInfo{
		ID:          r.id,
		Name:        r.name,
		PlayerCount: len(r.players),
		MaxPlayers:  r.maxPlayers,
		IsCustom:    r.isCustom,
		CreatedAt:   r.createdAt,
	}
}
