package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/larsssmoatsss/pictochatter/internal/config"
)

// Engine is the room synchronization authority for a single process.
// It owns the arena of live rooms, the append-only event log with its
// snapshot slots, and the fan-out path. All state for a given room is
// serialized through that room's lock; separate rooms proceed in
// parallel. The database connection may be nil, in which case the
// engine runs purely in memory.
type Engine struct {
	db  *gorm.DB
	cfg config.Config
	log *logrus.Logger

	mu          sync.RWMutex
	rooms       map[string]*room
	playerRooms map[string]string

	// seq is the last assigned event id, shared by chat and drawing
	// events so (timestamp, id) stays a total order per room.
	seq atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(conn *gorm.DB, cfg config.Config, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		db:          conn,
		cfg:         cfg,
		log:         log,
		rooms:       make(map[string]*room),
		playerRooms: make(map[string]string),
	}
}

// Start restores persisted state, seeds the built-in rooms, and
// launches the background tasks. The tasks stop when ctx is cancelled
// or Close is called.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.restore(); err != nil {
		return err
	}
	for _, seed := range e.cfg.BuiltinRooms {
		// A failed mirror write is not fatal: the room is live in
		// memory and the row lands on the next metadata update.
		if _, err := e.CreateRoom(seed.ID, seed.Name, e.cfg.DefaultMaxPlayers, false); err != nil && !errors.Is(err, ErrPersistence) {
			return err
		}
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(3)
	go e.expireLoop(ctx)
	go e.compactionLoop(ctx)
	go e.flushLoop(ctx)
	return nil
}

// Close stops the background tasks and waits for them to exit. Live
// connections are not torn down; the transport layer owns those.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) nextID() int64 {
	return e.seq.Add(1)
}

func (e *Engine) roomByID(id string) (*room, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rm, ok := e.rooms[id]
	return rm, ok
}

func (e *Engine) roomOfPlayer(playerID string) (*room, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	roomID, ok := e.playerRooms[playerID]
	if !ok {
		return nil, false
	}
	rm, ok := e.rooms[roomID]
	return rm, ok
}

func (e *Engine) setPlayerRoom(playerID, roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playerRooms[playerID] = roomID
}

// clearPlayerRoom drops the index entry only if it still points at
// roomID, so a leave racing a join elsewhere cannot erase the newer
// registration.
func (e *Engine) clearPlayerRoom(playerID, roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playerRooms[playerID] == roomID {
		delete(e.playerRooms, playerID)
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
