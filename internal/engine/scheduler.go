package engine

import (
	"context"
	"time"
)

// Background tasks run on independent tickers and go through the same
// per-room serialization as foreground operations. All of them stop
// when the engine's context is cancelled.

func (e *Engine) expireLoop(ctx context.Context) {
	defer e.wg.Done()
	maxIdle := time.Duration(e.cfg.IdleRoomExpirySeconds) * time.Second
	ticker := time.NewTicker(time.Duration(e.cfg.RoomSweepIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.ExpireIdleRooms(maxIdle); n > 0 {
				e.log.WithField("expired", n).Info("idle rooms expired")
			}
		}
	}
}

func (e *Engine) compactionLoop(ctx context.Context) {
	defer e.wg.Done()
	retention := time.Duration(e.cfg.ChatRetentionHours) * time.Hour
	ticker := time.NewTicker(time.Duration(e.cfg.CompactionIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.compactAll(retention)
		}
	}
}

// compactAll runs one sweep over every room: drawing events subsumed
// by a durable snapshot are deleted up to the snapshot boundary, and
// chat messages past the retention window are pruned.
func (e *Engine) compactAll(chatRetention time.Duration) {
	chatCutoff := time.Now().Add(-chatRetention).UnixMilli()
	for _, info := range e.ListRooms() {
		if snap, ok := e.CanvasSnapshot(info.ID); ok {
			if err := e.CompactionPass(info.ID, snap.Timestamp); err != nil {
				e.log.WithError(err).WithField("room_id", info.ID).Warn("compaction pass failed")
			}
		}
		if err := e.PruneChat(info.ID, chatCutoff); err != nil {
			e.log.WithError(err).WithField("room_id", info.ID).Warn("chat retention pass failed")
		}
	}
}

func (e *Engine) flushLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(time.Duration(e.cfg.SnapshotFlushIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.flushDirtySnapshots()
		}
	}
}

// flushDirtySnapshots retries snapshot writes that failed at save
// time so the durable copy catches up with memory.
func (e *Engine) flushDirtySnapshots() {
	if e.db == nil {
		return
	}
	e.mu.RLock()
	rooms := make([]*room, 0, len(e.rooms))
	for _, rm := range e.rooms {
		rooms = append(rooms, rm)
	}
	e.mu.RUnlock()

	for _, rm := range rooms {
		rm.mu.Lock()
		var snap *Snapshot
		if rm.snapshotDirty && rm.snapshot != nil {
			snap = rm.snapshot
		}
		rm.mu.Unlock()
		if snap == nil {
			continue
		}
		if err := e.persistSnapshot(*snap); err != nil {
			e.log.WithError(err).WithField("room_id", rm.id).Warn("snapshot flush failed")
			continue
		}
		rm.mu.Lock()
		if rm.snapshot == snap {
			rm.snapshotDirty = false
		}
		rm.mu.Unlock()
	}
}
