package engine

import (
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/larsssmoatsss/pictochatter/internal/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.BuiltinRooms = nil
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(nil, cfg, logger)
}

// fakeConn records every frame it is handed so tests can assert on
// fan-out behavior.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// received decodes every recorded frame into a generic map.
func (c *fakeConn) received(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]map[string]any, 0, len(c.frames))
	for _, frame := range c.frames {
		var decoded map[string]any
		if err := json.Unmarshal(frame, &decoded); err != nil {
			t.Fatalf("undecodable frame %q: %v", frame, err)
		}
		messages = append(messages, decoded)
	}
	return messages
}

func (c *fakeConn) countType(t *testing.T, kind string) int {
	t.Helper()
	count := 0
	for _, msg := range c.received(t) {
		if msg["type"] == kind {
			count++
		}
	}
	return count
}

func mustCreateRoom(t *testing.T, e *Engine, id, name string, maxPlayers int, custom bool) RoomInfo {
	t.Helper()
	info, err := e.CreateRoom(id, name, maxPlayers, custom)
	if err != nil {
		t.Fatalf("CreateRoom(%s): %v", id, err)
	}
	return info
}

func mustJoin(t *testing.T, e *Engine, roomID, playerID, playerName string, conn Conn) *RoomState {
	t.Helper()
	state, err := e.Join(roomID, playerID, playerName, conn)
	if err != nil {
		t.Fatalf("Join(%s, %s): %v", roomID, playerID, err)
	}
	return state
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}
