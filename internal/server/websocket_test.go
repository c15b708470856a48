package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialRoom(t *testing.T, tsURL, roomID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(tsURL, "http") + "/ws/rooms/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	frame := map[string]any{}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("decode frame %q: %v", raw, err)
	}
	return frame
}

func readFrameOfType(t *testing.T, conn *websocket.Conn, kind string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for %q frame", kind)
		}
		frame := readFrame(t, conn, remaining)
		if frame["type"] == kind {
			return frame
		}
	}
}

func TestSocketUnknownRoomRejected(t *testing.T) {
	ts, _ := newTestStack(t)
	res, body := doJSON(t, http.MethodGet, ts.URL+"/ws/rooms/missing", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %v", res.StatusCode, body)
	}
}

func TestSocketJoinReturnsRoomState(t *testing.T) {
	ts, _ := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Sketchers")

	conn := dialRoom(t, ts.URL, roomID)
	sendFrame(t, conn, map[string]any{"type": "join", "playerName": "Alice"})

	frame := readFrame(t, conn, 5*time.Second)
	if frame["type"] != "roomState" {
		t.Fatalf("expected roomState, got %v", frame)
	}
	if frame["roomName"] != "Sketchers" {
		t.Fatalf("unexpected room name: %v", frame["roomName"])
	}
	if frame["playerId"] == "" || frame["playerId"] == nil {
		t.Fatal("expected an assigned playerId")
	}
	players, _ := frame["activePlayers"].([]any)
	if len(players) != 1 {
		t.Fatalf("expected 1 active player, got %v", frame["activePlayers"])
	}
}

func TestSocketRequiresJoinFirst(t *testing.T) {
	ts, _ := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Strict")

	conn := dialRoom(t, ts.URL, roomID)
	sendFrame(t, conn, map[string]any{"type": "message", "text": "hi"})

	frame := readFrame(t, conn, 5*time.Second)
	if frame["type"] != "error" || frame["message"] != "join required" {
		t.Fatalf("expected join-required error, got %v", frame)
	}
}

func TestSocketMalformedFrame(t *testing.T) {
	ts, _ := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Tolerant")

	conn := dialRoom(t, ts.URL, roomID)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write malformed frame: %v", err)
	}
	frame := readFrame(t, conn, 5*time.Second)
	if frame["type"] != "error" || frame["message"] != "malformed message" {
		t.Fatalf("expected malformed-message error, got %v", frame)
	}

	// The connection survives and can still join.
	sendFrame(t, conn, map[string]any{"type": "join", "playerName": "Alice"})
	frame = readFrame(t, conn, 5*time.Second)
	if frame["type"] != "roomState" {
		t.Fatalf("expected roomState after recovery, got %v", frame)
	}
}

func TestSocketChatFlow(t *testing.T) {
	ts, _ := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Chatter")

	alice := dialRoom(t, ts.URL, roomID)
	sendFrame(t, alice, map[string]any{"type": "join", "playerId": "a", "playerName": "Alice"})
	if frame := readFrame(t, alice, 5*time.Second); frame["type"] != "roomState" {
		t.Fatalf("expected roomState, got %v", frame)
	}

	bob := dialRoom(t, ts.URL, roomID)
	sendFrame(t, bob, map[string]any{"type": "join", "playerId": "b", "playerName": "Bob"})
	if frame := readFrame(t, bob, 5*time.Second); frame["type"] != "roomState" {
		t.Fatalf("expected roomState, got %v", frame)
	}

	joined := readFrameOfType(t, alice, "userJoined", 5*time.Second)
	if joined["playerId"] != "b" {
		t.Fatalf("unexpected userJoined: %v", joined)
	}

	sendFrame(t, alice, map[string]any{"type": "message", "text": "hello bob"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readFrameOfType(t, conn, "message", 5*time.Second)
		if frame["text"] != "hello bob" || frame["playerName"] != "Alice" {
			t.Fatalf("unexpected chat frame: %v", frame)
		}
	}
}

func TestSocketDrawBroadcastSkipsAuthor(t *testing.T) {
	ts, _ := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Canvas")

	alice := dialRoom(t, ts.URL, roomID)
	sendFrame(t, alice, map[string]any{"type": "join", "playerId": "a", "playerName": "Alice"})
	readFrameOfType(t, alice, "roomState", 5*time.Second)

	bob := dialRoom(t, ts.URL, roomID)
	sendFrame(t, bob, map[string]any{"type": "join", "playerId": "b", "playerName": "Bob"})
	readFrameOfType(t, bob, "roomState", 5*time.Second)

	sendFrame(t, alice, map[string]any{
		"type":   "draw",
		"points": []map[string]float64{{"x": 1, "y": 2}, {"x": 3, "y": 4}},
		"color":  "#222222",
		"size":   3,
		"tool":   "pen",
	})

	frame := readFrameOfType(t, bob, "draw", 5*time.Second)
	if frame["playerId"] != "a" || frame["playerName"] != "Alice" {
		t.Fatalf("draw attribution missing: %v", frame)
	}
	data, _ := frame["data"].(map[string]any)
	if data == nil || data["color"] != "#222222" || data["tool"] != "pen" {
		t.Fatalf("draw payload not preserved: %v", frame["data"])
	}
}

func TestSocketCapacityError(t *testing.T) {
	ts, eng := newTestStack(t)
	if _, err := eng.CreateRoom("tiny", "Tiny", 2, true); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	for i, playerID := range []string{"a", "b"} {
		conn := dialRoom(t, ts.URL, "tiny")
		sendFrame(t, conn, map[string]any{"type": "join", "playerId": playerID})
		if frame := readFrame(t, conn, 5*time.Second); frame["type"] != "roomState" {
			t.Fatalf("join %d failed: %v", i, frame)
		}
	}

	third := dialRoom(t, ts.URL, "tiny")
	sendFrame(t, third, map[string]any{"type": "join", "playerId": "c"})
	frame := readFrame(t, third, 5*time.Second)
	if frame["type"] != "error" || frame["message"] != "room is full" {
		t.Fatalf("expected room-is-full error, got %v", frame)
	}
}

func TestSocketRejoinDeliversMissedEvents(t *testing.T) {
	ts, eng := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Recovery")

	alice := dialRoom(t, ts.URL, roomID)
	sendFrame(t, alice, map[string]any{"type": "join", "playerId": "a", "playerName": "Alice"})
	readFrameOfType(t, alice, "roomState", 5*time.Second)

	// Bob was here before and knows his watermark; while he is away
	// Alice draws.
	if _, err := eng.AppendDrawing(roomID, "a", "draw", json.RawMessage(`{"stroke":1}`), 0); err != nil {
		t.Fatalf("AppendDrawing: %v", err)
	}

	bob := dialRoom(t, ts.URL, roomID)
	sendFrame(t, bob, map[string]any{
		"type":               "rejoin",
		"playerId":           "b",
		"playerName":         "Bob",
		"lastEventTimestamp": 0,
	})
	frame := readFrameOfType(t, bob, "rejoinState", 5*time.Second)
	missed, _ := frame["missedEvents"].([]any)
	if len(missed) != 1 {
		t.Fatalf("expected 1 missed event, got %v", frame["missedEvents"])
	}

	rejoined := readFrameOfType(t, alice, "userJoined", 5*time.Second)
	if isRejoin, _ := rejoined["isRejoin"].(bool); !isRejoin {
		t.Fatalf("rejoin not flagged: %v", rejoined)
	}
}

func TestSocketSecondJoinRejected(t *testing.T) {
	ts, eng := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "One Identity")

	conn := dialRoom(t, ts.URL, roomID)
	sendFrame(t, conn, map[string]any{"type": "join", "playerId": "a", "playerName": "Alice"})
	readFrameOfType(t, conn, "roomState", 5*time.Second)

	// The same socket trying to register a second identity is refused;
	// accepting it would orphan the first registration on disconnect.
	sendFrame(t, conn, map[string]any{"type": "join", "playerId": "b", "playerName": "Bob"})
	frame := readFrame(t, conn, 5*time.Second)
	if frame["type"] != "error" || frame["message"] != "already joined" {
		t.Fatalf("expected already-joined error, got %v", frame)
	}
	sendFrame(t, conn, map[string]any{"type": "rejoin", "playerId": "b", "playerName": "Bob"})
	frame = readFrame(t, conn, 5*time.Second)
	if frame["type"] != "error" || frame["message"] != "already joined" {
		t.Fatalf("expected already-joined error on rejoin, got %v", frame)
	}

	players := eng.Players(roomID)
	if len(players) != 1 || players[0].ID != "a" {
		t.Fatalf("second join changed the active set: %+v", players)
	}

	// Disconnecting leaves no registration behind.
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitUntil(t, 5*time.Second, func() bool {
		return len(eng.Players(roomID)) == 0
	}, "registration survived disconnect")
}

func TestSocketCanvasSnapshotStored(t *testing.T) {
	ts, eng := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Gallery")

	conn := dialRoom(t, ts.URL, roomID)
	sendFrame(t, conn, map[string]any{"type": "join", "playerId": "a", "playerName": "Alice"})
	readFrameOfType(t, conn, "roomState", 5*time.Second)

	sendFrame(t, conn, map[string]any{
		"type":         "canvasSnapshot",
		"snapshotData": map[string]any{"strokes": []int{1, 2}},
		"timestamp":    123,
	})
	waitUntil(t, 5*time.Second, func() bool {
		_, ok := eng.CanvasSnapshot(roomID)
		return ok
	}, "snapshot frame not stored")

	snap, _ := eng.CanvasSnapshot(roomID)
	if snap.Timestamp != 123 {
		t.Fatalf("snapshot timestamp not honored: %+v", snap)
	}

	// A later joiner receives the stored snapshot in its state view.
	joiner := dialRoom(t, ts.URL, roomID)
	sendFrame(t, joiner, map[string]any{"type": "join", "playerId": "b", "playerName": "Bob"})
	frame := readFrameOfType(t, joiner, "roomState", 5*time.Second)
	data, _ := frame["canvasSnapshot"].(map[string]any)
	if data == nil || data["strokes"] == nil {
		t.Fatalf("snapshot missing from state view: %v", frame["canvasSnapshot"])
	}
}

func TestSocketQueueReplayFansOut(t *testing.T) {
	ts, eng := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Backlog")

	alice := dialRoom(t, ts.URL, roomID)
	sendFrame(t, alice, map[string]any{"type": "join", "playerId": "a", "playerName": "Alice"})
	readFrameOfType(t, alice, "roomState", 5*time.Second)

	bob := dialRoom(t, ts.URL, roomID)
	sendFrame(t, bob, map[string]any{"type": "rejoin", "playerId": "b", "playerName": "Bob", "lastEventTimestamp": 0})
	readFrameOfType(t, bob, "rejoinState", 5*time.Second)

	sendFrame(t, bob, map[string]any{
		"type": "queueReplay",
		"events": []map[string]any{
			{"type": "message", "text": "sent while offline", "timestamp": 110},
			{"type": "draw", "points": []map[string]float64{{"x": 1, "y": 2}}, "color": "#abcdef", "size": 2, "tool": "pen", "timestamp": 120},
		},
	})

	chat := readFrameOfType(t, alice, "message", 5*time.Second)
	if chat["text"] != "sent while offline" || chat["playerName"] != "Bob" {
		t.Fatalf("replayed chat not re-attributed: %v", chat)
	}
	draw := readFrameOfType(t, alice, "draw", 5*time.Second)
	if draw["playerId"] != "b" {
		t.Fatalf("replayed draw not re-attributed: %v", draw)
	}
	data, _ := draw["data"].(map[string]any)
	if data == nil || data["color"] != "#abcdef" {
		t.Fatalf("replayed draw payload not preserved: %v", draw["data"])
	}

	events, err := eng.DrawingEventsSince(roomID, 0)
	if err != nil {
		t.Fatalf("DrawingEventsSince: %v", err)
	}
	if len(events) != 1 || events[0].Timestamp != 120 {
		t.Fatalf("replayed draw not persisted with its timestamp: %+v", events)
	}
}

func TestSocketUnknownTypeAfterJoin(t *testing.T) {
	ts, _ := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Odd")

	conn := dialRoom(t, ts.URL, roomID)
	sendFrame(t, conn, map[string]any{"type": "join", "playerName": "Alice"})
	readFrameOfType(t, conn, "roomState", 5*time.Second)

	sendFrame(t, conn, map[string]any{"type": "teleport"})
	frame := readFrame(t, conn, 5*time.Second)
	if frame["type"] != "error" || frame["message"] != "unknown message type" {
		t.Fatalf("expected unknown-type error, got %v", frame)
	}
}

func TestSocketLeaveBroadcastOnDisconnect(t *testing.T) {
	ts, _ := newTestStack(t)
	roomID := createRoomViaAPI(t, ts, "Farewell")

	alice := dialRoom(t, ts.URL, roomID)
	sendFrame(t, alice, map[string]any{"type": "join", "playerId": "a", "playerName": "Alice"})
	readFrameOfType(t, alice, "roomState", 5*time.Second)

	bob := dialRoom(t, ts.URL, roomID)
	sendFrame(t, bob, map[string]any{"type": "join", "playerId": "b", "playerName": "Bob"})
	readFrameOfType(t, bob, "roomState", 5*time.Second)
	readFrameOfType(t, alice, "userJoined", 5*time.Second)

	_ = bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = bob.Close()

	left := readFrameOfType(t, alice, "userLeft", 5*time.Second)
	if left["playerId"] != "b" {
		t.Fatalf("unexpected userLeft: %v", left)
	}
}
