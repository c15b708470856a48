package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/larsssmoatsss/pictochatter/internal/engine"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func (s *Server) handleSocket(c *gin.Context) {
	roomID := c.Param("roomID")
	if _, ok := s.engine.GetRoom(roomID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	logCtx := s.log.WithFields(logrus.Fields{
		"room_id": roomID,
		"remote":  c.Request.RemoteAddr,
	})
	logCtx.Debug("websocket connected")

	client := newWSClient(conn, logCtx)
	go client.writePump()
	s.readLoop(roomID, conn, client, logCtx)
}

// readLoop runs the per-connection session: it enforces join-first,
// then dispatches frames until the connection drops. The deferred
// Leave is handle-matched, so a session whose registration was taken
// over by a newer connection cannot remove the new one.
func (s *Server) readLoop(roomID string, conn *websocket.Conn, client *wsClient, logCtx *logrus.Entry) {
	var playerID, playerName string
	joined := false
	defer func() {
		if joined {
			s.engine.Leave(roomID, playerID, client)
		}
		client.Close()
		_ = conn.Close()
		logCtx.Debug("websocket session ended")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logCtx.WithError(err).Debug("websocket read failed")
			}
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			client.sendJSON(errorReply("malformed message"))
			continue
		}

		switch msg.Type {
		case "join":
			// One registration per connection: a joined socket cannot
			// take on a second identity, or its teardown would leave
			// the first one behind as a ghost.
			if joined {
				client.sendJSON(errorReply("already joined"))
				continue
			}
			state, err := s.engine.Join(roomID, msg.PlayerID, msg.PlayerName, client)
			if err != nil {
				client.sendJSON(errorReply(wireErrorMessage(err)))
				continue
			}
			playerID, playerName = state.PlayerID, state.PlayerName
			joined = true
			client.sendJSON(roomStateEnvelope{Type: "roomState", RoomState: state})
		case "rejoin":
			if joined {
				client.sendJSON(errorReply("already joined"))
				continue
			}
			state, err := s.engine.Rejoin(roomID, msg.PlayerID, msg.PlayerName, msg.LastEventTimestamp, client)
			if err != nil {
				client.sendJSON(errorReply(wireErrorMessage(err)))
				continue
			}
			playerID, playerName = state.PlayerID, state.PlayerName
			joined = true
			client.sendJSON(rejoinStateEnvelope{Type: "rejoinState", RejoinState: state})
		default:
			if !joined {
				client.sendJSON(errorReply("join required"))
				continue
			}
			s.dispatch(roomID, playerID, playerName, client, msg)
		}
	}
}

func (s *Server) dispatch(roomID, playerID, playerName string, client *wsClient, msg wireMessage) {
	switch msg.Type {
	case "draw":
		payload, err := encodeDrawPayload(msg.Points, msg.Color, msg.Size, msg.Tool)
		if err != nil {
			client.sendJSON(errorReply("invalid draw payload"))
			return
		}
		if _, err := s.engine.AppendDrawing(roomID, playerID, "draw", payload, 0); failedForClient(err) {
			client.sendJSON(errorReply(wireErrorMessage(err)))
		}
	case "clear":
		if err := s.engine.ClearDrawing(roomID, playerID); failedForClient(err) {
			client.sendJSON(errorReply(wireErrorMessage(err)))
		}
	case "message":
		if _, err := s.engine.AppendChat(roomID, playerID, playerName, msg.Text, 0); failedForClient(err) {
			client.sendJSON(errorReply(wireErrorMessage(err)))
		}
	case "drawStart":
		s.engine.SetDrawingFlag(roomID, playerID, true)
	case "drawEnd":
		s.engine.SetDrawingFlag(roomID, playerID, false)
	case "canvasSnapshot":
		if err := s.engine.SaveSnapshot(roomID, msg.SnapshotData, msg.Timestamp); failedForClient(err) {
			client.sendJSON(errorReply(wireErrorMessage(err)))
		}
	case "queueReplay":
		s.engine.ApplyReplayedEvents(roomID, playerID, playerName, toReplayEvents(msg.Events))
	default:
		client.sendJSON(errorReply("unknown message type"))
	}
}

// failedForClient filters out persistence failures: the in-memory
// append succeeded and was broadcast, so the client saw its effect.
func failedForClient(err error) bool {
	return err != nil && !errors.Is(err, engine.ErrPersistence)
}
