package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// wsClient adapts one websocket connection to the engine's Conn
// interface. Outbound frames go through a buffered channel drained by
// the write pump; when the buffer is full the frame is dropped rather
// than blocking the room, and the client recovers it on rejoin.
type wsClient struct {
	conn *websocket.Conn
	log  *logrus.Entry
	send chan []byte
	once sync.Once
	done chan struct{}
}

func newWSClient(conn *websocket.Conn, log *logrus.Entry) *wsClient {
	return &wsClient{
		conn: conn,
		log:  log,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsClient) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn("send buffer full, dropping frame")
		return false
	}
}

func (c *wsClient) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsClient) sendJSON(payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.WithError(err).Warn("failed to encode frame")
		return false
	}
	return c.Send(data)
}

// writePump owns every write to the underlying connection, including
// keepalive pings. Closing the raw conn on exit unblocks the read side
// so the whole session tears down together.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Debug("websocket write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
