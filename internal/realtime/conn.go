package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

// Conn wraps a single WebSocket connection with a buffered outbound
// queue. The write pump is the only goroutine writing to the socket;
// everything else enqueues.
type Conn struct {
	id   uuid.UUID
	sock *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(sock *websocket.Conn, sendBuffer int) *Conn {
	return &Conn{
		id:   uuid.New(),
		sock: sock,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// ID returns the connection's identity, assigned at accept time.
func (c *Conn) ID() uuid.UUID { return c.id }

// enqueue places a serialized frame on the outbound queue. It never
// blocks: frames to a closed connection or a full queue are dropped, and
// the drop is reported via the return value so callers can log it.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close shuts the connection down exactly once. Safe to call from any
// goroutine; pending enqueued frames are discarded.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.sock.Close()
	})
}

// writePump drains the outbound queue onto the socket and keeps the
// connection alive with periodic pings. It exits when the connection is
// closed or a write fails.
func (c *Conn) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("write failed, closing connection",
					"conn_id", c.id,
					"error", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
