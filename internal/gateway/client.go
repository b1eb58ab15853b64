package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"notification-relay/internal/models"
)

// Delivery failures returned by Push. Callers treat both as non-fatal: a
// closed connection is already tearing itself down, and a full buffer means
// the client is too slow to care about this event.
var (
	ErrConnClosed     = errors.New("connection is closed")
	ErrSendBufferFull = errors.New("send buffer is full")
)

const writeWait = 10 * time.Second

// client is one live websocket connection. All writes to the socket go
// through the single write pump goroutine, which preserves per-connection
// send order.
type client struct {
	id       string
	identity models.Identity
	conn     *websocket.Conn
	send     chan models.Event
	done     chan struct{}
	once     sync.Once
	log      *zap.Logger
}

func newClient(conn *websocket.Conn, identity models.Identity, buffer int, log *zap.Logger) *client {
	id := uuid.NewString()
	return &client{
		id:       id,
		identity: identity,
		conn:     conn,
		send:     make(chan models.Event, buffer),
		done:     make(chan struct{}),
		log:      log.With(zap.String("conn", id), zap.String("user", identity.ID)),
	}
}

func (c *client) ID() string { return c.id }

// Push queues an event for delivery to this connection.
func (c *client) Push(event models.Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// close tears down the transport. Safe to call from any goroutine, any
// number of times.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// closeGoingAway tells the client the server is shutting down before closing.
func (c *client) closeGoingAway() {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	c.close()
}

// writePump drains the send queue and emits heartbeat pings. It is the only
// goroutine writing data frames to the socket.
func (c *client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}
