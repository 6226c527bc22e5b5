package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/socialhub/backend/internal/logging"
	"github.com/socialhub/backend/internal/presence"
)

// ErrQueueFull is returned when a slow client has not drained its outbound queue.
var ErrQueueFull = errors.New("outbound queue full")

// frame is the wire shape of a live event.
type frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// conn is a single websocket client registered with the presence router.
type conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan presence.Message

	pingInterval time.Duration
	writeWait    time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id, userID string, ws *websocket.Conn, opts Options) *conn {
	return &conn{
		id:           id,
		userID:       userID,
		ws:           ws,
		send:         make(chan presence.Message, opts.QueueSize),
		pingInterval: opts.PingInterval,
		writeWait:    opts.WriteWait,
		done:         make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

// Send enqueues msg without blocking.
func (c *conn) Send(msg presence.Message) error {
	select {
	case <-c.done:
		return presence.ErrChannelClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return presence.ErrChannelClosed
	default:
		return ErrQueueFull
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	logger := logging.FromContext(ctx)
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			data, err := json.Marshal(frame{Event: msg.Event, Payload: msg.Payload})
			if err != nil {
				logger.Error("encode live event", "event", msg.Event, "error", err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

// readPump discards client frames and returns once the peer goes away.
func (c *conn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(4096)
	pongWait := c.pingInterval * 2
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
