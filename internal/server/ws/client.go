// Package ws carries the wire protocol over WebSocket: connection upgrade,
// per-client read/write pumps and command dispatch.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/registry"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Client is one connected WebSocket peer. It satisfies registry.Channel so
// the rest of the server can push frames to it without knowing about
// WebSockets.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	closed     chan struct{}
	closeOnce  sync.Once
	dispatcher *Dispatcher
	registry   *registry.Registry
	maxFrame   int64
	logger     logging.Logger
}

func newClient(conn *websocket.Conn, dispatcher *Dispatcher, reg *registry.Registry, maxFrame int64, logger logging.Logger) *Client {
	return &Client{
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		closed:     make(chan struct{}),
		dispatcher: dispatcher,
		registry:   reg,
		maxFrame:   maxFrame,
		logger:     logger,
	}
}

// Send queues a frame for delivery. A closed client reports
// registry.ErrClosed so the registry drops it; a full buffer is a transient
// failure that keeps the registration alive.
func (c *Client) Send(message []byte) error {
	select {
	case <-c.closed:
		return registry.ErrClosed
	default:
	}
	select {
	case c.send <- message:
		return nil
	case <-c.closed:
		return registry.ErrClosed
	default:
		return errors.New("send buffer full")
	}
}

// close tears the client down exactly once and removes it from the
// registry. Safe to call from either pump.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.registry.Unregister(c)
		c.conn.Close()
	})
}

// readPump consumes frames until the peer goes away, handing each one to
// the dispatcher. Responses go out through the send queue like any other
// frame.
func (c *Client) readPump(ctx context.Context) {
	defer c.close()

	c.conn.SetReadLimit(c.maxFrame)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(ctx, "unexpected connection drop", "error", err.Error())
			}
			return
		}

		if response := c.dispatcher.Dispatch(ctx, c, frame); response != nil {
			if err := c.Send(response); err != nil {
				c.logger.Warn(ctx, "failed to queue response", "error", err.Error())
				return
			}
		}
	}
}

// writePump owns all writes on the connection: queued frames plus the
// keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
