package hub

import (
	"context"
	"errors"
	"time"

	"github.com/park285/chess-rooms/internal/obslog"
	"github.com/park285/chess-rooms/internal/room"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type client struct {
	id   room.ConnID
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// loop-only flags
	dropped bool
	closed  bool
}

func (c *client) closeSend() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readLoop forwards frames to the hub until the connection fails, then unregisters.
func (c *client) readLoop(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.CloseNow()
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("hub_read_closed", zap.String("conn", string(c.id)), zap.Error(err))
			}
			return
		}
		select {
		case c.hub.incoming <- inbound{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// writeLoop drains send and pings the peer. A closed send channel ends the connection.
func (c *client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusPolicyViolation, "connection closed by server")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, c.hub.writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				obslog.L().Debug("hub_write_failed", zap.String("conn", string(c.id)), zap.Error(err))
				c.conn.CloseNow()
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, c.hub.writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				obslog.L().Debug("hub_ping_failed", zap.String("conn", string(c.id)), zap.Error(err))
				c.conn.CloseNow()
				return
			}
		}
	}
}
