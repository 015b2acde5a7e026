package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ReaperOAK/player-auction/internal/auction"
)

// clientMessage is what clients may send. Only ping is honoured; bids and
// timer control must go through the HTTP API.
type clientMessage struct {
	Type string `json:"type"`
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug("websocket write failed",
					slog.String("connection_id", c.ID),
					slog.Any("error", err),
				)
				c.leave()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.leave()
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer c.leave()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("unexpected websocket close",
					slog.String("connection_id", c.ID),
					slog.Any("error", err),
				)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
		c.handle(raw)
	}
}

// handle answers a client message. The channel is read-only: anything but
// a ping is rejected without touching the auction.
func (c *Client) handle(raw []byte) {
	var msg clientMessage
	_ = json.Unmarshal(raw, &msg)
	if msg.Type == "ping" {
		return
	}

	c.hub.logger.Info("rejected client message on real-time channel",
		slog.String("connection_id", c.ID),
		slog.String("role", string(c.Principal.Role)),
		slog.String("message_type", msg.Type),
	)
	ev := auction.NewEvent(auction.EventRejected, c.hub.stateFn(), auction.RejectedData{
		Reason:  "read_only_channel",
		Message: "bids and timer control must use the HTTP API",
	}, c.hub.clock.Now())
	select {
	case c.hub.replies <- reply{client: c, ev: ev}:
	case <-c.hub.done:
	}
}

// leave asks the hub to forget c. Safe to call more than once.
func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// Clients returns the number of connected clients. Intended for tests and
// readiness reporting; it round-trips through the hub loop.
func (h *Hub) Clients(ctx context.Context) int {
	ch := make(chan int, 1)
	select {
	case h.replies <- reply{count: ch}:
	case <-ctx.Done():
		return -1
	case <-h.done:
		return 0
	}
	select {
	case n := <-ch:
		return n
	case <-ctx.Done():
		return -1
	}
}
