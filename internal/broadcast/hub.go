// Package broadcast fans committed auction events out to websocket clients
// grouped by role, and replays the current state to every client that joins.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/auth"
	"github.com/ReaperOAK/player-auction/internal/clock"
	"github.com/ReaperOAK/player-auction/internal/config"
)

// eventBuffer bounds how far publishers may run ahead of the hub loop
// before Publish blocks.
const eventBuffer = 1024

// Hub owns the set of connected clients. All client bookkeeping happens on
// the Run goroutine; other goroutines talk to it through channels.
type Hub struct {
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	stateFn  func() auction.View
	logger   *slog.Logger
	clock    clock.Clock
	conns    metric.Int64UpDownCounter

	register   chan *Client
	unregister chan *Client
	events     chan auction.Event
	replies    chan reply
	done       chan struct{}
	stopOnce   sync.Once

	// Owned by Run.
	clients map[*Client]struct{}
	view    *auction.View
}

// reply is a message for a single client, or a client count request.
type reply struct {
	client *Client
	ev     auction.Event
	count  chan<- int
}

// Client is one websocket connection.
type Client struct {
	ID          string
	Principal   auth.Principal
	ConnectedAt time.Time

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns a hub that reads the current state from stateFn when a
// client joins before any event has been published.
func NewHub(cfg config.WebSocketConfig, stateFn func() auction.View, checkOrigin func(*http.Request) bool, logger *slog.Logger, mp metric.MeterProvider, clk clock.Clock) (*Hub, error) {
	conns, err := mp.Meter("github.com/ReaperOAK/player-auction/internal/broadcast").
		Int64UpDownCounter("auction.ws.connections", metric.WithDescription("Open real-time connections"))
	if err != nil {
		return nil, err
	}
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		stateFn:    stateFn,
		logger:     logger,
		clock:      clk,
		conns:      conns,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan auction.Event, eventBuffer),
		replies:    make(chan reply, 64),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}, nil
}

// Publish queues ev for delivery. It blocks while the queue is full so no
// event is lost, and returns immediately once the hub has stopped.
func (h *Hub) Publish(ev auction.Event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// Run processes registrations and events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.InfoContext(ctx, "broadcast hub started")
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(ctx, c, "hub stopping")
			}
			h.logger.InfoContext(ctx, "broadcast hub stopped")
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.conns.Add(ctx, 1, metric.WithAttributes(attribute.String("role", string(c.Principal.Role))))
			h.deliver(ctx, c, h.encode(ctx, auction.NewEvent(auction.EventSnapshot, h.current(), nil, h.clock.Now())))
			h.logger.InfoContext(ctx, "client joined",
				slog.String("connection_id", c.ID),
				slog.String("role", string(c.Principal.Role)),
				slog.String("principal_id", c.Principal.ID),
				slog.Int("clients", len(h.clients)),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(ctx, c, "client left")
			}

		case r := <-h.replies:
			if r.count != nil {
				r.count <- len(h.clients)
				continue
			}
			if _, ok := h.clients[r.client]; ok {
				h.deliver(ctx, r.client, h.encode(ctx, r.ev))
			}

		case ev := <-h.events:
			h.broadcast(ctx, ev)
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// current is the newest known view, used for join snapshots.
func (h *Hub) current() auction.View {
	if h.view != nil {
		return *h.view
	}
	return h.stateFn()
}

func (h *Hub) broadcast(ctx context.Context, ev auction.Event) {
	if h.view == nil || ev.State.Version >= h.view.Version {
		v := ev.State
		h.view = &v
	}
	msg := h.encode(ctx, ev)
	if msg == nil {
		return
	}
	n := 0
	for c := range h.clients {
		if ev.TeamID != "" && !(c.Principal.Role == auth.RoleTeam && c.Principal.ID == ev.TeamID) {
			continue
		}
		if h.deliver(ctx, c, msg) {
			n++
		}
	}
	h.logger.DebugContext(ctx, "event broadcast",
		slog.String("event_type", string(ev.Type)),
		slog.Int64("version", ev.Version),
		slog.Int("clients", n),
	)
}

// deliver queues msg for c, disconnecting c when its buffer is full. The
// client resyncs from the snapshot it receives on reconnect.
func (h *Hub) deliver(ctx context.Context, c *Client, msg []byte) bool {
	if msg == nil {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		h.drop(ctx, c, "send buffer full")
		return false
	}
}

func (h *Hub) drop(ctx context.Context, c *Client, reason string) {
	delete(h.clients, c)
	close(c.send)
	h.conns.Add(ctx, -1, metric.WithAttributes(attribute.String("role", string(c.Principal.Role))))
	h.logger.InfoContext(ctx, "client disconnected",
		slog.String("connection_id", c.ID),
		slog.String("role", string(c.Principal.Role)),
		slog.String("reason", reason),
	)
}

func (h *Hub) encode(ctx context.Context, ev auction.Event) []byte {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal event",
			slog.String("event_type", string(ev.Type)),
			slog.Any("error", err),
		)
		return nil
	}
	return msg
}

// ServeWS upgrades the request and attaches the connection to the hub as p.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &Client{
		ID:          uuid.NewString(),
		Principal:   p,
		ConnectedAt: h.clock.Now(),
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, h.cfg.SendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
