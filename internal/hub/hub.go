// Package hub owns the WebSocket connections and runs the single event loop that feeds the
// room coordinator. All coordinator calls, and therefore all Send calls, happen on the goroutine
// executing Run.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/park285/chess-rooms/internal/obslog"
	"github.com/park285/chess-rooms/internal/room"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Handler is the game logic driven by the loop.
type Handler interface {
	Dispatch(conn room.ConnID, raw []byte) error
	Disconnect(conn room.ConnID)
	Snapshots() []room.Snapshot
}

type inbound struct {
	client *client
	data   []byte
}

// Hub tracks live clients and serializes their events.
type Hub struct {
	// only touched by the Run goroutine
	clients map[room.ConnID]*client
	handler Handler

	register   chan *client
	unregister chan *client
	incoming   chan inbound
	done       chan struct{}

	maxMessageBytes int64
	sendBuffer      int
	statsInterval   time.Duration
	pingInterval    time.Duration
	writeTimeout    time.Duration
	originPatterns  []string
	newID           func() room.ConnID
}

type Option func(*Hub)

func WithMaxMessageBytes(n int64) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxMessageBytes = n
		}
	}
}

func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithStatsInterval enables periodic rooms_stats logging; zero disables it.
func WithStatsInterval(d time.Duration) Option { return func(h *Hub) { h.statsInterval = d } }

func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithOriginPatterns allows cross-origin handshakes from the given host patterns.
func WithOriginPatterns(patterns []string) Option {
	return func(h *Hub) { h.originPatterns = append([]string(nil), patterns...) }
}

func New(opts ...Option) *Hub {
	h := &Hub{
		clients:         make(map[room.ConnID]*client),
		register:        make(chan *client),
		unregister:      make(chan *client),
		incoming:        make(chan inbound),
		done:            make(chan struct{}),
		maxMessageBytes: 4096,
		sendBuffer:      64,
		pingInterval:    30 * time.Second,
		writeTimeout:    10 * time.Second,
		newID:           func() room.ConnID { return room.ConnID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes events until ctx is cancelled. It must be started exactly once.
func (h *Hub) Run(ctx context.Context, handler Handler) {
	h.handler = handler
	var stats <-chan time.Time
	if h.statsInterval > 0 {
		t := time.NewTicker(h.statsInterval)
		defer t.Stop()
		stats = t.C
	}
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c.id] = c
			obslog.L().Info("hub_client_connect", zap.String("conn", string(c.id)), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			cur, ok := h.clients[c.id]
			if !ok || cur != c {
				continue
			}
			delete(h.clients, c.id)
			c.closeSend()
			h.handler.Disconnect(c.id)
			obslog.L().Info("hub_client_disconnect", zap.String("conn", string(c.id)), zap.Int("clients", len(h.clients)))

		case in := <-h.incoming:
			if cur, ok := h.clients[in.client.id]; !ok || cur != in.client || cur.dropped {
				continue
			}
			_ = h.handler.Dispatch(in.client.id, in.data)

		case <-stats:
			h.logStats()
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for id, c := range h.clients {
		c.closeSend()
		delete(h.clients, id)
	}
}

// Send implements room.Outbox. It never blocks: a client whose buffer is full is dropped and
// disconnected once its read loop notices.
func (h *Hub) Send(conn room.ConnID, ev room.Event) {
	c, ok := h.clients[conn]
	if !ok || c.dropped {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		obslog.L().Error("hub_encode_failed", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	select {
	case c.send <- b:
	default:
		c.dropped = true
		c.closeSend()
		obslog.L().Warn("hub_client_drop",
			zap.String("conn", string(conn)),
			zap.String("event", ev.Name),
			zap.Int("buffer", cap(c.send)),
		)
	}
}

// Clients returns the number of registered connections. Only safe from the Run goroutine.
func (h *Hub) Clients() int { return len(h.clients) }

func (h *Hub) logStats() {
	snaps := h.handler.Snapshots()
	obslog.L().Info("rooms_stats", zap.Int("sessions", len(snaps)), zap.Int("clients", len(h.clients)))
	for _, s := range snaps {
		seats := []byte("__")
		if s.White {
			seats[0] = 'W'
		}
		if s.Black {
			seats[1] = 'B'
		}
		obslog.L().Info("rooms_stats_session",
			zap.String("game_id", s.ID),
			zap.String("state", string(s.State)),
			zap.String("players", string(seats)),
			zap.Int("spectators", s.Spectators),
		)
	}
}

// ServeHTTP upgrades the request and blocks for the lifetime of the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		obslog.L().Warn("hub_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(h.maxMessageBytes)

	c := &client{
		id:   h.newID(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.writeLoop(ctx)
	c.readLoop(ctx)
}
