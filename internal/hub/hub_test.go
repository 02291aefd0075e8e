package hub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-rooms/internal/room"
	"github.com/park285/chess-rooms/internal/rules"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startServer(t *testing.T, opts ...Option) (*httptest.Server, func()) {
	t.Helper()
	h := New(opts...)
	coord := room.NewCoordinator(room.NewRegistry(), rules.NewChessEngine(), h)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx, coord)
		close(done)
	}()
	srv := httptest.NewServer(h)
	return srv, func() {
		cancel()
		<-done
		srv.Close()
	}
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func expect(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) frame {
	t.Helper()
	var f frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("waiting for %s: %v", event, err)
	}
	if f.Event != event {
		t.Fatalf("expected %s, got %s (%s)", event, f.Event, f.Data)
	}
	return f
}

func TestHubEndToEnd(t *testing.T) {
	srv, stop := startServer(t)
	defer stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	white := dial(t, ctx, srv)
	defer white.CloseNow()
	black := dial(t, ctx, srv)
	defer black.CloseNow()

	send(t, ctx, white, "createGame", "abc123")
	if f := expect(t, ctx, white, "playerRole"); string(f.Data) != `"W"` {
		t.Fatalf("white role = %s", f.Data)
	}
	if f := expect(t, ctx, white, "gameCreated"); string(f.Data) != `{"gameId":"abc123"}` {
		t.Fatalf("gameCreated = %s", f.Data)
	}

	send(t, ctx, black, "joinGame", "abc123")
	if f := expect(t, ctx, black, "playerRole"); string(f.Data) != `"B"` {
		t.Fatalf("black role = %s", f.Data)
	}
	expect(t, ctx, white, "opponentJoined")

	send(t, ctx, black, "startGame", "abc123")
	for _, c := range []*websocket.Conn{white, black} {
		expect(t, ctx, c, "gameStarted")
		if f := expect(t, ctx, c, "boardState"); !strings.Contains(string(f.Data), rules.StartFEN) {
			t.Fatalf("boardState = %s", f.Data)
		}
	}

	send(t, ctx, white, "move", map[string]any{"gameId": "abc123", "move": map[string]string{"from": "e2", "to": "e4", "promotion": "q"}})
	for _, c := range []*websocket.Conn{white, black} {
		f := expect(t, ctx, c, "move")
		if !strings.Contains(string(f.Data), `"from":"e2"`) {
			t.Fatalf("move relay = %s", f.Data)
		}
	}

	send(t, ctx, white, "move", map[string]any{"gameId": "abc123", "move": map[string]string{"from": "d2", "to": "d4"}})
	if f := expect(t, ctx, white, "error"); string(f.Data) != `"Not your turn"` {
		t.Fatalf("error = %s", f.Data)
	}

	white.Close(websocket.StatusNormalClosure, "bye")
	if f := expect(t, ctx, black, "playerDisconnected"); string(f.Data) != `"White"` {
		t.Fatalf("playerDisconnected = %s", f.Data)
	}
}

func TestHubMalformedFrame(t *testing.T) {
	srv, stop := startServer(t)
	defer stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, srv)
	defer conn.CloseNow()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{nope")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := expect(t, ctx, conn, "error"); string(f.Data) != `"Malformed request"` {
		t.Fatalf("error = %s", f.Data)
	}
	// connection survives a bad frame
	send(t, ctx, conn, "joinGame", "ghost")
	if f := expect(t, ctx, conn, "error"); string(f.Data) != `"Game not found"` {
		t.Fatalf("error = %s", f.Data)
	}
}

func TestSendDropsSlowClient(t *testing.T) {
	h := New(WithSendBuffer(1))
	c := &client{id: "slow", hub: h, send: make(chan []byte, 1)}
	h.clients[c.id] = c

	h.Send("slow", room.Event{Name: room.EventGameStarted})
	if c.dropped {
		t.Fatalf("dropped before buffer filled")
	}
	h.Send("slow", room.Event{Name: room.EventBoardState, Data: "x"})
	if !c.dropped || !c.closed {
		t.Fatalf("expected client to be dropped")
	}
	// buffered frame is still readable, then the channel reports closed
	if msg, ok := <-c.send; !ok || !strings.Contains(string(msg), "gameStarted") {
		t.Fatalf("first frame = %s %v", msg, ok)
	}
	if _, ok := <-c.send; ok {
		t.Fatalf("send channel still open")
	}
	// further sends are ignored
	h.Send("slow", room.Event{Name: room.EventGameStarted})
}

func TestSendUnknownConnIsNoop(t *testing.T) {
	h := New()
	h.Send("ghost", room.Event{Name: room.EventGameStarted})
	if h.Clients() != 0 {
		t.Fatalf("clients = %d", h.Clients())
	}
}
