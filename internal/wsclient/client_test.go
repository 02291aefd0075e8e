package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/chess-rooms/internal/hub"
	"github.com/park285/chess-rooms/internal/room"
	"github.com/park285/chess-rooms/internal/rules"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// echoServer answers every frame with {"event":"echo","data":<event name>}.
// The first dropFirst connections are closed right after the handshake.
func echoServer(t *testing.T, dropFirst int32) (*httptest.Server, *int32) {
	t.Helper()
	var accepted int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		if n := atomic.AddInt32(&accepted, 1); n <= dropFirst {
			conn.Close(websocket.StatusGoingAway, "bye")
			return
		}
		for {
			var f room.Frame
			if err := wsjson.Read(r.Context(), conn, &f); err != nil {
				return
			}
			if err := wsjson.Write(r.Context(), conn, room.Event{Name: "echo", Data: f.Event}); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &accepted
}

func wsURL(srv *httptest.Server) string { return "ws" + strings.TrimPrefix(srv.URL, "http") }

func waitFrame(t *testing.T, ch <-chan room.Frame) room.Frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for frame")
		return room.Frame{}
	}
}

func TestSendAndReceive(t *testing.T) {
	srv, _ := echoServer(t, 0)
	c := New(wsURL(srv), WithReconnect(0))
	frames := make(chan room.Frame, 4)
	c.OnMessage(func(f room.Frame) { frames <- f })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.State() != StateConnected {
		t.Fatalf("state = %v", c.State())
	}
	if err := c.Send(ctx, "createGame", "abc"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if f := waitFrame(t, frames); f.Event != "echo" || string(f.Data) != `"createGame"` {
		t.Fatalf("frame = %+v", f)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Send(ctx, "joinGame", "abc"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send after close = %v", err)
	}
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	srv, accepted := echoServer(t, 1)
	c := New(wsURL(srv), WithReconnect(3))
	connected := make(chan struct{}, 4)
	c.OnStateChange(func(s State) {
		if s == StateConnected {
			connected <- struct{}{}
		}
	})
	frames := make(chan room.Frame, 4)
	c.OnMessage(func(f room.Frame) { frames <- f })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-connected:
		case <-ctx.Done():
			t.Fatalf("connected %d times, accepted %d", i, atomic.LoadInt32(accepted))
		}
	}
	if err := c.Send(ctx, "requestBoardState", "abc"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if f := waitFrame(t, frames); string(f.Data) != `"requestBoardState"` {
		t.Fatalf("frame = %+v", f)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseAbortsPendingReconnect(t *testing.T) {
	var requests int32
	hanging := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			conn, err := websocket.Accept(w, r, nil)
			if err != nil {
				return
			}
			conn.Close(websocket.StatusGoingAway, "bye")
			return
		}
		// never answer the handshake
		select {
		case hanging <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(wsURL(srv), WithReconnect(3))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-hanging:
	case <-ctx.Done():
		t.Fatalf("reconnect dial never reached the server")
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	began := time.Now()
	if err := c.Close(closeCtx); err != nil {
		t.Fatalf("Close blocked on the reconnect dial: %v", err)
	}
	if d := time.Since(began); d > time.Second {
		t.Fatalf("Close took %v", d)
	}
}

func TestConnectFailureWithoutReconnect(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", WithReconnect(0))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err == nil {
		t.Fatalf("expected dial error")
	}
	if c.State() != StateFailed {
		t.Fatalf("state = %v", c.State())
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestAgainstHub(t *testing.T) {
	h := hub.New()
	c := room.NewCoordinator(room.NewRegistry(), rules.NewChessEngine(), h)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, c)
	srv := httptest.NewServer(h)
	defer srv.Close()

	cl := New(wsURL(srv), WithReconnect(0))
	frames := make(chan room.Frame, 8)
	cl.OnMessage(func(f room.Frame) { frames <- f })
	if err := cl.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cl.Close(context.Background())

	if err := cl.Send(ctx, "createGame", "lobby"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if f := waitFrame(t, frames); f.Event != "playerRole" || string(f.Data) != `"W"` {
		t.Fatalf("first frame = %+v", f)
	}
	if f := waitFrame(t, frames); f.Event != "gameCreated" {
		t.Fatalf("second frame = %+v", f)
	}
}

func TestStateString(t *testing.T) {
	if StateReconnecting.String() != "reconnecting" || State(42).String() != "disconnected" {
		t.Fatalf("unexpected state names")
	}
}
