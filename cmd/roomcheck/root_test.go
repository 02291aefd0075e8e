package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-rooms/internal/hub"
	"github.com/park285/chess-rooms/internal/room"
	"github.com/park285/chess-rooms/internal/rules"
)

func startHub(t *testing.T) string {
	t.Helper()
	h := hub.New()
	c := room.NewCoordinator(room.NewRegistry(), rules.NewChessEngine(), h)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx, c)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSmokeCommand(t *testing.T) {
	url := startHub(t)
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"smoke", "--url", url, "--game", "demo", "--timeout", "5s"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("smoke: %v\n%s", err, out.String())
	}
	got := out.String()
	for _, want := range []string{`[white] playerRole "W"`, `[black] playerRole "B"`, "[black] move ", "smoke ok: game=demo"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestSmokeFailsOnDuplicateGame(t *testing.T) {
	url := startHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	holder, err := connect(ctx, &printer{w: &out}, url, "holder")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer holder.client.Close(context.Background())
	if err := holder.send(ctx, room.EventCreateGame, "dup"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := holder.await(ctx, room.EventGameCreated); err != nil {
		t.Fatalf("await: %v", err)
	}

	err = runSmoke(ctx, &out, url, "dup")
	if err == nil || !strings.Contains(err.Error(), "Game already exists") {
		t.Fatalf("err = %v", err)
	}
}

func TestWatchRequiresGameID(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"watch"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected argument error")
	}
}
