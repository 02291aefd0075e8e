package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/park285/chess-rooms/internal/room"
	"github.com/park285/chess-rooms/internal/rules"
	"github.com/park285/chess-rooms/internal/wsclient"
	"github.com/spf13/cobra"
)

type globalOpts struct {
	url     string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}
	rootCmd := &cobra.Command{
		Use:           "roomcheck",
		Short:         "Smoke-test a chess-rooms WebSocket endpoint",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.url, "url", "ws://localhost:3000/ws", "WebSocket endpoint")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Overall deadline")

	rootCmd.AddCommand(newSmokeCmd(opts), newWatchCmd(opts))
	return rootCmd
}

func newSmokeCmd(opts *globalOpts) *cobra.Command {
	var gameID string
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Create a game, join it from a second connection, start it and play e2e4",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(gameID) == "" {
				gameID = fmt.Sprintf("smoke-%d", time.Now().UnixNano())
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runSmoke(ctx, cmd.OutOrStdout(), opts.url, gameID)
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "Game id (default: generated)")
	return cmd
}

func newWatchCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <game-id>",
		Short: "Join a game and print every frame until the deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runWatch(ctx, cmd.OutOrStdout(), opts.url, args[0])
		},
	}
	return cmd
}

// player is one smoke connection with a queue of the frames it received.
type player struct {
	name   string
	client *wsclient.Client
	frames chan room.Frame
}

func connect(ctx context.Context, out *printer, url, name string) (*player, error) {
	p := &player{
		name:   name,
		client: wsclient.New(url, wsclient.WithReconnect(0)),
		frames: make(chan room.Frame, 32),
	}
	p.client.OnMessage(func(f room.Frame) {
		out.frame(name, f)
		select {
		case p.frames <- f:
		default:
		}
	})
	if err := p.client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%s connect: %w", name, err)
	}
	return p, nil
}

func (p *player) send(ctx context.Context, event string, data any) error {
	if err := p.client.Send(ctx, event, data); err != nil {
		return fmt.Errorf("%s send %s: %w", p.name, event, err)
	}
	return nil
}

// await reads frames until one named event arrives. An error frame aborts.
func (p *player) await(ctx context.Context, event string) (room.Frame, error) {
	for {
		select {
		case <-ctx.Done():
			return room.Frame{}, fmt.Errorf("%s waiting for %s: %w", p.name, event, ctx.Err())
		case f := <-p.frames:
			if f.Event == event {
				return f, nil
			}
			if f.Event == room.EventError {
				return f, fmt.Errorf("%s got error %s while waiting for %s", p.name, f.Data, event)
			}
		}
	}
}

func runSmoke(ctx context.Context, w io.Writer, url, gameID string) error {
	out := &printer{w: w}
	white, err := connect(ctx, out, url, "white")
	if err != nil {
		return err
	}
	defer white.client.Close(context.Background())
	black, err := connect(ctx, out, url, "black")
	if err != nil {
		return err
	}
	defer black.client.Close(context.Background())

	move := room.MoveRequest{GameID: gameID, Move: &rules.Move{From: "e2", To: "e4"}}
	steps := []func() error{
		sendStep(ctx, white, room.EventCreateGame, gameID),
		awaitStep(ctx, white, room.EventGameCreated),
		sendStep(ctx, black, room.EventJoinGame, gameID),
		awaitStep(ctx, white, room.EventOpponentJoined),
		sendStep(ctx, white, room.EventStartGame, gameID),
		awaitStep(ctx, black, room.EventBoardState),
		sendStep(ctx, white, room.EventMove, move),
		awaitStep(ctx, black, room.EventMove),
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	out.line("smoke ok: game=%s", gameID)
	return nil
}

func sendStep(ctx context.Context, p *player, event string, data any) func() error {
	return func() error { return p.send(ctx, event, data) }
}

func awaitStep(ctx context.Context, p *player, event string) func() error {
	return func() error {
		_, err := p.await(ctx, event)
		return err
	}
}

func runWatch(ctx context.Context, w io.Writer, url, gameID string) error {
	out := &printer{w: w}
	p, err := connect(ctx, out, url, "watch")
	if err != nil {
		return err
	}
	defer p.client.Close(context.Background())
	if err := p.send(ctx, room.EventJoinGame, gameID); err != nil {
		return err
	}
	<-ctx.Done()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil
	}
	return ctx.Err()
}

// printer serializes output from the client callbacks.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) frame(who string, f room.Frame) {
	data := string(f.Data)
	if data == "" {
		data = "-"
	}
	p.line("[%s] %s %s", who, f.Event, data)
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}
