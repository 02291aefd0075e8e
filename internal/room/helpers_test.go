package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/park285/chess-rooms/internal/rules"
	"go.uber.org/zap"
)

// sink records every event per connection.
type sink struct {
	got map[ConnID][]Event
}

func newSink() *sink { return &sink{got: make(map[ConnID][]Event)} }

func (s *sink) Send(c ConnID, ev Event) { s.got[c] = append(s.got[c], ev) }

func (s *sink) names(c ConnID) []string {
	out := make([]string, 0, len(s.got[c]))
	for _, ev := range s.got[c] {
		out = append(out, ev.Name)
	}
	return out
}

func (s *sink) reset() { s.got = make(map[ConnID][]Event) }

func (s *sink) find(c ConnID, name string) (Event, bool) {
	for _, ev := range s.got[c] {
		if ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}

func (s *sink) total() int {
	n := 0
	for _, evs := range s.got {
		n += len(evs)
	}
	return n
}

type recordingObserver struct {
	changed  []Snapshot
	closed   []string
	finished []Finished
}

func (o *recordingObserver) SessionChanged(s Snapshot) { o.changed = append(o.changed, s) }
func (o *recordingObserver) SessionClosed(id string)   { o.closed = append(o.closed, id) }
func (o *recordingObserver) GameFinished(f Finished)   { o.finished = append(o.finished, f) }

// fakePos is the scripted engine's position: the number of plies played.
type fakePos struct{ ply int }

// fakeEngine accepts every move except those listed in illegal and ends the game after endAfter
// plies when endAfter > 0.
type fakeEngine struct {
	illegal  map[string]string
	endAfter int
	term     rules.Termination
}

func (e *fakeEngine) Initial() rules.Position { return fakePos{} }

func (e *fakeEngine) TryApply(pos rules.Position, mv rules.Move) (rules.Position, error) {
	p := pos.(fakePos)
	if reason, bad := e.illegal[mv.UCI()]; bad {
		return nil, &rules.IllegalMoveError{Move: mv.UCI(), Reason: reason}
	}
	return fakePos{ply: p.ply + 1}, nil
}

func (e *fakeEngine) Terminal(pos rules.Position) (bool, rules.Termination) {
	p := pos.(fakePos)
	if e.endAfter > 0 && p.ply >= e.endAfter {
		return true, e.term
	}
	return false, rules.Termination{}
}

func (e *fakeEngine) Turn(pos rules.Position) rules.Side {
	if pos.(fakePos).ply%2 == 0 {
		return rules.White
	}
	return rules.Black
}

func (e *fakeEngine) Serialize(pos rules.Position) string {
	return fmt.Sprintf("ply=%d", pos.(fakePos).ply)
}

func (e *fakeEngine) Deserialize(s string) (rules.Position, error) {
	var n int
	if _, err := fmt.Sscanf(s, "ply=%d", &n); err != nil {
		return nil, rules.ErrBadPosition
	}
	return fakePos{ply: n}, nil
}

type fixture struct {
	reg *Registry
	out *sink
	obs *recordingObserver
	c   *Coordinator
}

func newFixture(t *testing.T, engine rules.Engine, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{reg: NewRegistry(), out: newSink(), obs: &recordingObserver{}}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	base := []Option{
		WithObserver(f.obs),
		WithLogger(zap.NewNop()),
		WithClock(func() time.Time { clock = clock.Add(time.Second); return clock }),
	}
	f.c = NewCoordinator(f.reg, engine, f.out, append(base, opts...)...)
	return f
}

// started creates id with w as White and b as Black and starts it.
func (f *fixture) started(t *testing.T, id string, w, b ConnID) *Session {
	t.Helper()
	if err := f.c.CreateGame(w, id); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if err := f.c.JoinGame(b, id); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if err := f.c.StartGame(w, id); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	s, err := f.reg.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	f.out.reset()
	return s
}

func equalNames(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
