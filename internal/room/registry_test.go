package room

import (
	"errors"
	"testing"
)

func TestRegistryCreateRejectsLiveID(t *testing.T) {
	r := NewRegistry()
	if err := r.Create(&Session{ID: "g1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create(&Session{ID: "g1"}); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Len())
	}
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistryReverseIndex(t *testing.T) {
	r := NewRegistry()
	a := &Session{ID: "a", members: []ConnID{"c1", "c2"}}
	b := &Session{ID: "b", members: []ConnID{"c1"}}
	_ = r.Create(a)
	_ = r.Create(b)
	r.Attach("c1", "b")
	r.Attach("c1", "a")
	r.Attach("c2", "a")

	if got := r.SessionsOf("c1"); !equalNames(got, "a", "b") {
		t.Fatalf("SessionsOf(c1) = %v", got)
	}
	r.Remove("a")
	if got := r.SessionsOf("c1"); !equalNames(got, "b") {
		t.Fatalf("after Remove SessionsOf(c1) = %v", got)
	}
	if got := r.SessionsOf("c2"); len(got) != 0 {
		t.Fatalf("after Remove SessionsOf(c2) = %v", got)
	}
	r.Detach("c1", "b")
	if got := r.SessionsOf("c1"); len(got) != 0 {
		t.Fatalf("after Detach SessionsOf(c1) = %v", got)
	}
}

func TestRegistryReplaceDropsOldIndex(t *testing.T) {
	r := NewRegistry()
	old := &Session{ID: "g", members: []ConnID{"c1"}}
	_ = r.Create(old)
	r.Attach("c1", "g")

	fresh := &Session{ID: "g", members: []ConnID{"c2"}}
	if prev := r.Replace(fresh); prev != old {
		t.Fatalf("Replace returned %v", prev)
	}
	if got := r.SessionsOf("c1"); len(got) != 0 {
		t.Fatalf("old member still indexed: %v", got)
	}
	s, _ := r.Get("g")
	if s != fresh {
		t.Fatalf("Get returned stale session")
	}
}

func TestRegistryEachOrdered(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		_ = r.Create(&Session{ID: id})
	}
	var seen []string
	r.Each(func(s *Session) { seen = append(seen, s.ID) })
	if !equalNames(seen, "a", "b", "c") {
		t.Fatalf("Each order = %v", seen)
	}
}
