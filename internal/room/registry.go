package room

import (
	"sort"
)

// Registry owns every live Session. It is not safe for concurrent use; the hub loop is its only
// caller.
type Registry struct {
	sessions map[string]*Session
	// conn -> ids of sessions it is a member of
	byConn map[ConnID]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byConn:   make(map[ConnID]map[string]struct{}),
	}
}

// Create stores s under s.ID; a live id is never overwritten.
func (r *Registry) Create(s *Session) error {
	if _, ok := r.sessions[s.ID]; ok {
		return ErrDuplicateSession
	}
	r.sessions[s.ID] = s
	return nil
}

// Replace stores s and returns the session it displaced, if any. Index entries of the displaced
// session are dropped.
func (r *Registry) Replace(s *Session) *Session {
	old := r.sessions[s.ID]
	if old != nil {
		r.unindex(old)
	}
	r.sessions[s.ID] = s
	return old
}

func (r *Registry) Get(id string) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.sessions[id]
	return ok
}

func (r *Registry) Remove(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	r.unindex(s)
	delete(r.sessions, id)
}

// Attach records that c belongs to session id.
func (r *Registry) Attach(c ConnID, id string) {
	set := r.byConn[c]
	if set == nil {
		set = make(map[string]struct{})
		r.byConn[c] = set
	}
	set[id] = struct{}{}
}

// Detach forgets the c -> id association.
func (r *Registry) Detach(c ConnID, id string) {
	set := r.byConn[c]
	if set == nil {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.byConn, c)
	}
}

// SessionsOf returns the ids c is a member of, sorted.
func (r *Registry) SessionsOf(c ConnID) []string {
	set := r.byConn[c]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int { return len(r.sessions) }

// Each calls fn for every live session in id order.
func (r *Registry) Each(fn func(s *Session)) {
	for _, id := range r.IDs() {
		fn(r.sessions[id])
	}
}

// IDs returns live session ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) unindex(s *Session) {
	for _, m := range s.members {
		r.Detach(m, s.ID)
	}
}
