package play

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is a running engine together with who owns it.
type Session struct {
	ID        uuid.UUID
	QuizID    uuid.UUID
	PlayerID  uuid.UUID
	Config    TimeConfig
	Total     int
	CreatedAt time.Time

	engine *Engine
}

// Engine returns the session's engine.
func (s *Session) Engine() *Engine { return s.engine }

// Registry indexes live sessions by id and by player. A player has at most
// one live session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	byPlayer map[uuid.UUID]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		byPlayer: make(map[uuid.UUID]uuid.UUID),
	}
}

// Add indexes s and returns the session it displaced for the same player, if any.
func (r *Registry) Add(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev *Session
	if id, ok := r.byPlayer[s.PlayerID]; ok && id != s.ID {
		prev = r.sessions[id]
	}
	r.sessions[s.ID] = s
	r.byPlayer[s.PlayerID] = s.ID
	return prev
}

func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ForPlayer returns the player's live session.
func (r *Registry) ForPlayer(playerID uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops a session. The player index is only cleared if it still
// points at this session.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if r.byPlayer[s.PlayerID] == id {
		delete(r.byPlayer, s.PlayerID)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns a snapshot of live sessions.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
