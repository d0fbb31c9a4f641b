package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/logger"
)

// SessionRegistry holds chat sessions in memory.
// Sessions idle longer than the TTL are evicted by Sweep.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	ttl      time.Duration
	maxTurns int
	now      func() time.Time
}

// NewSessionRegistry creates a registry. maxTurns bounds the history kept
// per session, where a turn is a user message and its reply. Non-positive
// values use the defaults.
func NewSessionRegistry(ttl time.Duration, maxTurns int) *SessionRegistry {
	if ttl <= 0 {
		ttl = domain.DefaultSessionTTL
	}
	if maxTurns <= 0 {
		maxTurns = domain.DefaultSessionMaxTurns
	}
	return &SessionRegistry{
		sessions: make(map[string]*domain.Session),
		ttl:      ttl,
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

// Get returns a copy of a live session.
func (r *SessionRegistry) Get(id string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.Expired(r.now(), r.ttl) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return copySession(s), nil
}

// GetOrCreate returns the session with id, creating it when id is empty,
// unknown or expired. A created session keeps the given id when one was
// supplied.
func (r *SessionRegistry) GetOrCreate(id, documentID string) domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if s, ok := r.sessions[id]; ok && !s.Expired(now, r.ttl) {
		return copySession(s)
	}
	if id == "" {
		id = uuid.New().String()
	}
	s := &domain.Session{
		ID:         id,
		DocumentID: documentID,
		CreatedAt:  now,
		LastUsed:   now,
	}
	r.sessions[id] = s
	return copySession(s)
}

// Append adds messages to a session and refreshes its idle timer.
// History beyond maxTurns exchanges is dropped from the front.
func (r *SessionRegistry) Append(id string, msgs ...domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.History = append(s.History, msgs...)
	if over := len(s.History) - 2*r.maxTurns; over > 0 {
		s.History = append([]domain.ChatMessage(nil), s.History[over:]...)
	}
	s.LastUsed = r.now()
	return nil
}

// Evict removes a session.
func (r *SessionRegistry) Evict(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Sweep evicts expired sessions and returns how many were removed.
func (r *SessionRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, s := range r.sessions {
		if s.Expired(now, r.ttl) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions held, expired or not.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartJanitor sweeps every interval until ctx is done.
func (r *SessionRegistry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl / 2
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					logger.Debug("session janitor evicted %d sessions", n)
				}
			}
		}
	}()
}

func copySession(s *domain.Session) domain.Session {
	c := *s
	c.History = append([]domain.ChatMessage(nil), s.History...)
	return c
}
