package domain

import "time"

// Session is a chat conversation kept in memory by the session registry.
type Session struct {
	ID         string
	DocumentID string
	History    []ChatMessage
	CreatedAt  time.Time
	LastUsed   time.Time
}

// Expired reports whether the session has been idle longer than ttl.
// A non-positive ttl never expires.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.LastUsed) > ttl
}
