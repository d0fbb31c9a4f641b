package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/domain"
)

func newTestRegistry(ttl time.Duration, maxTurns int) (*SessionRegistry, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewSessionRegistry(ttl, maxTurns)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestSessionRegistry_GetOrCreate(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 10)

	t.Run("empty id creates new session", func(t *testing.T) {
		s := r.GetOrCreate("", "doc1")
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, "doc1", s.DocumentID)
	})

	t.Run("supplied id is kept", func(t *testing.T) {
		s := r.GetOrCreate("fixed", "")
		assert.Equal(t, "fixed", s.ID)

		again := r.GetOrCreate("fixed", "other")
		assert.Equal(t, "fixed", again.ID)
		assert.Empty(t, again.DocumentID, "existing session is returned unchanged")
	})

	assert.Equal(t, 2, r.Len())
}

func TestSessionRegistry_AppendAndTrim(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 2)
	s := r.GetOrCreate("s1", "")

	for _, c := range []string{"one", "two", "three"} {
		require.NoError(t, r.Append(s.ID,
			domain.ChatMessage{Role: domain.RoleUser, Content: c},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: "re: " + c},
		))
	}

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 4, "two turns of user and assistant messages")
	assert.Equal(t, domain.RoleUser, got.History[0].Role)
	assert.Equal(t, "two", got.History[0].Content)
	assert.Equal(t, "re: three", got.History[3].Content)

	assert.ErrorIs(t, r.Append("missing"), domain.ErrSessionNotFound)
}

func TestSessionRegistry_GetReturnsCopy(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 10)
	r.GetOrCreate("s1", "")
	require.NoError(t, r.Append("s1", domain.ChatMessage{Role: domain.RoleUser, Content: "hi"}))

	got, err := r.Get("s1")
	require.NoError(t, err)
	got.History[0].Content = "changed"

	again, err := r.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.History[0].Content)
}

func TestSessionRegistry_Expiry(t *testing.T) {
	r, now := newTestRegistry(time.Minute, 10)
	r.GetOrCreate("old", "")
	*now = now.Add(2 * time.Minute)
	r.GetOrCreate("fresh", "")

	_, err := r.Get("old")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())

	_, err = r.Get("fresh")
	assert.NoError(t, err)
}

func TestSessionRegistry_Evict(t *testing.T) {
	r, _ := newTestRegistry(time.Minute, 10)
	r.GetOrCreate("s1", "")

	require.NoError(t, r.Evict("s1"))
	assert.ErrorIs(t, r.Evict("s1"), domain.ErrSessionNotFound)
}

func TestSessionRegistry_Janitor(t *testing.T) {
	r := NewSessionRegistry(time.Millisecond, 10)
	r.GetOrCreate("s1", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartJanitor(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}
