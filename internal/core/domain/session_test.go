package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{ID: "s1", LastUsed: now.Add(-10 * time.Minute)}

	assert.True(t, s.Expired(now, 5*time.Minute))
	assert.False(t, s.Expired(now, 30*time.Minute))
	assert.False(t, s.Expired(now, 0))
}

func TestServiceStatus_Healthy(t *testing.T) {
	s := ServiceStatus{
		Embedding:   ComponentStatus{Status: StatusHealthy},
		VectorStore: ComponentStatus{Status: StatusHealthy},
		Generation:  ComponentStatus{Status: StatusUnavailable},
	}
	assert.True(t, s.Healthy())

	s.VectorStore.Status = StatusUnavailable
	assert.False(t, s.Healthy())
}
