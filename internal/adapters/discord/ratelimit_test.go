package discord

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserLimiter_PerUserBurst(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newUserLimiter(time.Minute, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "cada usuario tiene su cupo")

	now = now.Add(30 * time.Second)
	assert.False(t, l.Allow("a"))
	now = now.Add(31 * time.Second)
	assert.True(t, l.Allow("a"))
}

func TestUserLimiter_Sweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newUserLimiter(time.Second, 1)
	l.now = func() time.Time { return now }

	for i := 0; i <= 1024; i++ {
		l.Allow(fmt.Sprint(i))
	}
	now = now.Add(l.ttl + time.Second)
	l.Allow("fresh")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.lim, 1)
	assert.Contains(t, l.lim, "fresh")
}
