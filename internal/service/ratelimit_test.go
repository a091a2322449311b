package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newFrozenLimiter(capacity int, window time.Duration) (*WindowLimiter, *time.Time) {
	l := NewWindowLimiter(capacity, window)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }
	return l, &now
}

func TestWindowLimiterCapacity(t *testing.T) {
	l, _ := newFrozenLimiter(30, time.Minute)
	defer l.Stop()

	for i := 0; i < 30; i++ {
		assert.True(t, l.Admit("alice"), "event %d should be admitted", i+1)
	}
	assert.False(t, l.Admit("alice"), "31st event in the window must be rejected")
}

func TestWindowLimiterResetsAfterWindow(t *testing.T) {
	l, now := newFrozenLimiter(2, time.Minute)
	defer l.Stop()

	assert.True(t, l.Admit("alice"))
	assert.True(t, l.Admit("alice"))
	assert.False(t, l.Admit("alice"))

	*now = now.Add(time.Minute + time.Second)
	assert.True(t, l.Admit("alice"), "new window should admit again")
}

func TestWindowLimiterPerSender(t *testing.T) {
	l, _ := newFrozenLimiter(1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Admit("alice"))
	assert.False(t, l.Admit("alice"))
	assert.True(t, l.Admit("bob"), "limits are tracked per sender")
}

func TestWindowLimiterSweepEvictsExpired(t *testing.T) {
	l, now := newFrozenLimiter(5, time.Minute)
	defer l.Stop()

	l.Admit("alice")
	l.Admit("bob")

	*now = now.Add(2 * time.Minute)
	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.senders, "expired windows should be swept")
}

func TestWindowLimiterDefaults(t *testing.T) {
	l := NewWindowLimiter(0, 0)
	defer l.Stop()

	assert.Equal(t, DefaultRateLimitCapacity, l.capacity)
	assert.Equal(t, DefaultRateLimitWindow, l.window)
}
