package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedWindowRateLimiter(t *testing.T) {
	clock := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	rl := NewFixedWindowLimiter(2, 5*time.Second)
	rl.now = func() time.Time { return clock }

	ok, _ := rl.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok)

	clock = clock.Add(time.Second)
	ok, retry := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 4*time.Second, retry)

	ok, _ = rl.Allow("10.0.0.2")
	assert.True(t, ok, "keys are limited independently")

	clock = clock.Add(4 * time.Second)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok, "a new window starts after the old one ends")
}

func TestFixedWindowRateLimiter_Evict(t *testing.T) {
	clock := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	rl := NewFixedWindowLimiter(1, time.Second)
	rl.now = func() time.Time { return clock }

	rl.Allow("a")
	clock = clock.Add(500 * time.Millisecond)
	rl.Allow("b")

	clock = clock.Add(600 * time.Millisecond)
	rl.evict()

	assert.NotContains(t, rl.clients, "a")
	assert.Contains(t, rl.clients, "b")
}
