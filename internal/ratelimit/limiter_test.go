package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AdmitWithinCapacity(t *testing.T) {
	t.Parallel()

	limiter := New(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		decision := limiter.Admit("alice", now)
		require.True(t, decision.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, 2-i, decision.Remaining)
	}

	decision := limiter.Admit("alice", now.Add(time.Second))
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
}

func TestLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	limiter := New(3, time.Minute)
	start := time.Now()

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Admit("alice", start).Allowed)
	}
	require.False(t, limiter.Admit("alice", start.Add(time.Second)).Allowed)

	// Just past the window the original three have aged out.
	decision := limiter.Admit("alice", start.Add(61*time.Second))
	assert.True(t, decision.Allowed)
	assert.Equal(t, 2, decision.Remaining)
}

func TestLimiter_RejectionsNotRecorded(t *testing.T) {
	t.Parallel()

	limiter := New(1, time.Minute)
	start := time.Now()

	require.True(t, limiter.Admit("alice", start).Allowed)

	// Hammering while rejected must not push the reset further out.
	for i := 1; i <= 30; i++ {
		require.False(t, limiter.Admit("alice", start.Add(time.Duration(i)*time.Second)).Allowed)
	}

	assert.True(t, limiter.Admit("alice", start.Add(61*time.Second)).Allowed)
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := New(1, time.Minute)
	now := time.Now()

	require.True(t, limiter.Admit("alice", now).Allowed)
	require.False(t, limiter.Admit("alice", now).Allowed)

	assert.True(t, limiter.Admit("bob", now).Allowed)
}

func TestLimiter_ResetAtAdvancesWithNow(t *testing.T) {
	t.Parallel()

	limiter := New(1, time.Minute)
	now := time.Now()

	first := limiter.Admit("alice", now)
	require.True(t, first.Allowed)
	assert.Equal(t, now.Add(time.Minute), first.ResetAt)

	second := limiter.Admit("alice", now.Add(10*time.Second))
	require.False(t, second.Allowed)
	assert.Equal(t, now.Add(70*time.Second), second.ResetAt)
}

func TestLimiter_SweepEvictsIdleIdentities(t *testing.T) {
	t.Parallel()

	limiter := New(5, time.Minute)
	start := time.Now()

	limiter.Admit("alice", start)
	limiter.Admit("bob", start.Add(30*time.Second))
	require.Equal(t, 2, limiter.Tracked())

	// Alice's only timestamp is outside the window, Bob's is still inside.
	removed := limiter.Sweep(start.Add(70 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, limiter.Tracked())

	removed = limiter.Sweep(start.Add(2 * time.Hour))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, limiter.Tracked())
}

func TestLimiter_SweepKeepsActiveQuota(t *testing.T) {
	t.Parallel()

	limiter := New(2, time.Minute)
	start := time.Now()

	require.True(t, limiter.Admit("alice", start).Allowed)
	require.True(t, limiter.Admit("alice", start.Add(50*time.Second)).Allowed)

	limiter.Sweep(start.Add(55 * time.Second))

	// Both timestamps are still inside the window, so the third request
	// within it is rejected.
	assert.False(t, limiter.Admit("alice", start.Add(58*time.Second)).Allowed)
}
