// Package ratelimit implements a local, single-process sliding-window
// admission limiter keyed by caller identity.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the unit of work was admitted.
	Allowed bool

	// Remaining is the quota left in the current window after this call.
	// Zero when the call was rejected.
	Remaining int

	// ResetAt is when a rejected caller can expect quota again.
	ResetAt time.Time
}

// Limiter admits or rejects units of work using a trailing time window of
// fixed length and capacity per identity. It is safe for concurrent use;
// the admission check is O(window capacity) and never blocks on I/O.
type Limiter struct {
	capacity int
	window   time.Duration

	mu      sync.Mutex
	windows map[string][]time.Time
}

// New creates a Limiter admitting at most capacity units per identity
// within any trailing window.
func New(capacity int, window time.Duration) *Limiter {
	return &Limiter{
		capacity: capacity,
		window:   window,
		windows:  make(map[string][]time.Time),
	}
}

// Capacity returns the per-identity capacity of the limiter.
func (l *Limiter) Capacity() int { return l.capacity }

// Window returns the trailing window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Admit checks whether the identity may perform one more unit of work at
// the given instant. Timestamps older than the window are pruned on every
// call. Rejected calls are not recorded, so a caller hammering the
// endpoint does not push its own reset further out.
func (l *Limiter) Admit(identity string, now time.Time) Decision {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.windows[identity]

	// Drop entries that have aged out of the window. Entries are in
	// arrival order, so the first one inside the cutoff ends the scan.
	keep := 0
	for keep < len(stamps) && !stamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		stamps = append(stamps[:0], stamps[keep:]...)
	}

	if len(stamps) >= l.capacity {
		l.windows[identity] = stamps
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   now.Add(l.window),
		}
	}

	stamps = append(stamps, now)
	l.windows[identity] = stamps

	return Decision{
		Allowed:   true,
		Remaining: l.capacity - len(stamps),
		ResetAt:   now.Add(l.window),
	}
}

// Sweep evicts identities whose newest recorded timestamp is older than a
// full window. Without eviction the per-identity map grows without bound
// under many distinct anonymous origins. Returns the number of identities
// removed.
func (l *Limiter) Sweep(now time.Time) int {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for identity, stamps := range l.windows {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.windows, identity)
			removed++
		}
	}
	return removed
}

// Run sweeps idle identities once per window length until the context is
// cancelled. Intended to be started as a goroutine at application start.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

// Tracked returns the number of identities currently holding window state.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
