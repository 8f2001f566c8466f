package realtime

import (
	"sync"
	"time"
)

// rateLimiter enforces per-(client,action) ceilings over a fixed 60 second
// window. Counters are created lazily and evicted when their client leaves
// or when they go stale.
// Counters for departed clients that never triggered forgetClient are
// swept every evictEvery calls.
const evictEvery = 512

type rateLimiter struct {
	mu       sync.Mutex
	counters map[string]*rateCounter
	window   time.Duration
	calls    int
}

type rateCounter struct {
	count         int
	windowResetAt time.Time
}

func newRateLimiter(window time.Duration) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		counters: make(map[string]*rateCounter),
		window:   window,
	}
}

// allow counts one request for clientID/action and reports whether it is
// within limit.
func (rl *rateLimiter) allow(clientID, action string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now()
	key := clientID + ":" + action

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.calls++
	if rl.calls >= evictEvery {
		rl.calls = 0
		rl.evictStaleLocked(now)
	}

	counter, ok := rl.counters[key]
	if !ok || now.After(counter.windowResetAt) {
		rl.counters[key] = &rateCounter{count: 1, windowResetAt: now.Add(rl.window)}
		return true
	}

	counter.count++
	return counter.count <= limit
}

// forgetClient drops all counters belonging to one client.
func (rl *rateLimiter) forgetClient(clientID string) {
	prefix := clientID + ":"

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key := range rl.counters {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(rl.counters, key)
		}
	}
}

// evictStale removes counters whose window expired more than the staleness
// margin ago.
func (rl *rateLimiter) evictStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.evictStaleLocked(time.Now())
}

func (rl *rateLimiter) evictStaleLocked(now time.Time) {
	cutoff := now.Add(-rl.window)

	for key, counter := range rl.counters {
		if counter.windowResetAt.Before(cutoff) {
			delete(rl.counters, key)
		}
	}
}
