package ratelimit

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

type window struct {
	start  time.Time
	length time.Duration
	count  int
}

// Memory is a process-local Limiter backed by a mutex-guarded map. The
// window for a key opens at its first request and resets once the window
// length has elapsed. Counters for keys that have gone quiet are evicted
// on a periodic cleanup pass, so the map does not grow unbounded.
//
// Like the in-memory replay store, this only upholds the atomicity
// contract within one process; multi-instance deployments should use
// Redis so all instances share one set of counters.
type Memory struct {
	mu          sync.Mutex
	windows     map[string]*window
	lastCleanup time.Time

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		windows:     make(map[string]*window),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string, p Policy) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= w.length {
		w = &window{start: now, length: p.Window}
		m.windows[key] = w
	}

	m.maybeCleanup(now)

	if w.count >= p.Limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: w.start.Add(w.length).Sub(now),
		}, nil
	}

	w.count++
	return Decision{Allowed: true, Remaining: p.Limit - w.count}, nil
}

// maybeCleanup drops windows that have already elapsed. Runs at most
// once per cleanupInterval; caller holds the lock.
func (m *Memory) maybeCleanup(now time.Time) {
	if now.Sub(m.lastCleanup) < cleanupInterval {
		return
	}
	m.lastCleanup = now

	for key, w := range m.windows {
		if now.Sub(w.start) >= w.length {
			delete(m.windows, key)
		}
	}
}
