package replay

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store backed by a mutex-guarded map.
// It satisfies the atomicity contract within a single process only; a
// multi-instance deployment needs RedisStore so that all instances see
// the same consumed set.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // fingerprint -> expiry

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// ConsumeOnce implements Store. Expired entries are treated as absent at
// lookup time, so correctness never depends on the janitor running.
func (s *MemoryStore) ConsumeOnce(_ context.Context, fingerprint string, ttl time.Duration) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.entries[fingerprint]; ok && now.Before(exp) {
		return ErrReplayed
	}
	s.entries[fingerprint] = now.Add(ttl)
	return nil
}

// StartJanitor sweeps expired entries every interval until ctx is done.
// The sweep only bounds memory growth; membership checks are already
// expiry-aware.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemoryStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for fp, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, fp)
		}
	}
}

// Len reports the number of stored entries, including ones that have
// expired but not yet been swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
