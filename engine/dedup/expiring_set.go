package dedup

import (
	"sync"
	"time"
)

// expiringSet is a mutex-guarded set with per-key TTL and atomic
// set-if-absent, matching SETNX+EXPIRE semantics.
type expiringSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func newExpiringSet() *expiringSet {
	return &expiringSet{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// setIfAbsent adds the key and reports true when it was not already live.
func (s *expiringSet) setIfAbsent(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.entries[key]; ok && now.Before(exp) {
		return false
	}
	s.entries[key] = now.Add(ttl)

	// Opportunistic sweep keeps the map from growing unbounded.
	if len(s.entries) > 4096 {
		for k, exp := range s.entries {
			if now.After(exp) {
				delete(s.entries, k)
			}
		}
	}
	return true
}

func (s *expiringSet) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
