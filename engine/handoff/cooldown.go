package handoff

import (
	"sync"
	"time"
)

// memCooldown is the in-process fallback view of recent pair handoffs. It
// backs the cycle check when Redis is unreachable and double-covers it when
// Redis is healthy.
type memCooldown struct {
	mu    sync.Mutex
	marks map[string]time.Time
	now   func() time.Time
}

func newMemCooldown() *memCooldown {
	return &memCooldown{
		marks: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (m *memCooldown) key(contactID, pair string) string {
	return contactID + ":" + pair
}

func (m *memCooldown) mark(contactID, pair string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[m.key(contactID, pair)] = m.now()
}

func (m *memCooldown) active(contactID, pair string, window time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.marks[m.key(contactID, pair)]
	if !ok {
		return false
	}
	if m.now().Sub(at) >= window {
		delete(m.marks, m.key(contactID, pair))
		return false
	}
	return true
}
