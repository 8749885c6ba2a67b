package convcache

import (
	"container/list"
	"sync"
	"time"
)

// l1Cache is the in-process tier: a bounded LRU with per-entry TTL. Eviction
// happens on insert; expiry is checked on read.
type l1Cache struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	order   *list.List
	entries map[string]*list.Element
	now     func() time.Time
}

type l1Entry struct {
	contactID string
	snap      Snapshot
	expiresAt time.Time
}

func newL1Cache(max int, ttl time.Duration) *l1Cache {
	return &l1Cache{
		max:     max,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element),
		now:     time.Now,
	}
}

func (c *l1Cache) get(contactID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[contactID]
	if !ok {
		return Snapshot{}, false
	}
	entry := el.Value.(*l1Entry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, contactID)
		return Snapshot{}, false
	}
	c.order.MoveToFront(el)
	return entry.snap, true
}

func (c *l1Cache) put(contactID string, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[contactID]; ok {
		entry := el.Value.(*l1Entry)
		entry.snap = snap
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&l1Entry{
		contactID: contactID,
		snap:      snap,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[contactID] = el

	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*l1Entry).contactID)
	}
}

func (c *l1Cache) remove(contactID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[contactID]; ok {
		c.order.Remove(el)
		delete(c.entries, contactID)
	}
}

func (c *l1Cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
