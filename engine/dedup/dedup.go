// Package dedup guards the engine's two at-most-once invariants: each
// (contact, event) pair is admitted a single time inside a bounded window,
// and each contact has at most one turn in flight. Both ride on atomic
// set-if-absent semantics; Redis is the shared implementation and an
// in-memory variant with identical behavior covers tests and degraded runs.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/internal/cache"
)

// Guard is the dedup and concurrency interface the orchestrator uses.
type Guard interface {
	// Admit reports whether this (contact, event) delivery is the first one
	// inside the event window.
	Admit(ctx context.Context, contactID, eventID string) (bool, error)
	// Acquire takes the contact's turn lease. false means another turn is
	// already in flight.
	Acquire(ctx context.Context, contactID string) (bool, error)
	// Release frees the contact's turn lease.
	Release(ctx context.Context, contactID string) error
}

// EventKey derives the idempotency key for one delivery.
func EventKey(contactID, eventID string) string {
	sum := sha256.Sum256([]byte(contactID + ":" + eventID))
	return "dedup:event:" + hex.EncodeToString(sum[:16])
}

func leaseKey(contactID string) string {
	return "dedup:lease:" + contactID
}

// RedisGuard is the shared Guard backed by Redis.
type RedisGuard struct {
	cfg    config.DedupConfig
	redis  *cache.Manager
	logger *zap.Logger
}

// NewRedisGuard creates the shared guard.
func NewRedisGuard(cfg config.DedupConfig, redis *cache.Manager, logger *zap.Logger) *RedisGuard {
	return &RedisGuard{
		cfg:    cfg,
		redis:  redis,
		logger: logger.With(zap.String("component", "dedup")),
	}
}

func (g *RedisGuard) Admit(ctx context.Context, contactID, eventID string) (bool, error) {
	return g.redis.SetNX(ctx, EventKey(contactID, eventID), "1", g.cfg.EventWindow)
}

func (g *RedisGuard) Acquire(ctx context.Context, contactID string) (bool, error) {
	// The TTL bounds how long a crashed worker can wedge a contact.
	return g.redis.SetNX(ctx, leaseKey(contactID), "1", g.cfg.LeaseTTL)
}

func (g *RedisGuard) Release(ctx context.Context, contactID string) error {
	return g.redis.Delete(ctx, leaseKey(contactID))
}

// MemoryGuard mirrors RedisGuard semantics in process memory.
type MemoryGuard struct {
	cfg    config.DedupConfig
	events *expiringSet
	leases *expiringSet
}

// NewMemoryGuard creates the in-process guard.
func NewMemoryGuard(cfg config.DedupConfig) *MemoryGuard {
	return &MemoryGuard{
		cfg:    cfg,
		events: newExpiringSet(),
		leases: newExpiringSet(),
	}
}

func (g *MemoryGuard) Admit(_ context.Context, contactID, eventID string) (bool, error) {
	return g.events.setIfAbsent(EventKey(contactID, eventID), g.cfg.EventWindow), nil
}

func (g *MemoryGuard) Acquire(_ context.Context, contactID string) (bool, error) {
	return g.leases.setIfAbsent(leaseKey(contactID), g.cfg.LeaseTTL), nil
}

func (g *MemoryGuard) Release(_ context.Context, contactID string) error {
	g.leases.remove(leaseKey(contactID))
	return nil
}

// now is swappable for lease-expiry tests.
func (g *MemoryGuard) setNow(now func() time.Time) {
	g.events.now = now
	g.leases.now = now
}
