// Package convcache is the tiered conversation memory: an in-process LRU
// (L1), a shared Redis snapshot (L2), and the durable store (L3). A turn
// reads one snapshot instead of replaying full history; lower-tier hits
// backfill the tiers above.
package convcache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/engine/storage"
	"github.com/leadflowhq/leadflow/internal/cache"
	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/types"
)

// Tier identifies which cache level served a lookup.
type Tier string

const (
	TierL1   Tier = "l1"
	TierL2   Tier = "l2"
	TierL3   Tier = "l3"
	TierMiss Tier = "miss"
)

// Snapshot is the working view of one conversation: the recent message
// window plus the live qualification state.
type Snapshot struct {
	ContactID string                    `json:"contact_id"`
	Messages  []types.Message           `json:"messages"`
	State     *types.QualificationState `json:"state,omitempty"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Cache coordinates the three tiers.
type Cache struct {
	cfg     config.CacheConfig
	l1      *l1Cache
	l2      *cache.Manager
	store   *storage.Store
	archive *storage.Archive
	metrics *metrics.Collector
	logger  *zap.Logger
}

// New creates the tiered cache. l2 and archive may be nil; a missing tier
// simply never serves.
func New(cfg config.CacheConfig, l2 *cache.Manager, store *storage.Store, archive *storage.Archive,
	collector *metrics.Collector, logger *zap.Logger) *Cache {
	return &Cache{
		cfg:     cfg,
		l1:      newL1Cache(cfg.L1MaxContacts, cfg.L1TTL),
		l2:      l2,
		store:   store,
		archive: archive,
		metrics: collector,
		logger:  logger.With(zap.String("component", "convcache")),
	}
}

func l2Key(contactID string) string {
	return "conv:snapshot:" + contactID
}

// Get returns the freshest snapshot available and which tier served it.
// A contact with no history gets an empty L3 snapshot, not an error.
func (c *Cache) Get(ctx context.Context, contactID string) (Snapshot, Tier, error) {
	start := time.Now()

	if snap, ok := c.l1.get(contactID); ok {
		c.metrics.RecordCacheLookup(string(TierL1), time.Since(start))
		return snap, TierL1, nil
	}

	if snap, ok := c.fromL2(ctx, contactID); ok {
		c.l1.put(contactID, snap)
		c.metrics.RecordCacheLookup(string(TierL2), time.Since(start))
		return snap, TierL2, nil
	}

	snap, err := c.fromStore(ctx, contactID)
	if err != nil {
		c.metrics.RecordCacheLookup(string(TierMiss), time.Since(start))
		return Snapshot{}, TierMiss, err
	}
	c.backfill(ctx, snap)
	c.metrics.RecordCacheLookup(string(TierL3), time.Since(start))
	return snap, TierL3, nil
}

func (c *Cache) fromL2(ctx context.Context, contactID string) (Snapshot, bool) {
	if c.l2 == nil {
		return Snapshot{}, false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, c.cfg.LookupTimeout)
	defer cancel()

	var snap Snapshot
	err := c.l2.GetJSON(lookupCtx, l2Key(contactID), &snap)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			c.logger.Warn("shared cache lookup failed", zap.String("contact_id", contactID), zap.Error(err))
		}
		return Snapshot{}, false
	}
	return snap, true
}

func (c *Cache) fromStore(ctx context.Context, contactID string) (Snapshot, error) {
	msgs, err := c.store.RecentMessages(ctx, contactID, c.cfg.RecentWindow)
	if err != nil {
		return Snapshot{}, fmt.Errorf("rebuild snapshot: %w", err)
	}
	state, err := c.store.ActiveState(ctx, contactID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("rebuild snapshot: %w", err)
	}
	return Snapshot{
		ContactID: contactID,
		Messages:  msgs,
		State:     state,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// backfill writes a rebuilt snapshot into L1 and L2 in parallel. Failures
// are logged, not surfaced: the caller already has the snapshot.
func (c *Cache) backfill(ctx context.Context, snap Snapshot) {
	var g errgroup.Group
	g.Go(func() error {
		c.l1.put(snap.ContactID, snap)
		return nil
	})
	g.Go(func() error {
		if c.l2 == nil {
			return nil
		}
		return c.l2.SetJSON(ctx, l2Key(snap.ContactID), snap, c.cfg.L2TTL)
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn("snapshot backfill failed", zap.String("contact_id", snap.ContactID), zap.Error(err))
	}
}

// Put replaces the cached snapshot in L1 and L2.
func (c *Cache) Put(ctx context.Context, snap Snapshot) {
	snap.UpdatedAt = time.Now().UTC()
	c.backfill(ctx, snap)
}

// Append persists one message durably, mirrors it to the archive, and folds
// it into the cached snapshot.
func (c *Cache) Append(ctx context.Context, msg *types.Message) error {
	if err := c.store.AppendMessage(ctx, msg); err != nil {
		return err
	}
	if err := c.archive.ArchiveMessage(ctx, msg); err != nil {
		c.logger.Warn("archive write failed", zap.String("contact_id", msg.ContactID), zap.Error(err))
	}

	snap, _, err := c.Get(ctx, msg.ContactID)
	if err != nil {
		return nil
	}
	snap.Messages = append(snap.Messages, *msg)
	if over := len(snap.Messages) - c.cfg.RecentWindow; over > 0 {
		snap.Messages = snap.Messages[over:]
	}
	c.Put(ctx, snap)
	return nil
}

// Invalidate drops the contact's snapshot from L1 and L2. The durable tier
// is untouched.
func (c *Cache) Invalidate(ctx context.Context, contactID string) {
	c.l1.remove(contactID)
	if c.l2 != nil {
		if err := c.l2.Delete(ctx, l2Key(contactID)); err != nil {
			c.logger.Warn("shared cache invalidation failed", zap.String("contact_id", contactID), zap.Error(err))
		}
	}
	c.metrics.RecordInvalidation()
}

// RecordCorrection handles an explicit correction: cached snapshots are
// invalidated before the corrected state is written, so no lookup between
// the two can serve the superseded value.
func (c *Cache) RecordCorrection(ctx context.Context, state *types.QualificationState) error {
	c.Invalidate(ctx, state.ContactID)
	if err := c.store.SaveState(ctx, state); err != nil {
		return fmt.Errorf("record correction: %w", err)
	}
	return nil
}

// SearchHistory answers "what did we discuss earlier" lookups from the
// archive; without one it falls back to the recent durable window.
func (c *Cache) SearchHistory(ctx context.Context, contactID, query string, limit int) ([]types.Message, error) {
	if c.archive != nil {
		return c.archive.SearchHistory(ctx, contactID, query, limit)
	}
	return c.store.RecentMessages(ctx, contactID, limit)
}
