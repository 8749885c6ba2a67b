// Package ratelimit gates outbound sends per contact: rolling hourly and
// daily caps plus a local quiet-hours window. A denied send is deferred and
// drained later, never dropped.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/internal/cache"
	"github.com/leadflowhq/leadflow/providers"
)

// Decision is the outcome of one Allow check.
type Decision struct {
	Allowed bool
	// Reason explains a denial: "hourly_cap", "daily_cap", "quiet_hours".
	Reason string
	// RetryAt is when the denied send becomes eligible again.
	RetryAt time.Time
}

// Limiter enforces the outbound send policy.
type Limiter struct {
	cfg    config.RateLimitConfig
	redis  *cache.Manager
	loc    *time.Location
	logger *zap.Logger

	mu        sync.Mutex
	counts    map[string]*window
	initiated map[string]time.Time
	pending   []Deferred
}

// Deferred is a send held back by the limiter.
type Deferred struct {
	Message providers.OutboundMessage
	Due     time.Time
}

type window struct {
	hourStart time.Time
	hour      int
	dayStart  time.Time
	day       int
}

// New creates the limiter. redis may be nil; counters then live in process
// memory only.
func New(cfg config.RateLimitConfig, redis *cache.Manager, logger *zap.Logger) *Limiter {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unknown quiet-hours timezone, using UTC", zap.String("timezone", cfg.Timezone))
		loc = time.UTC
	}
	return &Limiter{
		cfg:       cfg,
		redis:     redis,
		loc:       loc,
		logger:    logger.With(zap.String("component", "ratelimit")),
		counts:    make(map[string]*window),
		initiated: make(map[string]time.Time),
	}
}

// MarkInitiated records an inbound message from the contact. Replies within
// the grace period bypass quiet hours.
func (l *Limiter) MarkInitiated(contactID string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initiated[contactID] = at
}

// Allow decides whether one outbound send to the contact may go now. An
// allowed decision consumes one slot in both rolling windows.
func (l *Limiter) Allow(ctx context.Context, contactID string, now time.Time) Decision {
	if l.inQuietHours(now) && !l.withinGrace(contactID, now) {
		return Decision{Reason: "quiet_hours", RetryAt: l.nextQuietEnd(now)}
	}

	hourly, daily := l.consume(ctx, contactID, now)
	if hourly > int64(l.cfg.PerHour) {
		return Decision{Reason: "hourly_cap", RetryAt: now.Add(time.Hour)}
	}
	if daily > int64(l.cfg.PerDay) {
		return Decision{Reason: "daily_cap", RetryAt: now.Add(24 * time.Hour)}
	}
	return Decision{Allowed: true}
}

// Defer stores a denied send for later draining.
func (l *Limiter) Defer(msg providers.OutboundMessage, due time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, Deferred{Message: msg, Due: due})
	l.logger.Info("send deferred",
		zap.String("contact_id", msg.ContactID),
		zap.Time("due", due))
}

// DueReplies removes and returns every deferred send whose window opened.
func (l *Limiter) DueReplies(now time.Time) []Deferred {
	l.mu.Lock()
	defer l.mu.Unlock()

	var due []Deferred
	var keep []Deferred
	for _, d := range l.pending {
		if !d.Due.After(now) {
			due = append(due, d)
		} else {
			keep = append(keep, d)
		}
	}
	l.pending = keep
	return due
}

// PendingCount reports how many sends are held back.
func (l *Limiter) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Limiter) consume(ctx context.Context, contactID string, now time.Time) (hourly, daily int64) {
	if l.redis != nil {
		h, errH := l.redis.Incr(ctx, "rate:hour:"+contactID, time.Hour)
		d, errD := l.redis.Incr(ctx, "rate:day:"+contactID, 24*time.Hour)
		if errH == nil && errD == nil {
			return h, d
		}
		l.logger.Warn("shared rate counters unavailable, using in-memory fallback",
			zap.NamedError("hour_err", errH), zap.NamedError("day_err", errD))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.counts[contactID]
	if !ok {
		w = &window{}
		l.counts[contactID] = w
	}
	if now.Sub(w.hourStart) >= time.Hour {
		w.hourStart, w.hour = now, 0
	}
	if now.Sub(w.dayStart) >= 24*time.Hour {
		w.dayStart, w.day = now, 0
	}
	w.hour++
	w.day++
	return int64(w.hour), int64(w.day)
}

// inQuietHours reports whether local time sits inside the no-send window.
// The window may wrap midnight (21:00 to 08:00).
func (l *Limiter) inQuietHours(now time.Time) bool {
	start, end := l.cfg.QuietStartHour, l.cfg.QuietEndHour
	if start == end {
		return false
	}
	hour := now.In(l.loc).Hour()
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func (l *Limiter) withinGrace(contactID string, now time.Time) bool {
	if l.cfg.InitiatedGrace <= 0 {
		return false
	}
	l.mu.Lock()
	at, ok := l.initiated[contactID]
	l.mu.Unlock()
	return ok && now.Sub(at) <= l.cfg.InitiatedGrace
}

// nextQuietEnd returns the next moment the quiet window opens up.
func (l *Limiter) nextQuietEnd(now time.Time) time.Time {
	local := now.In(l.loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), l.cfg.QuietEndHour, 0, 0, 0, l.loc)
	if !end.After(local) {
		end = end.Add(24 * time.Hour)
	}
	return end
}
