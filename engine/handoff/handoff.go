// Package handoff coordinates transfers of conversational ownership between
// agents. Intent detectors propose a target with a confidence; the
// coordinator accepts only above the confidence threshold, outside the
// per-pair cooldown window, and under the rolling daily cap. Extracted
// answers carry forward so the receiving agent never re-asks.
package handoff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/engine/storage"
	"github.com/leadflowhq/leadflow/internal/cache"
	"github.com/leadflowhq/leadflow/types"
)

// Decision is the outcome of evaluating one potential handoff.
type Decision struct {
	Accepted   bool
	Target     types.AgentType
	Confidence float64
	// Reason explains a rejection: "no_signal", "low_confidence", "cycle",
	// "cap_exhausted".
	Reason string
}

// Coordinator evaluates and records handoffs.
type Coordinator struct {
	cfg    config.HandoffConfig
	redis  *cache.Manager
	store  *storage.Store
	mem    *memCooldown
	logger *zap.Logger
}

// New creates a Coordinator. redis may be nil; cooldown tracking then runs
// on the in-memory fallback only.
func New(cfg config.HandoffConfig, redis *cache.Manager, store *storage.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		redis:  redis,
		store:  store,
		mem:    newMemCooldown(),
		logger: logger.With(zap.String("component", "handoff")),
	}
}

// Evaluate decides whether the contact should move to another agent based
// on the inbound message. current is the agent holding the contact now.
func (c *Coordinator) Evaluate(ctx context.Context, contactID string, current types.AgentType, body string) Decision {
	target, confidence := DetectIntent(current, body)
	if target == types.AgentNone || target == current {
		return Decision{Reason: "no_signal"}
	}
	if confidence < c.cfg.ConfidenceThreshold {
		c.logger.Debug("handoff below confidence threshold",
			zap.String("contact_id", contactID),
			zap.String("target", string(target)),
			zap.Float64("confidence", confidence))
		return Decision{Target: target, Confidence: confidence, Reason: "low_confidence"}
	}

	pair := types.HandoffEvent{FromAgent: current, ToAgent: target}.Pair()
	if c.inCooldown(ctx, contactID, pair) {
		return Decision{Target: target, Confidence: confidence, Reason: "cycle"}
	}

	if capped, err := c.dailyCapReached(ctx, contactID); err != nil {
		c.logger.Warn("daily cap check failed, refusing handoff", zap.Error(err))
		return Decision{Target: target, Confidence: confidence, Reason: "cap_exhausted"}
	} else if capped {
		return Decision{Target: target, Confidence: confidence, Reason: "cap_exhausted"}
	}

	return Decision{Accepted: true, Target: target, Confidence: confidence}
}

// Commit records an accepted handoff: the append-only audit event plus the
// cooldown marker for the pair.
func (c *Coordinator) Commit(ctx context.Context, ev *types.HandoffEvent) error {
	if err := c.store.AppendHandoff(ctx, ev); err != nil {
		return fmt.Errorf("commit handoff: %w", err)
	}
	c.markCooldown(ctx, ev.ContactID, ev.Pair())
	c.logger.Info("handoff committed",
		zap.String("contact_id", ev.ContactID),
		zap.String("pair", ev.Pair()),
		zap.Float64("confidence", ev.Confidence))
	return nil
}

// CarryForward maps answers from the superseded state onto a fresh state
// for the receiving agent, translating slot names that mean the same thing.
func CarryForward(from *types.QualificationState, to *types.QualificationState) {
	if from == nil || len(from.Answers) == 0 {
		return
	}
	if to.Answers == nil {
		to.Answers = make(map[string]string)
	}
	for slot, val := range from.Answers {
		mapped := mapSlot(from.AgentType, to.AgentType, slot)
		if mapped == "" {
			continue
		}
		if _, exists := to.Answers[mapped]; !exists {
			to.Answers[mapped] = val
		}
	}
	if n := len(to.Answers); n > to.QuestionsAnswered {
		to.QuestionsAnswered = n
	}
	if to.Phase == types.PhaseNotStarted && len(to.Answers) > 0 {
		to.Phase = types.PhaseInProgress
	}
}

// mapSlot translates a slot name between agent scripts. Shared concepts
// (timeline, area) keep their names; money slots translate between the
// seller's price and the buyer's budget.
func mapSlot(from, to types.AgentType, slot string) string {
	switch slot {
	case "timeline", "area":
		return slot
	case "price":
		if to == types.AgentBuyer {
			return "budget"
		}
		return slot
	case "budget":
		if to == types.AgentSeller {
			return "price"
		}
		return slot
	case "motivation", "condition", "financing", "intent":
		// Script-specific; only meaningful to the same script.
		if scriptHasSlot(to, slot) {
			return slot
		}
		return ""
	}
	return ""
}

func scriptHasSlot(agent types.AgentType, slot string) bool {
	switch agent {
	case types.AgentSeller:
		return slot == "motivation" || slot == "condition"
	case types.AgentBuyer:
		return slot == "financing"
	case types.AgentLead:
		return slot == "intent"
	}
	return false
}

func cooldownKey(contactID, pair string) string {
	return "handoff:cooldown:" + contactID + ":" + pair
}

func (c *Coordinator) inCooldown(ctx context.Context, contactID, pair string) bool {
	if c.mem.active(contactID, pair, c.cfg.CooldownWindow) {
		return true
	}
	if c.redis == nil {
		return false
	}
	_, err := c.redis.Get(ctx, cooldownKey(contactID, pair))
	if err == nil {
		return true
	}
	if !cache.IsCacheMiss(err) {
		c.logger.Warn("cooldown lookup failed, using in-memory view", zap.Error(err))
	}
	return false
}

func (c *Coordinator) markCooldown(ctx context.Context, contactID, pair string) {
	c.mem.mark(contactID, pair)
	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, cooldownKey(contactID, pair), "1", c.cfg.CooldownWindow); err != nil {
		c.logger.Warn("cooldown marker write failed", zap.Error(err))
	}
}

func (c *Coordinator) dailyCapReached(ctx context.Context, contactID string) (bool, error) {
	evs, err := c.store.HandoffsSince(ctx, contactID, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return false, err
	}
	return len(evs) >= c.cfg.DailyCap, nil
}

// DetectIntent inspects an inbound message for signals that another agent
// should own the conversation. Returns the proposed target and a
// deterministic confidence.
func DetectIntent(current types.AgentType, body string) (types.AgentType, float64) {
	msg := strings.ToLower(body)

	switch current {
	case types.AgentSeller:
		if conf := matchConfidence(msg, buyIntentSignals); conf > 0 {
			return types.AgentBuyer, conf
		}
	case types.AgentBuyer:
		if conf := matchConfidence(msg, sellIntentSignals); conf > 0 {
			return types.AgentSeller, conf
		}
	case types.AgentLead, types.AgentNone:
		if conf := matchConfidence(msg, sellIntentSignals); conf > 0 {
			return types.AgentSeller, conf
		}
		if conf := matchConfidence(msg, buyIntentSignals); conf > 0 {
			return types.AgentBuyer, conf
		}
	}
	return types.AgentNone, 0
}

// signal pairs a phrase with the confidence it carries. Strong phrases name
// the transaction explicitly; weak ones merely hint.
type signal struct {
	phrase     string
	confidence float64
}

var buyIntentSignals = []signal{
	{"want to buy", 0.9},
	{"looking to buy", 0.9},
	{"also buying", 0.85},
	{"buy another", 0.85},
	{"purchase a home", 0.85},
	{"find a new place", 0.75},
	{"need to find a house", 0.8},
	{"buying", 0.6},
}

var sellIntentSignals = []signal{
	{"want to sell", 0.9},
	{"need to sell", 0.9},
	{"sell my house", 0.95},
	{"sell my home", 0.95},
	{"sell our house", 0.9},
	{"list my house", 0.85},
	{"list my home", 0.85},
	{"cash offer", 0.75},
	{"selling", 0.6},
}

func matchConfidence(msg string, signals []signal) float64 {
	best := 0.0
	for _, s := range signals {
		if strings.Contains(msg, s.phrase) && s.confidence > best {
			best = s.confidence
		}
	}
	return best
}
