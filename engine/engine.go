// Package engine orchestrates one webhook event end to end: dedup, the
// per-contact lease, normalization, compliance, the cached conversation
// snapshot, a qualification turn, handoff evaluation, the outbound gate,
// and side-effect dispatch. A turn either commits whole or leaves no state
// behind.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/engine/abtest"
	"github.com/leadflowhq/leadflow/engine/compliance"
	"github.com/leadflowhq/leadflow/engine/convcache"
	"github.com/leadflowhq/leadflow/engine/dedup"
	"github.com/leadflowhq/leadflow/engine/handoff"
	"github.com/leadflowhq/leadflow/engine/normalize"
	"github.com/leadflowhq/leadflow/engine/qualify"
	"github.com/leadflowhq/leadflow/engine/ratelimit"
	"github.com/leadflowhq/leadflow/engine/storage"
	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/taskq"
	"github.com/leadflowhq/leadflow/providers"
	"github.com/leadflowhq/leadflow/types"
)

// Outcome labels how an event left the pipeline.
const (
	OutcomeProcessed  = "processed"
	OutcomeDuplicate  = "duplicate"
	OutcomeBusy       = "busy"
	OutcomeSuppressed = "suppressed"
	OutcomePaused     = "paused"
	OutcomeDeferred   = "deferred"
	OutcomeIgnored    = "ignored"
)

// responseStyleExperiment buckets contacts into a reply-style arm. The
// variant rides along as a CRM field so conversion reporting can segment.
var responseStyleExperiment = abtest.Experiment{
	ID: "response_style_v1",
	Variants: []abtest.Variant{
		{Name: "direct", Weight: 50},
		{Name: "consultative", Weight: 50},
	},
}

// slotSelectionRe matches appointment picks: "1", "slot 2", "#3".
var slotSelectionRe = regexp.MustCompile(`(?i)^\s*(?:slot\s*|#)?([1-9])\s*\.?\s*$`)

// Result is what the webhook handler reports back to the provider.
type Result struct {
	Outcome     string            `json:"outcome"`
	ContactID   string            `json:"contact_id,omitempty"`
	Agent       types.AgentType   `json:"agent,omitempty"`
	Reply       string            `json:"reply,omitempty"`
	Temperature types.Temperature `json:"temperature,omitempty"`
	Handoff     string            `json:"handoff,omitempty"`
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Guard      dedup.Guard
	Normalizer *normalize.Normalizer
	Filter     *compliance.Filter
	Cache      *convcache.Cache
	Store      *storage.Store
	Machine    *qualify.Machine
	Coord      *handoff.Coordinator
	Limiter    *ratelimit.Limiter
	Queue      *taskq.Queue
	CRM        providers.CRM
	Messenger  providers.Messenger
	Calendar   providers.Calendar
	Metrics    *metrics.Collector
}

// Engine runs the turn pipeline.
type Engine struct {
	cfg    config.EngineConfig
	deps   Deps
	logger *zap.Logger
}

// New wires the engine.
func New(cfg config.EngineConfig, deps Deps, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(zap.String("component", "engine")),
	}
}

// ProcessEvent handles one raw webhook delivery.
func (e *Engine) ProcessEvent(ctx context.Context, raw []byte) (Result, error) {
	msg, err := e.deps.Normalizer.Normalize(raw)
	if err != nil {
		e.deps.Metrics.RecordWebhookEvent(OutcomeIgnored)
		return Result{Outcome: OutcomeIgnored}, err
	}

	admitted, err := e.deps.Guard.Admit(ctx, msg.ContactID, msg.EventID)
	if err != nil {
		return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID},
			types.NewError(types.ErrInternalError, "dedup check failed").WithCause(err).WithRetryable(true)
	}
	if !admitted {
		e.deps.Metrics.RecordDuplicate()
		e.deps.Metrics.RecordWebhookEvent(OutcomeDuplicate)
		return Result{Outcome: OutcomeDuplicate, ContactID: msg.ContactID},
			types.NewError(types.ErrDuplicateEvent, "event already processed")
	}

	held, err := e.deps.Guard.Acquire(ctx, msg.ContactID)
	if err != nil {
		return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID},
			types.NewError(types.ErrInternalError, "lease acquire failed").WithCause(err).WithRetryable(true)
	}
	if !held {
		e.deps.Metrics.RecordBusy()
		e.deps.Metrics.RecordWebhookEvent(OutcomeBusy)
		return Result{Outcome: OutcomeBusy, ContactID: msg.ContactID},
			types.NewError(types.ErrContactBusy, "another turn is in flight for this contact")
	}
	defer func() {
		if relErr := e.deps.Guard.Release(context.WithoutCancel(ctx), msg.ContactID); relErr != nil {
			e.logger.Warn("lease release failed", zap.String("contact_id", msg.ContactID), zap.Error(relErr))
		}
	}()

	turnCtx, cancel := context.WithTimeout(ctx, e.cfg.TurnDeadline)
	defer cancel()

	start := time.Now()
	res, err := e.turn(turnCtx, msg)
	if err == nil {
		e.deps.Metrics.RecordTurn(string(res.Agent), time.Since(start))
	}
	e.deps.Metrics.RecordWebhookEvent(res.Outcome)
	return res, err
}

// turn runs everything inside the per-contact lease.
func (e *Engine) turn(ctx context.Context, msg normalize.InboundMessage) (Result, error) {
	contact, err := e.deps.Store.GetContact(ctx, msg.ContactID)
	if err != nil {
		return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID}, err
	}

	if contact.OptedOut {
		// Nothing is sent to an opted-out contact, ever.
		return Result{Outcome: OutcomeSuppressed, ContactID: msg.ContactID}, nil
	}

	if in := e.deps.Filter.CheckInbound(msg.Body); in.OptOut {
		return e.handleOptOut(ctx, contact, msg, in)
	}

	if contact.Paused {
		// Manual override: record the message, take no automated action.
		if err := e.deps.Cache.Append(ctx, e.inboundRecord(contact, msg)); err != nil {
			return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID}, err
		}
		return Result{Outcome: OutcomePaused, ContactID: msg.ContactID}, nil
	}

	e.deps.Limiter.MarkInitiated(msg.ContactID, msg.ReceivedAt)

	snap, _, err := e.deps.Cache.Get(ctx, msg.ContactID)
	if err != nil {
		return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID}, err
	}

	agent := contact.ActiveAgent
	if !agent.Active() {
		agent = types.AgentLead
	}

	// Appointment pick for an already-classified contact short-circuits the
	// qualification flow.
	if booked, reply := e.tryBooking(ctx, contact, snap, msg); booked {
		if err := e.deps.Cache.Append(ctx, e.inboundRecord(contact, msg)); err != nil {
			return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID}, err
		}
		return e.dispatch(ctx, contact, agent, msg, Result{
			Outcome:   OutcomeProcessed,
			ContactID: msg.ContactID,
			Agent:     agent,
		}, reply)
	}

	state := snap.State
	if state == nil || state.Superseded || state.AgentType != agent {
		state = qualify.NewState(msg.ContactID, agent)
	}

	// Handoff evaluation runs before the turn so the receiving agent takes
	// this message.
	var handoffNote string
	if decision := e.deps.Coord.Evaluate(ctx, msg.ContactID, agent, msg.Body); decision.Accepted {
		state, agent, err = e.applyHandoff(ctx, contact, state, decision)
		if err != nil {
			return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID}, err
		}
		handoffNote = string(agent)
	} else {
		switch decision.Reason {
		case "cycle":
			e.deps.Metrics.RecordHandoff("rejected_cycle")
		case "low_confidence":
			e.deps.Metrics.RecordHandoff("rejected_confidence")
		case "cap_exhausted":
			e.deps.Metrics.RecordHandoff("rejected_cap")
		}
	}

	// Seller conversations also carry a pathway preference (speed vs price);
	// the CRM field steers which offer the human team prepares.
	if agent == types.AgentSeller {
		if pathway := qualify.DetectPathway(msg.Body); pathway != "unknown" {
			e.submitSideEffect("crm_field", func(ctx context.Context) error {
				return e.deps.CRM.UpdateField(ctx, msg.ContactID, "seller_pathway", pathway)
			})
		}
	}

	turnRes, err := e.deps.Machine.Turn(state, msg.Body)
	if err != nil {
		return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID}, err
	}

	// The deadline gate: nothing below this line runs for an expired turn,
	// so an aborted turn mutates no state.
	if ctx.Err() != nil {
		return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID},
			types.NewError(types.ErrTurnDeadline, "turn deadline exceeded").WithCause(ctx.Err())
	}

	if err := e.commitTurn(ctx, contact, agent, msg, turnRes); err != nil {
		return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID}, err
	}

	result := Result{
		Outcome:     OutcomeProcessed,
		ContactID:   msg.ContactID,
		Agent:       agent,
		Temperature: turnRes.State.Temperature,
		Handoff:     handoffNote,
	}
	if turnRes.Classified {
		e.fireTerminalEffect(contact, agent, turnRes)
	}
	return e.dispatch(ctx, contact, agent, msg, result, turnRes.Reply)
}

// handleOptOut suppresses the contact and sends the single acknowledgment.
func (e *Engine) handleOptOut(ctx context.Context, contact *types.Contact,
	msg normalize.InboundMessage, in compliance.InboundResult) (Result, error) {

	contact.OptedOut = true
	contact.ActiveAgent = types.AgentNone
	if err := e.deps.Store.SaveContact(ctx, contact); err != nil {
		return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID}, err
	}
	if err := e.deps.Cache.Append(ctx, e.inboundRecord(contact, msg)); err != nil {
		return Result{Outcome: OutcomeIgnored, ContactID: msg.ContactID}, err
	}
	e.deps.Cache.Invalidate(ctx, msg.ContactID)
	e.deps.Metrics.RecordComplianceAction("opt_out")

	// The acknowledgment bypasses the rate gate: it is legally required and
	// the last message this contact receives.
	ack := in.Acknowledgment
	if err := e.deps.Messenger.Send(ctx, providers.OutboundMessage{
		ContactID: msg.ContactID, Body: ack, Channel: msg.Channel,
	}); err != nil {
		e.logger.Error("opt-out acknowledgment send failed",
			zap.String("contact_id", msg.ContactID), zap.Error(err))
	} else if err := e.deps.Cache.Append(ctx, e.outboundRecord(contact, msg, ack)); err != nil {
		e.logger.Warn("opt-out acknowledgment record failed", zap.Error(err))
	}

	e.submitSideEffect("crm_deactivate", func(ctx context.Context) error {
		return e.deps.CRM.Deactivate(ctx, msg.ContactID)
	})
	e.submitSideEffect("crm_tag", func(ctx context.Context) error {
		return e.deps.CRM.AddTag(ctx, msg.ContactID, "opted-out")
	})

	e.logger.Info("contact opted out",
		zap.String("contact_id", msg.ContactID),
		zap.String("language", in.Language))
	return Result{Outcome: OutcomeSuppressed, ContactID: msg.ContactID, Reply: ack}, nil
}

// applyHandoff retires the current state, records the event, and builds the
// receiving agent's state with answers carried forward.
func (e *Engine) applyHandoff(ctx context.Context, contact *types.Contact,
	current *types.QualificationState, decision handoff.Decision) (*types.QualificationState, types.AgentType, error) {

	ev := &types.HandoffEvent{
		ContactID:  contact.ID,
		FromAgent:  contact.ActiveAgent,
		ToAgent:    decision.Target,
		Confidence: decision.Confidence,
		Reason:     "intent_detected",
		Timestamp:  time.Now().UTC(),
	}
	if !contact.ActiveAgent.Active() {
		ev.FromAgent = types.AgentLead
	}

	if err := e.deps.Store.SupersedeStates(ctx, contact.ID); err != nil {
		return nil, "", err
	}
	if err := e.deps.Coord.Commit(ctx, ev); err != nil {
		return nil, "", err
	}

	next := qualify.NewState(contact.ID, decision.Target)
	handoff.CarryForward(current, next)

	contact.ActiveAgent = decision.Target
	if err := e.deps.Store.SaveContact(ctx, contact); err != nil {
		return nil, "", err
	}
	e.deps.Cache.Invalidate(ctx, contact.ID)
	e.deps.Metrics.RecordHandoff("accepted")
	return next, decision.Target, nil
}

// commitTurn persists the inbound message, the updated state, and the
// contact's agent binding.
func (e *Engine) commitTurn(ctx context.Context, contact *types.Contact, agent types.AgentType,
	msg normalize.InboundMessage, turnRes qualify.TurnResult) error {

	if err := e.deps.Cache.Append(ctx, e.inboundRecord(contact, msg)); err != nil {
		return err
	}

	// A restarted script gets a fresh row; the old terminal state retires.
	if turnRes.State.ID == "" {
		if err := e.deps.Store.SupersedeStates(ctx, contact.ID); err != nil {
			return err
		}
	}
	if len(turnRes.Corrected) > 0 {
		// Corrections invalidate cached snapshots before the overwrite lands,
		// so no lookup between the two serves the superseded value.
		if err := e.deps.Cache.RecordCorrection(ctx, turnRes.State); err != nil {
			return err
		}
	} else if err := e.deps.Store.SaveState(ctx, turnRes.State); err != nil {
		return err
	}

	if contact.ActiveAgent != agent {
		contact.ActiveAgent = agent
		if err := e.deps.Store.SaveContact(ctx, contact); err != nil {
			return err
		}
	}

	snap, _, err := e.deps.Cache.Get(ctx, contact.ID)
	if err == nil {
		snap.State = turnRes.State
		e.deps.Cache.Put(ctx, snap)
	}

	e.deps.Metrics.RecordTransition(string(agent), string(turnRes.State.Phase))
	return nil
}

// fireTerminalEffect queues the one-time classification side effects.
func (e *Engine) fireTerminalEffect(contact *types.Contact, agent types.AgentType, turnRes qualify.TurnResult) {
	effect := turnRes.Effect
	if effect == nil {
		return
	}
	contactID := contact.ID
	variant := abtest.Assign(responseStyleExperiment, contactID)

	e.deps.Metrics.RecordTemperature(string(agent), string(turnRes.State.Temperature))
	e.submitSideEffect("crm_tag", func(ctx context.Context) error {
		return e.deps.CRM.AddTag(ctx, contactID, effect.Tag)
	})
	e.submitSideEffect("crm_field", func(ctx context.Context) error {
		return e.deps.CRM.UpdateField(ctx, contactID, "response_style_variant", variant.Name)
	})
	e.submitSideEffect("notify", func(ctx context.Context) error {
		return e.deps.CRM.UpdateField(ctx, contactID, "qualification_note", effect.Notification)
	})
}

// tryBooking books an appointment when a classified contact picks a slot.
func (e *Engine) tryBooking(ctx context.Context, contact *types.Contact,
	snap convcache.Snapshot, msg normalize.InboundMessage) (bool, string) {

	if e.deps.Calendar == nil || snap.State == nil || !snap.State.Terminal() {
		return false, ""
	}
	m := slotSelectionRe.FindStringSubmatch(msg.Body)
	if m == nil {
		return false, ""
	}
	pick, _ := strconv.Atoi(m[1])

	slots, err := e.deps.Calendar.AvailableSlots(ctx, contact.ID)
	if err != nil {
		e.logger.Warn("slot lookup failed", zap.String("contact_id", contact.ID), zap.Error(err))
		return true, "I couldn't pull the calendar just now; give me a moment and try again."
	}
	if pick < 1 || pick > len(slots) {
		return true, fmt.Sprintf("I have %d times available; reply with a number between 1 and %d.", len(slots), len(slots))
	}

	slot := slots[pick-1]
	if err := e.deps.Calendar.Book(ctx, contact.ID, slot.ID); err != nil {
		e.logger.Warn("booking failed", zap.String("contact_id", contact.ID), zap.Error(err))
		return true, "That time just filled up; reply with another number and I'll lock it in."
	}

	e.submitSideEffect("crm_tag", func(ctx context.Context) error {
		return e.deps.CRM.AddTag(ctx, contact.ID, "appointment-booked")
	})
	return true, fmt.Sprintf("You're all set for %s. Looking forward to it!",
		slot.Start.Format("Monday, Jan 2 at 3:04 PM"))
}

// dispatch runs the drafted reply through outbound compliance and the rate
// gate, then sends it.
func (e *Engine) dispatch(ctx context.Context, contact *types.Contact, agent types.AgentType,
	msg normalize.InboundMessage, result Result, reply string) (Result, error) {

	if reply == "" {
		return result, nil
	}

	out := e.deps.Filter.FilterOutbound(agent, reply)
	if out.Blocked {
		e.deps.Metrics.RecordComplianceAction("blocked")
	}
	if out.Truncated {
		e.deps.Metrics.RecordComplianceAction("truncated")
	}

	decision := e.deps.Limiter.Allow(ctx, contact.ID, time.Now())
	outMsg := providers.OutboundMessage{ContactID: contact.ID, Body: out.Body, Channel: msg.Channel}
	if !decision.Allowed {
		e.deps.Limiter.Defer(outMsg, decision.RetryAt)
		e.deps.Metrics.RecordDeferred()
		result.Outcome = OutcomeDeferred
		result.Reply = out.Body
		return result, nil
	}

	if err := e.deps.Messenger.Send(ctx, outMsg); err != nil {
		// Transient messenger failure: retry off the turn path.
		e.submitSideEffect("send_retry", func(ctx context.Context) error {
			return e.deps.Messenger.Send(ctx, outMsg)
		})
	} else if err := e.deps.Cache.Append(ctx, e.outboundRecord(contact, msg, out.Body)); err != nil {
		e.logger.Warn("outbound record failed", zap.Error(err))
	}

	result.Reply = out.Body
	return result, nil
}

// Pause suspends automated turns for a contact until Resume.
func (e *Engine) Pause(ctx context.Context, contactID string) error {
	contact, err := e.deps.Store.GetContact(ctx, contactID)
	if err != nil {
		return err
	}
	contact.Paused = true
	if err := e.deps.Store.SaveContact(ctx, contact); err != nil {
		return err
	}
	e.deps.Cache.Invalidate(ctx, contactID)
	e.logger.Info("contact paused", zap.String("contact_id", contactID))
	return nil
}

// Resume lifts a manual pause.
func (e *Engine) Resume(ctx context.Context, contactID string) error {
	contact, err := e.deps.Store.GetContact(ctx, contactID)
	if err != nil {
		return err
	}
	contact.Paused = false
	if err := e.deps.Store.SaveContact(ctx, contact); err != nil {
		return err
	}
	e.deps.Cache.Invalidate(ctx, contactID)
	e.logger.Info("contact resumed", zap.String("contact_id", contactID))
	return nil
}

// History answers "what did we discuss earlier" lookups over the contact's
// archived conversation.
func (e *Engine) History(ctx context.Context, contactID, query string, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.deps.Cache.SearchHistory(ctx, contactID, query, limit)
}

// RunDeferredLoop drains rate-deferred replies as their windows open. Blocks
// until ctx is done.
func (e *Engine) RunDeferredLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, d := range e.deps.Limiter.DueReplies(now) {
				msg := d.Message
				e.submitSideEffect("deferred_send", func(ctx context.Context) error {
					return e.deps.Messenger.Send(ctx, msg)
				})
			}
		}
	}
}

func (e *Engine) submitSideEffect(kind string, run func(ctx context.Context) error) {
	err := e.deps.Queue.Submit(taskq.Task{Kind: kind, Run: run})
	if err != nil {
		e.logger.Warn("side effect rejected", zap.String("kind", kind), zap.Error(err))
		e.deps.Metrics.RecordSideEffect(kind, "rejected")
	}
}

func (e *Engine) inboundRecord(contact *types.Contact, msg normalize.InboundMessage) *types.Message {
	return &types.Message{
		ContactID: contact.ID,
		Direction: types.DirectionIn,
		Channel:   msg.Channel,
		Body:      msg.Body,
		AgentType: contact.ActiveAgent,
		Timestamp: msg.ReceivedAt,
	}
}

func (e *Engine) outboundRecord(contact *types.Contact, msg normalize.InboundMessage, body string) *types.Message {
	return &types.Message{
		ContactID: contact.ID,
		Direction: types.DirectionOut,
		Channel:   msg.Channel,
		Body:      body,
		AgentType: contact.ActiveAgent,
		Timestamp: time.Now().UTC(),
	}
}
