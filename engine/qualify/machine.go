// Package qualify drives the per-contact qualification state machine. Each
// agent works through a fixed question script; deterministic extractors fill
// slots from inbound replies, and a completed script classifies the lead's
// temperature. The machine is pure state-in/state-out; persistence belongs
// to the caller, so an aborted turn leaves nothing behind.
package qualify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/types"
)

// Temperature thresholds over the normalized answer score.
const (
	hotThreshold  = 0.8
	warmThreshold = 0.5
)

// TerminalEffect is the one-time side effect fired when a contact is
// classified: a CRM tag plus a notification.
type TerminalEffect struct {
	Tag          string
	Notification string
}

// TurnResult is the outcome of feeding one inbound message to the machine.
type TurnResult struct {
	// State is the updated state; the caller persists it iff the whole turn
	// commits.
	State *types.QualificationState
	// Reply is the drafted outbound message; empty means stay silent.
	Reply string
	// Answered lists the slots recorded this turn.
	Answered []string
	// Corrected lists already-filled slots overwritten this turn; the caller
	// must invalidate cached snapshots before persisting.
	Corrected []string
	// Vague marks a no-signal turn.
	Vague bool
	// Disengaged marks the turn that tripped the vague-streak branch.
	Disengaged bool
	// Classified marks the turn that assigned a temperature.
	Classified bool
	// Effect is non-nil exactly once per state, on the classifying turn.
	Effect *TerminalEffect
}

// Machine applies qualification turns.
type Machine struct {
	cfg     config.QualificationConfig
	scripts map[types.AgentType]Script
	logger  *zap.Logger
}

// NewMachine creates the state machine with the built-in per-agent scripts.
func NewMachine(cfg config.QualificationConfig, logger *zap.Logger) *Machine {
	return &Machine{
		cfg:     cfg,
		scripts: Scripts(),
		logger:  logger.With(zap.String("component", "qualify")),
	}
}

// NewState returns a fresh state for an agent picking up a contact.
func NewState(contactID string, agent types.AgentType) *types.QualificationState {
	return &types.QualificationState{
		ContactID:   contactID,
		AgentType:   agent,
		Phase:       types.PhaseNotStarted,
		Answers:     make(map[string]string),
		Temperature: types.TemperatureUnset,
	}
}

// Turn feeds one inbound message through the state machine. The input state
// is copied; the caller's state is untouched until it persists the result.
func (m *Machine) Turn(state *types.QualificationState, body string) (TurnResult, error) {
	script, ok := m.scripts[state.AgentType]
	if !ok {
		return TurnResult{}, fmt.Errorf("no script for agent %q", state.AgentType)
	}

	next := cloneState(state)
	res := TurnResult{State: next}

	if next.Terminal() {
		switch m.cfg.ReengagePolicy {
		case "restart":
			next = NewState(next.ContactID, next.AgentType)
			res.State = next
		default:
			// "ignore": terminal contacts get no automated reply.
			return res, nil
		}
	}

	// Extract against every slot, not just the one last asked: a single
	// reply may answer several questions, in any order. A conflicting
	// extraction for a filled slot is a correction ("actually my budget is
	// $500k") and the newest statement wins.
	for _, q := range script.Questions {
		val, found := q.Extract(body)
		if !found {
			continue
		}
		if next.Answers == nil {
			next.Answers = make(map[string]string)
		}
		if prev, done := next.Answers[q.Slot]; done {
			if prev != val {
				next.Answers[q.Slot] = val
				res.Corrected = append(res.Corrected, q.Slot)
			}
			continue
		}
		next.Answers[q.Slot] = val
		res.Answered = append(res.Answered, q.Slot)
	}

	if len(res.Answered) == 0 && len(res.Corrected) == 0 {
		return m.vagueTurn(script, body, next, res), nil
	}

	next.VagueStreak = 0
	if next.Phase == types.PhaseDisengaged {
		// A real answer re-engages; the provisional cold read is void.
		next.Temperature = types.TemperatureUnset
	}
	if next.Phase == types.PhaseNotStarted || next.Phase == types.PhaseDisengaged {
		next.Phase = types.PhaseInProgress
	}
	if n := len(next.Answers); n > next.QuestionsAnswered {
		next.QuestionsAnswered = n
	}

	if q := script.NextUnanswered(next.Answers); q != nil {
		res.Reply = q.Prompt
		return res, nil
	}

	return m.classify(script, next, res), nil
}

// vagueTurn handles a reply that filled no slot: re-ask once, then take the
// disengagement branch after the configured streak. Only hedged replies
// ("maybe", "idk") count toward the streak; a substantive message the
// extractors cannot parse re-asks without penalty.
func (m *Machine) vagueTurn(script Script, body string, next *types.QualificationState, res TurnResult) TurnResult {
	res.Vague = true

	if next.Phase == types.PhaseDisengaged {
		// Already disengaged; stay quiet rather than badger.
		return res
	}

	if next.Phase == types.PhaseNotStarted {
		next.Phase = types.PhaseInProgress
	}
	if IsVague(body) {
		next.VagueStreak++
	}

	if next.VagueStreak >= m.cfg.VagueStreakThreshold {
		next.Phase = types.PhaseDisengaged
		next.Temperature = types.TemperatureCold
		res.Disengaged = true
		res.Reply = "No problem at all. I'll leave it here; text me whenever the timing feels right."
		m.logger.Info("contact disengaged",
			zap.String("contact_id", next.ContactID),
			zap.String("agent", string(next.AgentType)))
		return res
	}

	if q := script.NextUnanswered(next.Answers); q != nil {
		res.Reply = q.Prompt
	}
	return res
}

// classify scores the completed answer set, assigns the temperature, and
// fires the single terminal side effect.
func (m *Machine) classify(script Script, next *types.QualificationState, res TurnResult) TurnResult {
	score := m.score(script, next.Answers)
	switch {
	case score >= hotThreshold:
		next.Temperature = types.TemperatureHot
	case score >= warmThreshold:
		next.Temperature = types.TemperatureWarm
	default:
		next.Temperature = types.TemperatureCold
	}

	next.Phase = types.PhaseClassified
	res.Classified = true
	res.Effect = &TerminalEffect{
		Tag: fmt.Sprintf("%s-%s", next.Temperature, next.AgentType),
		Notification: fmt.Sprintf("Contact %s classified %s by %s qualifier",
			next.ContactID, next.Temperature, next.AgentType),
	}
	res.Reply = closingReply(next.Temperature)

	// Classified is transient; the state retires immediately after the one
	// terminal effect.
	next.Phase = types.PhaseTerminal

	m.logger.Info("contact classified",
		zap.String("contact_id", next.ContactID),
		zap.String("agent", string(next.AgentType)),
		zap.String("temperature", string(next.Temperature)),
		zap.Float64("score", score))
	return res
}

// score averages the per-question scores over the whole script.
func (m *Machine) score(script Script, answers map[string]string) float64 {
	if len(script.Questions) == 0 {
		return 0
	}
	var total float64
	for _, q := range script.Questions {
		ans, ok := answers[q.Slot]
		if !ok {
			continue
		}
		if q.Score != nil {
			total += q.Score(ans)
		} else {
			total += 1
		}
	}
	return total / float64(len(script.Questions))
}

func closingReply(temp types.Temperature) string {
	switch temp {
	case types.TemperatureHot:
		return "Perfect, that's everything I need. Let's get a call on the books; what time works best for you?"
	case types.TemperatureWarm:
		return "Thanks, that gives me a good picture. I'll put some options together and follow up shortly."
	default:
		return "Appreciate the details. I'll check in down the road when the timing is closer."
	}
}

func cloneState(s *types.QualificationState) *types.QualificationState {
	next := *s
	next.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		next.Answers[k] = v
	}
	return &next
}
