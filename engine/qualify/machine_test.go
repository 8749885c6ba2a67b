package qualify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/types"
)

func newTestMachine(mutate ...func(*config.QualificationConfig)) *Machine {
	cfg := config.DefaultQualificationConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	return NewMachine(cfg, zap.NewNop())
}

// The motivated-seller path: four answers over four turns, classified Hot,
// exactly one terminal effect.
func TestSellerFlowClassifiesHot(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentSeller)

	turns := []string{
		"relocating for work",
		"yes 30-45 days is fine",
		"move-in ready",
		"$650,000",
	}

	var effects int
	for i, body := range turns {
		res, err := m.Turn(state, body)
		require.NoError(t, err)
		state = res.State
		if res.Effect != nil {
			effects++
		}
		if i < len(turns)-1 {
			assert.False(t, res.Classified, "turn %d", i)
			assert.NotEmpty(t, res.Reply, "turn %d should ask the next question", i)
		}
	}

	assert.Equal(t, types.TemperatureHot, state.Temperature)
	assert.Equal(t, types.PhaseTerminal, state.Phase)
	assert.Equal(t, 4, state.QuestionsAnswered)
	assert.Equal(t, 1, effects, "exactly one terminal effect")
	assert.Equal(t, "45", state.Answers["timeline"])
	assert.Equal(t, "650000", state.Answers["price"])
}

func TestTerminalEffectTagAndNotification(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentSeller)
	state.Phase = types.PhaseInProgress
	state.Answers = map[string]string{
		"motivation": "divorce",
		"timeline":   "30",
		"condition":  "move-in ready",
	}
	state.QuestionsAnswered = 3

	res, err := m.Turn(state, "$480,000")
	require.NoError(t, err)
	require.NotNil(t, res.Effect)
	assert.Equal(t, "hot-seller", res.Effect.Tag)
	assert.Contains(t, res.Effect.Notification, "c1")
}

// One message answering several questions records all of them that turn.
func TestMultiAnswerSingleTurn(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentBuyer)

	res, err := m.Turn(state, "Budget is 450k, pre-approved, looking in Gilbert")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"budget", "financing", "area"}, res.Answered)
	assert.Equal(t, 3, res.State.QuestionsAnswered)

	// Only the timeline is left to ask.
	assert.Equal(t, "When are you hoping to be in the new place?", res.Reply)
}

// Answers map to slots by content, not by which question was just asked.
func TestOutOfOrderAnswerMapping(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentSeller)

	// First question is motivation; the contact leads with a price.
	res, err := m.Turn(state, "I'd want $700k for it")
	require.NoError(t, err)
	assert.Equal(t, []string{"price"}, res.Answered)
	assert.Equal(t, "700000", res.State.Answers["price"])
	// Still asks for motivation.
	assert.Equal(t, "What's got you thinking about selling?", res.Reply)
}

// A conflicting extraction for a filled slot overwrites it and resets the
// vague streak.
func TestCorrectionOverwritesFilledSlot(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentBuyer)
	state.Phase = types.PhaseInProgress
	state.Answers = map[string]string{"budget": "650000"}
	state.QuestionsAnswered = 1
	state.VagueStreak = 1

	res, err := m.Turn(state, "actually my budget is $500,000")
	require.NoError(t, err)
	assert.Equal(t, []string{"budget"}, res.Corrected)
	assert.Empty(t, res.Answered)
	assert.False(t, res.Vague)
	assert.Equal(t, "500000", res.State.Answers["budget"])
	assert.Equal(t, 0, res.State.VagueStreak)
	// Progress is untouched; the open question is asked again.
	assert.Equal(t, 1, res.State.QuestionsAnswered)
	assert.Equal(t, "Are you pre-approved with a lender, or paying cash?", res.Reply)
}

// Restating the same value is neither an answer nor a correction.
func TestRestatementIsNotACorrection(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentBuyer)
	state.Phase = types.PhaseInProgress
	state.Answers = map[string]string{"budget": "500000"}
	state.QuestionsAnswered = 1

	res, err := m.Turn(state, "like I said, $500,000")
	require.NoError(t, err)
	assert.Empty(t, res.Corrected)
	assert.Empty(t, res.Answered)
	assert.True(t, res.Vague)
}

func TestVagueStreakDisengages(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentSeller)

	res, err := m.Turn(state, "maybe")
	require.NoError(t, err)
	assert.True(t, res.Vague)
	assert.False(t, res.Disengaged)
	assert.NotEmpty(t, res.Reply, "first vague turn re-asks")
	state = res.State

	res, err = m.Turn(state, "not sure")
	require.NoError(t, err)
	assert.True(t, res.Disengaged)
	assert.Equal(t, types.PhaseDisengaged, res.State.Phase)
	assert.Equal(t, types.TemperatureCold, res.State.Temperature)
	// The soft close is not the question again.
	firstQuestion := Scripts()[types.AgentSeller].Questions[0].Prompt
	assert.NotEqual(t, firstQuestion, res.Reply)
	state = res.State

	// A third vague turn stays silent: the question is not asked a third time.
	res, err = m.Turn(state, "idk")
	require.NoError(t, err)
	assert.Empty(t, res.Reply)
}

func TestRealAnswerResetsVagueStreak(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentSeller)

	res, err := m.Turn(state, "maybe")
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.VagueStreak)

	res, err = m.Turn(res.State, "relocating for work")
	require.NoError(t, err)
	assert.Equal(t, 0, res.State.VagueStreak)
	assert.Equal(t, types.PhaseInProgress, res.State.Phase)
}

// A substantive message the extractors cannot parse re-asks without
// counting toward disengagement; only hedged replies do.
func TestUnparsedSubstantiveReplyDoesNotCountVague(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentSeller)

	res, err := m.Turn(state, "the roof was replaced last year")
	require.NoError(t, err)
	assert.True(t, res.Vague)
	assert.Equal(t, 0, res.State.VagueStreak)
	assert.NotEmpty(t, res.Reply)
}

// A full answer set with middling values lands between the hot and cold
// cutoffs.
func TestPartialQualityClassifiesWarm(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentBuyer)

	turns := []string{
		"my budget is 450k",
		"haven't talked to a lender yet",
		"probably 3 months out",
		"mostly looking in Chandler",
	}
	for _, body := range turns {
		res, err := m.Turn(state, body)
		require.NoError(t, err)
		state = res.State
	}

	assert.Equal(t, types.TemperatureWarm, state.Temperature)
	assert.Equal(t, types.PhaseTerminal, state.Phase)
}

func TestDisengagedContactCanReengage(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentSeller)
	state.Phase = types.PhaseDisengaged
	state.Temperature = types.TemperatureCold
	state.VagueStreak = 2

	res, err := m.Turn(state, "ok actually, we're relocating for a job")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseInProgress, res.State.Phase)
	assert.Equal(t, types.TemperatureUnset, res.State.Temperature)
}

func TestQuestionsAnsweredMonotonic(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentBuyer)
	state.QuestionsAnswered = 2
	state.Answers = map[string]string{"budget": "450000", "financing": "cash"}
	state.Phase = types.PhaseInProgress

	// A vague turn never decreases progress.
	res, err := m.Turn(state, "hmm not sure")
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.QuestionsAnswered)
}

func TestTurnDoesNotMutateInputState(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentSeller)

	_, err := m.Turn(state, "relocating for work")
	require.NoError(t, err)
	assert.Empty(t, state.Answers, "caller's state untouched until persisted")
	assert.Equal(t, types.PhaseNotStarted, state.Phase)
}

func TestReengagePolicyRestart(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentSeller)
	state.Phase = types.PhaseTerminal
	state.Temperature = types.TemperatureHot
	state.QuestionsAnswered = 4

	res, err := m.Turn(state, "hey, one more question about selling")
	require.NoError(t, err)
	// Fresh state: the old classification does not carry over.
	assert.Equal(t, types.PhaseInProgress, res.State.Phase)
	assert.Equal(t, types.TemperatureUnset, res.State.Temperature)
	assert.NotEqual(t, 4, res.State.QuestionsAnswered)
}

func TestReengagePolicyIgnore(t *testing.T) {
	m := newTestMachine(func(c *config.QualificationConfig) { c.ReengagePolicy = "ignore" })
	state := NewState("c1", types.AgentSeller)
	state.Phase = types.PhaseTerminal

	res, err := m.Turn(state, "hello again")
	require.NoError(t, err)
	assert.Empty(t, res.Reply)
	assert.Nil(t, res.Effect)
	assert.Equal(t, types.PhaseTerminal, res.State.Phase)
}

func TestLeadScriptClassifies(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentLead)

	res, err := m.Turn(state, "I want to sell my house in Mesa, ideally within 30 days")
	require.NoError(t, err)
	assert.True(t, res.Classified)
	assert.Equal(t, types.TemperatureHot, res.State.Temperature)
	require.NotNil(t, res.Effect)
	assert.Equal(t, "hot-lead", res.Effect.Tag)
}

func TestBrowsingLeadClassifiesCooler(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentLead)

	res, err := m.Turn(state, "just browsing around Tempe, maybe in 6 months")
	require.NoError(t, err)
	require.True(t, res.Classified)
	assert.NotEqual(t, types.TemperatureHot, res.State.Temperature)
}

func TestUnknownAgentErrors(t *testing.T) {
	m := newTestMachine()
	state := NewState("c1", types.AgentNone)
	_, err := m.Turn(state, "hello")
	assert.Error(t, err)
}
