package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentType(t *testing.T) {
	assert.True(t, AgentSeller.Valid())
	assert.True(t, AgentSeller.Active())
	assert.True(t, AgentNone.Valid())
	assert.False(t, AgentNone.Active())
	assert.False(t, AgentType("concierge").Valid())
}

func TestQualificationStateAccessors(t *testing.T) {
	s := &QualificationState{
		Phase:       PhaseInProgress,
		Answers:     map[string]string{"motivation": "relocating"},
		Temperature: TemperatureUnset,
	}

	v, ok := s.Answer("motivation")
	assert.True(t, ok)
	assert.Equal(t, "relocating", v)

	_, ok = s.Answer("price")
	assert.False(t, ok)

	assert.False(t, s.Terminal())
	assert.False(t, s.Classified())

	s.Temperature = TemperatureHot
	s.Phase = PhaseTerminal
	assert.True(t, s.Terminal())
	assert.True(t, s.Classified())
}

func TestHandoffPair(t *testing.T) {
	e := HandoffEvent{FromAgent: AgentSeller, ToAgent: AgentBuyer}
	assert.Equal(t, "seller>buyer", e.Pair())
}
