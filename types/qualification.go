package types

import "time"

// Temperature is the discrete lead-quality classification derived from
// qualification answers.
type Temperature string

const (
	TemperatureUnset Temperature = "unset"
	TemperatureCold  Temperature = "cold"
	TemperatureWarm  Temperature = "warm"
	TemperatureHot   Temperature = "hot"
)

// QualPhase is the lifecycle phase of a QualificationState.
type QualPhase string

const (
	PhaseNotStarted QualPhase = "not_started"
	PhaseInProgress QualPhase = "in_progress"
	PhaseDisengaged QualPhase = "disengaged"
	PhaseClassified QualPhase = "classified"
	PhaseTerminal   QualPhase = "terminal"
)

// QualificationState tracks one agent's qualification of one contact.
// QuestionsAnswered is monotonically non-decreasing for the lifetime of a
// state; a handoff supersedes the state rather than deleting it.
type QualificationState struct {
	ID                string            `json:"id" gorm:"primaryKey;size:64"`
	ContactID         string            `json:"contact_id" gorm:"index;size:64"`
	AgentType         AgentType         `json:"agent_type" gorm:"size:16"`
	Phase             QualPhase         `json:"phase" gorm:"size:16"`
	QuestionsAnswered int               `json:"questions_answered"`
	Answers           map[string]string `json:"answers" gorm:"serializer:json"`
	VagueStreak       int               `json:"vague_streak"`
	Temperature       Temperature       `json:"temperature" gorm:"size:8"`
	Superseded        bool              `json:"superseded"`
	LastUpdated       time.Time         `json:"last_updated"`
}

// Answer returns the recorded answer for a question slot, if any.
func (s *QualificationState) Answer(slot string) (string, bool) {
	if s.Answers == nil {
		return "", false
	}
	v, ok := s.Answers[slot]
	return v, ok
}

// Terminal reports whether the state accepts no further turns.
func (s *QualificationState) Terminal() bool {
	return s.Phase == PhaseTerminal
}

// Classified reports whether a temperature has been assigned.
func (s *QualificationState) Classified() bool {
	return s.Temperature != TemperatureUnset && s.Temperature != ""
}
