package types

import "time"

// HandoffEvent records one transfer of conversational ownership for a
// contact. The handoff log is append-only and doubles as the cycle-detection
// audit trail: no two events for the same contact may share the same
// from->to pair inside the cooldown window.
type HandoffEvent struct {
	ID         string    `json:"id" gorm:"primaryKey;size:64"`
	ContactID  string    `json:"contact_id" gorm:"index;size:64"`
	FromAgent  AgentType `json:"from_agent" gorm:"size:16"`
	ToAgent    AgentType `json:"to_agent" gorm:"size:16"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}

// Pair returns the from->to key used for cooldown matching.
func (e HandoffEvent) Pair() string {
	return string(e.FromAgent) + ">" + string(e.ToAgent)
}
