package types

// AgentType identifies which conversational agent owns a contact's turn.
type AgentType string

const (
	AgentNone   AgentType = "none"
	AgentLead   AgentType = "lead"
	AgentSeller AgentType = "seller"
	AgentBuyer  AgentType = "buyer"
)

// Valid reports whether t is a known agent type.
func (t AgentType) Valid() bool {
	switch t {
	case AgentNone, AgentLead, AgentSeller, AgentBuyer:
		return true
	}
	return false
}

// Active reports whether t denotes an agent that may take turns.
func (t AgentType) Active() bool {
	return t == AgentLead || t == AgentSeller || t == AgentBuyer
}
