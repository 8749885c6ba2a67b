package types

import "time"

// Direction indicates whether a message was received from or sent to a contact.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Channel is the transport a message travelled over.
type Channel string

const (
	ChannelSMS  Channel = "sms"
	ChannelChat Channel = "chat"
)

// Message is a single turn in a conversation. Messages are immutable once
// created; mutation happens by appending new messages, never by editing.
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	ContactID string    `json:"contact_id" gorm:"index;size:64"`
	Direction Direction `json:"direction" gorm:"size:8"`
	Channel   Channel   `json:"channel" gorm:"size:16"`
	Body      string    `json:"body"`
	AgentType AgentType `json:"agent_type" gorm:"size:16"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

// Contact is the engine's working view of a lead. The CRM remains the system
// of record for tags; Tags here is a cache of what the engine has applied.
type Contact struct {
	ID          string          `json:"id" gorm:"primaryKey;size:64"`
	ActiveAgent AgentType       `json:"active_agent" gorm:"size:16"`
	Tags        map[string]bool `json:"tags,omitempty" gorm:"serializer:json"`
	OptedOut    bool            `json:"opted_out"`
	Paused      bool            `json:"paused"`
}

// NewContact returns a contact with no active agent and an empty tag cache.
func NewContact(id string) *Contact {
	return &Contact{ID: id, ActiveAgent: AgentNone, Tags: make(map[string]bool)}
}
