package providers

import (
	"context"
	"time"

	"github.com/leadflowhq/leadflow/types"
)

// OutboundMessage is what the engine hands to the messaging provider.
// Delivery retries on transient failure are the provider's concern.
type OutboundMessage struct {
	ContactID string        `json:"contact_id"`
	Body      string        `json:"body"`
	Channel   types.Channel `json:"channel"`
}

// Slot is one bookable calendar slot.
type Slot struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CRM is the tag/field store of record. The engine's in-memory tag view is
// only a cache of what it has pushed here.
type CRM interface {
	AddTag(ctx context.Context, contactID, tag string) error
	RemoveTag(ctx context.Context, contactID, tag string) error
	UpdateField(ctx context.Context, contactID, field, value string) error
	// Deactivate signals the CRM to stop all automation for an opted-out
	// contact.
	Deactivate(ctx context.Context, contactID string) error
}

// Messenger dispatches outbound messages. Fire-and-forget from the engine's
// perspective.
type Messenger interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// Calendar owns booking availability truth.
type Calendar interface {
	AvailableSlots(ctx context.Context, contactID string) ([]Slot, error)
	Book(ctx context.Context, contactID, slotID string) error
}

// unavailable wraps a transport failure as a retryable collaborator error.
func unavailable(service string, err error) error {
	return types.NewError(types.ErrCollaborator, service+" unavailable").
		WithCause(err).
		WithRetryable(true)
}
