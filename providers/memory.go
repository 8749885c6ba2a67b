package providers

import (
	"context"
	"sync"
)

// MemoryCRM is an in-memory CRM used in tests and local runs.
type MemoryCRM struct {
	mu          sync.Mutex
	tags        map[string]map[string]bool
	fields      map[string]map[string]string
	deactivated map[string]bool
	failWith    error
}

// NewMemoryCRM creates an empty in-memory CRM.
func NewMemoryCRM() *MemoryCRM {
	return &MemoryCRM{
		tags:        make(map[string]map[string]bool),
		fields:      make(map[string]map[string]string),
		deactivated: make(map[string]bool),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MemoryCRM) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MemoryCRM) AddTag(_ context.Context, contactID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.tags[contactID] == nil {
		m.tags[contactID] = make(map[string]bool)
	}
	m.tags[contactID][tag] = true
	return nil
}

func (m *MemoryCRM) RemoveTag(_ context.Context, contactID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	delete(m.tags[contactID], tag)
	return nil
}

func (m *MemoryCRM) UpdateField(_ context.Context, contactID, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.fields[contactID] == nil {
		m.fields[contactID] = make(map[string]string)
	}
	m.fields[contactID][field] = value
	return nil
}

func (m *MemoryCRM) Deactivate(_ context.Context, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.deactivated[contactID] = true
	return nil
}

// HasTag reports whether the contact currently carries the tag.
func (m *MemoryCRM) HasTag(contactID, tag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tags[contactID][tag]
}

// Field returns the current value of a custom field.
func (m *MemoryCRM) Field(contactID, field string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields[contactID][field]
}

// Deactivated reports whether automation was turned off for the contact.
func (m *MemoryCRM) Deactivated(contactID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deactivated[contactID]
}

// MemoryMessenger records sent messages for assertions.
type MemoryMessenger struct {
	mu       sync.Mutex
	sent     []OutboundMessage
	failWith error
}

// NewMemoryMessenger creates an empty in-memory messenger.
func NewMemoryMessenger() *MemoryMessenger {
	return &MemoryMessenger{}
}

// FailWith makes every subsequent Send return err. Pass nil to recover.
func (m *MemoryMessenger) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MemoryMessenger) Send(_ context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of every message sent so far.
func (m *MemoryMessenger) Sent() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last returns the most recently sent message, or false when none were sent.
func (m *MemoryMessenger) Last() (OutboundMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return OutboundMessage{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// MemoryCalendar serves a fixed slot list and records bookings.
type MemoryCalendar struct {
	mu      sync.Mutex
	slots   []Slot
	booked  map[string]string
	failErr error
}

// NewMemoryCalendar creates a calendar offering the given slots.
func NewMemoryCalendar(slots ...Slot) *MemoryCalendar {
	return &MemoryCalendar{slots: slots, booked: make(map[string]string)}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MemoryCalendar) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MemoryCalendar) AvailableSlots(_ context.Context, _ string) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	out := make([]Slot, len(m.slots))
	copy(out, m.slots)
	return out, nil
}

func (m *MemoryCalendar) Book(_ context.Context, contactID, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.booked[contactID] = slotID
	return nil
}

// Booked returns the slot booked for the contact, if any.
func (m *MemoryCalendar) Booked(contactID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.booked[contactID]
	return id, ok
}
