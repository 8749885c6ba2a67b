// Package storage is the durable bottom tier of the conversation memory:
// messages, qualification states, and the append-only handoff audit log in
// the relational store, plus an optional full-history archive for text
// search over old conversations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/types"
)

// Store persists conversation state in the relational database.
type Store struct {
	db     *database.Manager
	logger *zap.Logger
}

// NewStore creates a Store on an open database.
func NewStore(db *database.Manager, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "storage")),
	}
}

// AutoMigrate creates the schema. Used for the sqlite driver; postgres and
// mysql run versioned migrations instead.
func (s *Store) AutoMigrate() error {
	return s.db.DB().AutoMigrate(
		&types.Message{},
		&types.QualificationState{},
		&types.HandoffEvent{},
		&types.Contact{},
	)
}

// GetContact loads the contact record, creating a fresh one on first sight.
func (s *Store) GetContact(ctx context.Context, contactID string) (*types.Contact, error) {
	var contact types.Contact
	err := s.db.DB().WithContext(ctx).Where("id = ?", contactID).First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewContact(contactID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if contact.Tags == nil {
		contact.Tags = make(map[string]bool)
	}
	return &contact, nil
}

// SaveContact upserts the contact record.
func (s *Store) SaveContact(ctx context.Context, contact *types.Contact) error {
	if err := s.db.DB().WithContext(ctx).Save(contact).Error; err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}

// AppendMessage stores one immutable message.
func (s *Store) AppendMessage(ctx context.Context, msg *types.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := s.db.DB().WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit most recent messages for a contact,
// oldest first.
func (s *Store) RecentMessages(ctx context.Context, contactID string, limit int) ([]types.Message, error) {
	var msgs []types.Message
	err := s.db.DB().WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}
	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ActiveState returns the contact's non-superseded qualification state, or
// nil when none exists.
func (s *Store) ActiveState(ctx context.Context, contactID string) (*types.QualificationState, error) {
	var state types.QualificationState
	err := s.db.DB().WithContext(ctx).
		Where("contact_id = ? AND superseded = ?", contactID, false).
		Order("last_updated DESC").
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active state: %w", err)
	}
	return &state, nil
}

// SaveState inserts or updates a qualification state.
func (s *Store) SaveState(ctx context.Context, state *types.QualificationState) error {
	if state.ID == "" {
		state.ID = uuid.NewString()
	}
	state.LastUpdated = time.Now().UTC()
	if err := s.db.DB().WithContext(ctx).Save(state).Error; err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// SupersedeStates marks every live state for the contact superseded. States
// are never deleted; a handoff retires them in place.
func (s *Store) SupersedeStates(ctx context.Context, contactID string) error {
	err := s.db.DB().WithContext(ctx).
		Model(&types.QualificationState{}).
		Where("contact_id = ? AND superseded = ?", contactID, false).
		Updates(map[string]any{"superseded": true, "last_updated": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("supersede states: %w", err)
	}
	return nil
}

// AppendHandoff records one handoff event. The log is append-only.
func (s *Store) AppendHandoff(ctx context.Context, ev *types.HandoffEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := s.db.DB().WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("append handoff: %w", err)
	}
	return nil
}

// HandoffsSince returns the contact's handoff events at or after since,
// newest first.
func (s *Store) HandoffsSince(ctx context.Context, contactID string, since time.Time) ([]types.HandoffEvent, error) {
	var evs []types.HandoffEvent
	err := s.db.DB().WithContext(ctx).
		Where("contact_id = ? AND timestamp >= ?", contactID, since).
		Order("timestamp DESC").
		Find(&evs).Error
	if err != nil {
		return nil, fmt.Errorf("load handoffs: %w", err)
	}
	return evs, nil
}
