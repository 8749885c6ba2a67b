package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mgr, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	s := NewStore(mgr, zap.NewNop())
	require.NoError(t, s.AutoMigrate())
	return s
}

func TestAppendAndRecentMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendMessage(ctx, &types.Message{
			ContactID: "c1",
			Direction: types.DirectionIn,
			Channel:   types.ChannelSMS,
			Body:      string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.AppendMessage(ctx, &types.Message{
		ContactID: "other", Body: "x", Timestamp: base,
	}))

	msgs, err := s.RecentMessages(ctx, "c1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	// Chronological order, most recent window.
	assert.Equal(t, "c", msgs[0].Body)
	assert.Equal(t, "e", msgs[2].Body)
}

func TestAppendMessageAssignsID(t *testing.T) {
	s := newTestStore(t)
	msg := &types.Message{ContactID: "c1", Body: "hello"}
	require.NoError(t, s.AppendMessage(context.Background(), msg))
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestActiveStateLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.ActiveState(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := &types.QualificationState{
		ContactID: "c1",
		AgentType: types.AgentSeller,
		Phase:     types.PhaseInProgress,
		Answers:   map[string]string{"motivation": "relocating"},
	}
	require.NoError(t, s.SaveState(ctx, state))

	got, err = s.ActiveState(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.AgentSeller, got.AgentType)
	assert.Equal(t, "relocating", got.Answers["motivation"])
}

func TestSupersedeKeepsHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &types.QualificationState{ContactID: "c1", AgentType: types.AgentLead, Phase: types.PhaseInProgress}
	require.NoError(t, s.SaveState(ctx, old))
	require.NoError(t, s.SupersedeStates(ctx, "c1"))

	got, err := s.ActiveState(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The superseded row is still there.
	var count int64
	require.NoError(t, s.db.DB().Model(&types.QualificationState{}).Where("contact_id = ?", "c1").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// A fresh state for the new agent becomes the active one.
	fresh := &types.QualificationState{ContactID: "c1", AgentType: types.AgentSeller, Phase: types.PhaseNotStarted}
	require.NoError(t, s.SaveState(ctx, fresh))
	got, err = s.ActiveState(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.AgentSeller, got.AgentType)
}

func TestContactRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Unknown contacts come back fresh, not as errors.
	c, err := s.GetContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, types.AgentNone, c.ActiveAgent)
	assert.False(t, c.OptedOut)

	c.ActiveAgent = types.AgentSeller
	c.Tags["hot-seller"] = true
	c.OptedOut = true
	require.NoError(t, s.SaveContact(ctx, c))

	got, err := s.GetContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, types.AgentSeller, got.ActiveAgent)
	assert.True(t, got.Tags["hot-seller"])
	assert.True(t, got.OptedOut)
}

func TestHandoffLogAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.AppendHandoff(ctx, &types.HandoffEvent{
		ContactID: "c1", FromAgent: types.AgentLead, ToAgent: types.AgentSeller,
		Confidence: 0.9, Timestamp: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, s.AppendHandoff(ctx, &types.HandoffEvent{
		ContactID: "c1", FromAgent: types.AgentSeller, ToAgent: types.AgentBuyer,
		Confidence: 0.8, Timestamp: now.Add(-10 * time.Minute),
	}))

	evs, err := s.HandoffsSince(ctx, "c1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "seller>buyer", evs[0].Pair())

	evs, err = s.HandoffsSince(ctx, "c1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, evs, 2)
}
