package normalize

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/types"
)

func newTestNormalizer(secret string) *Normalizer {
	n := New(secret, zap.NewNop())
	n.now = func() time.Time { return time.Date(2026, 3, 2, 15, 4, 30, 0, time.UTC) }
	return n
}

func TestNormalizeFullPayload(t *testing.T) {
	n := newTestNormalizer("")
	msg, err := n.Normalize([]byte(`{
		"contact_id": "c1",
		"event_id": "evt-1",
		"type": "sms",
		"body": "I want to sell my house",
		"timestamp": "2026-03-02T15:00:00Z"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "c1", msg.ContactID)
	assert.Equal(t, "evt-1", msg.EventID)
	assert.Equal(t, types.ChannelSMS, msg.Channel)
	assert.Equal(t, "I want to sell my house", msg.Body)
	assert.Equal(t, time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC), msg.ReceivedAt)
}

func TestNormalizeProviderAliases(t *testing.T) {
	n := newTestNormalizer("")
	msg, err := n.Normalize([]byte(`{"contactId": "c2", "messageId": "m-9", "message": "hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "c2", msg.ContactID)
	assert.Equal(t, "m-9", msg.EventID)
	assert.Equal(t, "hi", msg.Body)
}

func TestNormalizeMissingBodyYieldsEmptyTurn(t *testing.T) {
	n := newTestNormalizer("")
	msg, err := n.Normalize([]byte(`{"contact_id": "c1", "event_id": "evt-2"}`))
	require.NoError(t, err)
	assert.Empty(t, msg.Body)
}

func TestNormalizeDerivesEventID(t *testing.T) {
	n := newTestNormalizer("")
	first, err := n.Normalize([]byte(`{"contact_id": "c1", "body": "hello"}`))
	require.NoError(t, err)
	second, err := n.Normalize([]byte(`{"contact_id": "c1", "body": "hello"}`))
	require.NoError(t, err)

	// Same content in the same minute collapses to the same event.
	assert.Equal(t, first.EventID, second.EventID)
	assert.Contains(t, first.EventID, "derived-")

	other, err := n.Normalize([]byte(`{"contact_id": "c1", "body": "different"}`))
	require.NoError(t, err)
	assert.NotEqual(t, first.EventID, other.EventID)
}

func TestNormalizeMissingContactFails(t *testing.T) {
	n := newTestNormalizer("")
	_, err := n.Normalize([]byte(`{"body": "hello"}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestNormalizeMalformedJSON(t *testing.T) {
	n := newTestNormalizer("")
	_, err := n.Normalize([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestNormalizeChatChannel(t *testing.T) {
	n := newTestNormalizer("")
	msg, err := n.Normalize([]byte(`{"contact_id": "c1", "type": "livechat", "body": "hi"}`))
	require.NoError(t, err)
	assert.Equal(t, types.ChannelChat, msg.Channel)
}

func TestVerifySignature(t *testing.T) {
	raw := []byte(`{"contact_id":"c1","body":"hello"}`)
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(raw)
	sig := hex.EncodeToString(mac.Sum(nil))

	n := newTestNormalizer("topsecret")
	assert.True(t, n.VerifySignature(raw, sig))
	assert.True(t, n.VerifySignature(raw, "sha256="+sig))
	assert.False(t, n.VerifySignature(raw, "deadbeef"))
	assert.False(t, n.VerifySignature([]byte(`tampered`), sig))
}

func TestVerifySignatureDisabled(t *testing.T) {
	n := newTestNormalizer("")
	assert.True(t, n.VerifySignature([]byte(`anything`), ""))
}
