// Package normalize converts provider webhook payloads into the engine's
// canonical inbound message. Malformed payloads never abort a turn: missing
// fields degrade to an empty-body message so the pipeline can run its
// "no answer extracted" path.
package normalize

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/types"
)

// InboundMessage is the canonical form of one webhook delivery.
type InboundMessage struct {
	ContactID  string        `json:"contact_id"`
	EventID    string        `json:"event_id"`
	Channel    types.Channel `json:"channel"`
	Body       string        `json:"body"`
	ReceivedAt time.Time     `json:"received_at"`
}

// payload mirrors the provider webhook JSON. Providers are inconsistent about
// field names, so several aliases map onto each canonical field.
type payload struct {
	ContactID  string `json:"contact_id"`
	ContactAlt string `json:"contactId"`
	EventID    string `json:"event_id"`
	MessageID  string `json:"messageId"`
	Body       string `json:"body"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Timestamp  string `json:"timestamp"`
}

// Normalizer parses and (optionally) authenticates webhook payloads.
type Normalizer struct {
	secret string
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Normalizer. An empty secret disables signature checks.
func New(secret string, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		secret: secret,
		logger: logger.With(zap.String("component", "normalize")),
		now:    time.Now,
	}
}

// ErrMissingContact is returned when no contact can be identified at all;
// without one there is no conversation to attach the event to.
var ErrMissingContact = types.NewError(types.ErrInvalidRequest, "payload carries no contact id")

// Normalize parses a raw webhook body into an InboundMessage.
//
// A payload without a usable body still yields a message (empty body) so the
// turn can run and re-prompt. A payload without an event ID gets one derived
// from the content, which keeps replayed deliveries of the same provider
// event deduplicatable.
func (n *Normalizer) Normalize(raw []byte) (InboundMessage, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		n.logger.Warn("unparseable webhook payload", zap.Error(err))
		return InboundMessage{}, types.NewError(types.ErrInvalidRequest, "malformed JSON payload").WithCause(err)
	}

	contactID := firstNonEmpty(p.ContactID, p.ContactAlt)
	if contactID == "" {
		return InboundMessage{}, ErrMissingContact
	}

	body := strings.TrimSpace(firstNonEmpty(p.Body, p.Message))

	receivedAt := n.now().UTC()
	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			receivedAt = ts.UTC()
		}
	}

	eventID := firstNonEmpty(p.EventID, p.MessageID)
	if eventID == "" {
		eventID = DeriveEventID(contactID, body, receivedAt)
	}

	return InboundMessage{
		ContactID:  contactID,
		EventID:    eventID,
		Channel:    channelFor(p.Type),
		Body:       body,
		ReceivedAt: receivedAt,
	}, nil
}

// VerifySignature checks the provider's HMAC-SHA256 signature over the raw
// body. Always true when no secret is configured.
func (n *Normalizer) VerifySignature(raw []byte, signature string) bool {
	if n.secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256=")))
}

// DeriveEventID builds a deterministic event ID from the message content,
// bucketed to the minute so provider retries of an ID-less event collapse to
// one key.
func DeriveEventID(contactID, body string, receivedAt time.Time) string {
	bucket := receivedAt.UTC().Truncate(time.Minute).Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", contactID, body, bucket)))
	return "derived-" + hex.EncodeToString(sum[:16])
}

func channelFor(t string) types.Channel {
	switch strings.ToLower(t) {
	case "sms", "":
		return types.ChannelSMS
	default:
		return types.ChannelChat
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
