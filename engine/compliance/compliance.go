// Package compliance enforces message-level invariants on both directions of
// a conversation: inbound opt-out detection and outbound content screening,
// disclosure injection, and SMS format enforcement. The filter never returns
// an error; every input produces a compliant output.
package compliance

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/types"
)

// Acknowledgment texts sent exactly once when a contact opts out.
const (
	optOutAckEN = "You've been unsubscribed and won't receive further messages. Reply START to opt back in."
	optOutAckES = "Has sido dado de baja y no recibirás más mensajes. Responde START para volver a suscribirte."
)

// Per-agent replacement text used when a drafted reply trips the regulated
// content screen. The reply is replaced, never repaired.
var safeFallbacks = map[types.AgentType]string{
	types.AgentLead:   "Happy to help you with your real estate plans. What would you like to focus on?",
	types.AgentSeller: "I'd love to learn more about your home so I can help. Could you tell me a bit about the property?",
	types.AgentBuyer:  "I can help you find a home that fits your needs. What matters most to you in your search?",
	types.AgentNone:   "Thanks for reaching out. How can I help with your real estate plans today?",
}

var spanishPhrases = map[string]bool{"parar": true, "cancelar": true, "no más": true, "no mas": true}

// InboundResult is the opt-out check outcome for one inbound message.
type InboundResult struct {
	OptOut bool
	// Acknowledgment to send once, in the contact's language.
	Acknowledgment string
	Language       string
}

// OutboundResult is the filtered form of one drafted outbound message.
type OutboundResult struct {
	Body            string
	Blocked         bool
	DisclosureAdded bool
	Truncated       bool
}

// Filter applies the fixed-order compliance stages.
type Filter struct {
	optOutPhrases []string
	disallowed    []*regexp.Regexp
	disclosure    string
	maxLength     int
	logger        *zap.Logger
}

// New compiles the configured policies into a Filter. Invalid disallowed
// patterns are skipped with a warning rather than failing startup.
func New(cfg config.ComplianceConfig, logger *zap.Logger) *Filter {
	f := &Filter{
		disclosure: cfg.DisclosureSuffix,
		maxLength:  cfg.MaxLength,
		logger:     logger.With(zap.String("component", "compliance")),
	}
	for _, p := range cfg.OptOutPhrases {
		f.optOutPhrases = append(f.optOutPhrases, strings.ToLower(p))
	}
	for _, p := range cfg.DisallowedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			f.logger.Warn("skipping invalid disallowed pattern", zap.String("pattern", p), zap.Error(err))
			continue
		}
		f.disallowed = append(f.disallowed, re)
	}
	return f
}

// CheckInbound runs the opt-out stage on an inbound message. A match
// short-circuits everything downstream for this contact.
func (f *Filter) CheckInbound(body string) InboundResult {
	lower := strings.ToLower(strings.TrimSpace(body))
	if lower == "" {
		return InboundResult{}
	}
	for _, phrase := range f.optOutPhrases {
		if !containsPhrase(lower, phrase) {
			continue
		}
		lang, ack := "en", optOutAckEN
		if spanishPhrases[phrase] {
			lang, ack = "es", optOutAckES
		}
		return InboundResult{OptOut: true, Acknowledgment: ack, Language: lang}
	}
	return InboundResult{}
}

// FilterOutbound runs the outbound stages in fixed order: regulated-content
// screen, disclosure injection, format enforcement. Already-compliant input
// passes through unchanged.
func (f *Filter) FilterOutbound(agent types.AgentType, body string) OutboundResult {
	var res OutboundResult
	res.Body = body

	for _, re := range f.disallowed {
		if re.MatchString(res.Body) {
			f.logger.Warn("outbound message blocked by content screen",
				zap.String("agent", string(agent)),
				zap.String("pattern", re.String()))
			res.Body = safeFallback(agent)
			res.Blocked = true
			break
		}
	}

	if f.disclosure != "" && !strings.Contains(res.Body, f.disclosure) {
		res.Body = res.Body + " " + f.disclosure
		res.DisclosureAdded = true
	}

	res.Body = normalizeText(res.Body)
	if f.maxLength > 0 && utf8.RuneCountInString(res.Body) > f.maxLength {
		res.Body = truncate(res.Body, f.maxLength)
		res.Truncated = true
	}
	return res
}

// safeFallback returns the replacement text for a blocked reply.
func safeFallback(agent types.AgentType) string {
	if fb, ok := safeFallbacks[agent]; ok {
		return fb
	}
	return safeFallbacks[types.AgentNone]
}

// containsPhrase matches phrase on word boundaries. Phrases embedded in a
// longer message still fire ("please cancel this"); matches inside longer
// words do not ("stopped", "cancellation").
func containsPhrase(lower, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(rune(lower[start-1]))
		afterOK := end == len(lower) || !isWordChar(rune(lower[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// normalizeText strips characters outside the SMS-safe set and collapses
// runs of whitespace.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if smsSafe(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// smsSafe reports whether a rune survives format enforcement. Printable
// ASCII plus the Spanish letters the GSM-7 basic set carries.
func smsSafe(r rune) bool {
	if r >= 0x20 && r <= 0x7E {
		return true
	}
	switch r {
	case 'é', 'ñ', 'ü', 'à', 'è', 'ì', 'ò', 'ù', 'Ñ', 'É', 'Ü', '¿', '¡', 'á', 'í', 'ó', 'ú':
		return true
	}
	return unicode.IsSpace(r)
}

// truncate cuts s to at most limit runes, preferring a sentence boundary past
// the midpoint, then the last word boundary with an ellipsis. Never cuts
// inside a word.
func truncate(s string, limit int) string {
	runes := []rune(s)
	window := runes[:limit]

	if cut := lastSentenceEnd(window); cut >= limit/2 {
		return strings.TrimSpace(string(window[:cut+1]))
	}

	const ellipsis = "..."
	window = runes[:limit-len(ellipsis)]
	if cut := lastIndexRune(window, ' '); cut > 0 {
		window = window[:cut]
	}
	return strings.TrimRight(string(window), " ,;:") + ellipsis
}

func lastSentenceEnd(s []rune) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			// A boundary needs following space or end-of-window, so "3.5"
			// style decimals do not count.
			if i == len(s)-1 || s[i+1] == ' ' {
				return i
			}
		}
	}
	return -1
}

func lastIndexRune(s []rune, r rune) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == r {
			return i
		}
	}
	return -1
}
