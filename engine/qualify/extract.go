package qualify

import (
	"regexp"
	"strconv"
	"strings"
)

// Deterministic answer extraction. Every extractor takes the raw inbound
// body and reports whether it found a usable answer; slot mapping happens by
// extractor, never by question position, so out-of-order and multi-answer
// replies land in the right slots.

var (
	currencyRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	thousandsRe = regexp.MustCompile(`(\d+(?:\.\d+)?)k\b`)
	dayRe       = regexp.MustCompile(`(\d+)\s*day`)
	weekRe      = regexp.MustCompile(`(\d+)\s*week`)
	monthRe     = regexp.MustCompile(`(\d+)\s*month`)
	zipRe       = regexp.MustCompile(`\b(\d{5})\b`)
	areaRe      = regexp.MustCompile(`(?i)\b(?:in|near|around)\s+([a-z][a-z .'-]{2,40})`)
)

var vagueIndicators = []string{
	"maybe", "not sure", "idk", "i don't know", "thinking about it", "unsure",
}

// IsVague reports whether a reply carries no usable signal: very short, or
// dominated by hedge phrases.
func IsVague(body string) bool {
	msg := strings.ToLower(strings.TrimSpace(body))
	if len(msg) < 3 {
		return true
	}
	for _, ind := range vagueIndicators {
		if strings.Contains(msg, ind) {
			return true
		}
	}
	return false
}

// ParseCurrency extracts a dollar amount from text like "$650,000" or
// "650k". Bare numbers only count when they are plausibly a price.
func ParseCurrency(text string) (int, bool) {
	raw := strings.ToLower(strings.TrimSpace(text))
	cleaned := strings.ReplaceAll(raw, ",", "")
	if cleaned == "" {
		return 0, false
	}

	if m := thousandsRe.FindStringSubmatch(cleaned); m != nil {
		f, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return int(f * 1000), true
		}
	}

	m := currencyRe.FindStringSubmatch(cleaned)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	value := int(f)

	if strings.Contains(raw, "$") || value >= 10000 {
		return value, true
	}
	return 0, false
}

// ParseTimelineDays converts a stated timeline into days: "30-45 days",
// "2 weeks", "3 months". "asap" and "immediately" count as 14 days.
func ParseTimelineDays(text string) (int, bool) {
	msg := strings.ToLower(text)
	if m := dayRe.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := weekRe.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 7, true
	}
	if m := monthRe.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 30, true
	}
	if strings.Contains(msg, "asap") || strings.Contains(msg, "immediately") || strings.Contains(msg, "right away") {
		return 14, true
	}
	return 0, false
}

// NormalizeCondition maps free-form condition talk onto the canonical
// labels: "move-in ready", "needs work", "major repairs".
func NormalizeCondition(text string) (string, bool) {
	msg := strings.ToLower(text)
	switch {
	case strings.Contains(msg, "move") && strings.Contains(msg, "ready"):
		return "move-in ready", true
	case strings.Contains(msg, "excellent") || strings.Contains(msg, "great shape") || strings.Contains(msg, "good condition"):
		return "move-in ready", true
	case strings.Contains(msg, "major") || strings.Contains(msg, "extensive") || strings.Contains(msg, "gut"):
		return "major repairs", true
	case strings.Contains(msg, "repair") || strings.Contains(msg, "fixer") ||
		strings.Contains(msg, "needs work") || strings.Contains(msg, "needs some work"):
		return "needs work", true
	}
	return "", false
}

var motivationKeywords = []string{
	"relocat", "job", "divorce", "inherit", "downsiz", "upsiz",
	"foreclos", "retir", "financial", "growing family", "school district",
	"moving for work", "moving out of state",
}

// ExtractMotivation picks up a selling motivation when the reply names one.
func ExtractMotivation(text string) (string, bool) {
	msg := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range motivationKeywords {
		if strings.Contains(msg, kw) {
			return msg, true
		}
	}
	return "", false
}

// ExtractFinancing classifies the buyer's financing posture.
func ExtractFinancing(text string) (string, bool) {
	msg := strings.ToLower(text)
	switch {
	case strings.Contains(msg, "pre-approved") || strings.Contains(msg, "preapproved") || strings.Contains(msg, "pre approved"):
		return "pre-approved", true
	case strings.Contains(msg, "pre-qualified") || strings.Contains(msg, "prequalified"):
		return "pre-qualified", true
	case strings.Contains(msg, "cash"):
		return "cash", true
	case strings.Contains(msg, "need a lender") || strings.Contains(msg, "not started") || strings.Contains(msg, "haven't talked to"):
		return "not started", true
	}
	return "", false
}

// ExtractArea pulls a location reference: a ZIP code or an "in/near <place>"
// phrase.
func ExtractArea(text string) (string, bool) {
	msg := strings.ToLower(text)
	if m := zipRe.FindStringSubmatch(msg); m != nil {
		return m[1], true
	}
	if m := areaRe.FindStringSubmatch(msg); m != nil {
		area := strings.TrimSpace(m[1])
		// "in 30 days" is a timeline, not a place.
		if _, isTimeline := ParseTimelineDays(area); !isTimeline {
			return area, true
		}
	}
	return "", false
}

var (
	sellKeywords   = []string{"sell", "selling", "list my", "my house", "my home", "my property"}
	buyKeywords    = []string{"buy", "buying", "purchase", "looking for a home", "house hunting", "first-time"}
	browseKeywords = []string{"just looking", "just browsing", "curious", "window shopping"}
)

// ExtractIntent classifies a lead's intent: "sell", "buy", or "browse".
func ExtractIntent(text string) (string, bool) {
	msg := strings.ToLower(text)
	for _, kw := range browseKeywords {
		if strings.Contains(msg, kw) {
			return "browse", true
		}
	}
	for _, kw := range sellKeywords {
		if strings.Contains(msg, kw) {
			return "sell", true
		}
	}
	for _, kw := range buyKeywords {
		if strings.Contains(msg, kw) {
			return "buy", true
		}
	}
	return "", false
}

var (
	wholesalePatterns = []string{
		"as-is", "as is", "fast sale", "cash offer", "quick",
		"need to sell fast", "sell quickly", "don't want to fix",
	}
	listingPatterns = []string{
		"best price", "top dollar", "what's it worth", "worth",
		"how much can i get", "market value", "list it", "mls",
	}
)

// DetectPathway classifies a seller's pathway preference: "wholesale"
// (speed over price) or "listing" (price over speed).
func DetectPathway(text string) string {
	msg := strings.ToLower(text)
	for _, p := range wholesalePatterns {
		if strings.Contains(msg, p) {
			return "wholesale"
		}
	}
	for _, p := range listingPatterns {
		if strings.Contains(msg, p) {
			if p == "worth" && !strings.Contains(msg, "house") && !strings.Contains(msg, "home") && !strings.Contains(msg, "property") {
				continue
			}
			return "listing"
		}
	}
	return "unknown"
}
