package qualify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCurrency(t *testing.T) {
	cases := []struct {
		in    string
		want  int
		found bool
	}{
		{"$650,000", 650000, true},
		{"650k", 650000, true},
		{"I'm hoping for around 650k", 650000, true},
		{"$85", 85, true},
		{"450000", 450000, true},
		{"maybe 3", 0, false},
		{"45 days", 0, false},
		{"", 0, false},
		{"no idea", 0, false},
	}
	for _, c := range cases {
		got, found := ParseCurrency(c.in)
		assert.Equal(t, c.found, found, "input %q", c.in)
		if c.found {
			assert.Equal(t, c.want, got, "input %q", c.in)
		}
	}
}

func TestParseTimelineDays(t *testing.T) {
	cases := []struct {
		in    string
		want  int
		found bool
	}{
		{"yes 30-45 days is fine", 45, true},
		{"2 weeks", 14, true},
		{"3 months or so", 90, true},
		{"asap", 14, true},
		{"need to move right away", 14, true},
		{"whenever", 0, false},
	}
	for _, c := range cases {
		got, found := ParseTimelineDays(c.in)
		assert.Equal(t, c.found, found, "input %q", c.in)
		if c.found {
			assert.Equal(t, c.want, got, "input %q", c.in)
		}
	}
}

func TestNormalizeCondition(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"it's move-in ready", "move-in ready"},
		{"move in ready", "move-in ready"},
		{"good condition overall", "move-in ready"},
		{"needs work honestly", "needs work"},
		{"it's a fixer upper", "needs work"},
		{"some repairs here and there", "needs work"},
		{"major repairs, roof and foundation", "major repairs"},
		{"it would need extensive rehab", "major repairs"},
	}
	for _, c := range cases {
		got, found := NormalizeCondition(c.in)
		assert.True(t, found, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}

	_, found := NormalizeCondition("three bedrooms")
	assert.False(t, found)
}

func TestExtractMotivation(t *testing.T) {
	got, found := ExtractMotivation("relocating for work")
	assert.True(t, found)
	assert.Equal(t, "relocating for work", got)

	_, found = ExtractMotivation("move-in ready")
	assert.False(t, found)

	// Condition talk must not read as motivation.
	_, found = ExtractMotivation("needs work")
	assert.False(t, found)
}

func TestExtractFinancing(t *testing.T) {
	cases := map[string]string{
		"I'm pre-approved with Chase":  "pre-approved",
		"preapproved last month":       "pre-approved",
		"we're paying cash":            "cash",
		"pre-qualified so far":         "pre-qualified",
		"haven't talked to anyone yet": "not started",
	}
	for in, want := range cases {
		got, found := ExtractFinancing(in)
		assert.True(t, found, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestExtractArea(t *testing.T) {
	got, found := ExtractArea("somewhere in Gilbert or Chandler")
	assert.True(t, found)
	assert.Equal(t, "gilbert or chandler", got)

	got, found = ExtractArea("zip is 85251")
	assert.True(t, found)
	assert.Equal(t, "85251", got)

	// "in 30 days" is a timeline, not a place.
	_, found = ExtractArea("in 30 days")
	assert.False(t, found)
}

func TestExtractIntent(t *testing.T) {
	cases := map[string]string{
		"I want to sell my house":       "sell",
		"looking to buy this spring":    "buy",
		"just browsing for now":         "browse",
		"curious what's out there":      "browse",
		"thinking about my property":    "sell",
		"first-time buyer, need advice": "buy",
	}
	for in, want := range cases {
		got, found := ExtractIntent(in)
		assert.True(t, found, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, found := ExtractIntent("hello there")
	assert.False(t, found)
}

func TestDetectPathway(t *testing.T) {
	assert.Equal(t, "wholesale", DetectPathway("I need to sell fast, as-is"))
	assert.Equal(t, "wholesale", DetectPathway("would you do a cash offer?"))
	assert.Equal(t, "listing", DetectPathway("I want top dollar for it"))
	assert.Equal(t, "listing", DetectPathway("what's my house worth?"))
	assert.Equal(t, "unknown", DetectPathway("what is this worth to you emotionally"))
	assert.Equal(t, "unknown", DetectPathway("hello"))
}

func TestIsVague(t *testing.T) {
	for _, msg := range []string{"maybe", "not sure", "idk", "I don't know", "thinking about it", "unsure", "k"} {
		assert.True(t, IsVague(msg), "expected vague: %q", msg)
	}
	for _, msg := range []string{"relocating for work", "$650,000", "30-45 days"} {
		assert.False(t, IsVague(msg), "unexpected vague: %q", msg)
	}
}
