package qualify

import (
	"strconv"

	"github.com/leadflowhq/leadflow/types"
)

// Question is one slot in an agent's script: the prompt asked when the slot
// is open, the extractor that fills it, and how the answer scores.
type Question struct {
	Slot    string
	Prompt  string
	Extract func(body string) (string, bool)
	// Score rates a recorded answer between 0 and 1 for classification.
	Score func(answer string) float64
}

// Script is the ordered question set one agent works through.
type Script struct {
	Agent     types.AgentType
	Questions []Question
}

// Slots returns the script's slot names in asking order.
func (s Script) Slots() []string {
	out := make([]string, len(s.Questions))
	for i, q := range s.Questions {
		out[i] = q.Slot
	}
	return out
}

// NextUnanswered returns the first question with no recorded answer, or nil
// when the script is complete.
func (s Script) NextUnanswered(answers map[string]string) *Question {
	for i := range s.Questions {
		if _, ok := answers[s.Questions[i].Slot]; !ok {
			return &s.Questions[i]
		}
	}
	return nil
}

// Scripts returns the per-agent scripts keyed by agent type.
func Scripts() map[types.AgentType]Script {
	return map[types.AgentType]Script{
		types.AgentSeller: sellerScript(),
		types.AgentBuyer:  buyerScript(),
		types.AgentLead:   leadScript(),
	}
}

func sellerScript() Script {
	return Script{
		Agent: types.AgentSeller,
		Questions: []Question{
			{
				Slot:    "motivation",
				Prompt:  "What's got you thinking about selling?",
				Extract: ExtractMotivation,
				Score:   func(string) float64 { return 1 },
			},
			{
				Slot:   "timeline",
				Prompt: "If the numbers worked, how soon could you close? 30-45 days doable?",
				Extract: func(body string) (string, bool) {
					days, ok := ParseTimelineDays(body)
					if !ok {
						return "", false
					}
					return strconv.Itoa(days), true
				},
				Score: scoreTimeline(45, 90),
			},
			{
				Slot:    "condition",
				Prompt:  "How's the condition of the place? Move-in ready, or does it need some work?",
				Extract: NormalizeCondition,
				Score:   func(string) float64 { return 1 },
			},
			{
				Slot:   "price",
				Prompt: "What number did you have in mind for the property?",
				Extract: func(body string) (string, bool) {
					v, ok := ParseCurrency(body)
					if !ok {
						return "", false
					}
					return strconv.Itoa(v), true
				},
				Score: func(answer string) float64 {
					if v, err := strconv.Atoi(answer); err == nil && v >= 10000 {
						return 1
					}
					return 0.5
				},
			},
		},
	}
}

func buyerScript() Script {
	return Script{
		Agent: types.AgentBuyer,
		Questions: []Question{
			{
				Slot:   "budget",
				Prompt: "What budget range are you working with?",
				Extract: func(body string) (string, bool) {
					v, ok := ParseCurrency(body)
					if !ok {
						return "", false
					}
					return strconv.Itoa(v), true
				},
				Score: func(string) float64 { return 1 },
			},
			{
				Slot:    "financing",
				Prompt:  "Are you pre-approved with a lender, or paying cash?",
				Extract: ExtractFinancing,
				Score: func(answer string) float64 {
					switch answer {
					case "pre-approved", "cash":
						return 1
					case "pre-qualified":
						return 0.7
					}
					return 0.3
				},
			},
			{
				Slot:   "timeline",
				Prompt: "When are you hoping to be in the new place?",
				Extract: func(body string) (string, bool) {
					days, ok := ParseTimelineDays(body)
					if !ok {
						return "", false
					}
					return strconv.Itoa(days), true
				},
				Score: scoreTimeline(60, 120),
			},
			{
				Slot:    "area",
				Prompt:  "Which areas or neighborhoods are you focused on?",
				Extract: ExtractArea,
				Score:   func(string) float64 { return 1 },
			},
		},
	}
}

func leadScript() Script {
	return Script{
		Agent: types.AgentLead,
		Questions: []Question{
			{
				Slot:    "intent",
				Prompt:  "Are you looking to buy, sell, or just exploring the market?",
				Extract: ExtractIntent,
				Score: func(answer string) float64 {
					if answer == "browse" {
						return 0.2
					}
					return 1
				},
			},
			{
				Slot:    "area",
				Prompt:  "Which area is the property in, or where are you looking?",
				Extract: ExtractArea,
				Score:   func(string) float64 { return 1 },
			},
			{
				Slot:   "timeline",
				Prompt: "What's your timeline looking like?",
				Extract: func(body string) (string, bool) {
					days, ok := ParseTimelineDays(body)
					if !ok {
						return "", false
					}
					return strconv.Itoa(days), true
				},
				Score: scoreTimeline(45, 120),
			},
		},
	}
}

// scoreTimeline grades a day-count answer: full credit at or under fast,
// half credit at or under slow, low credit beyond.
func scoreTimeline(fast, slow int) func(string) float64 {
	return func(answer string) float64 {
		days, err := strconv.Atoi(answer)
		if err != nil {
			return 0.5
		}
		switch {
		case days <= fast:
			return 1
		case days <= slow:
			return 0.5
		default:
			return 0.2
		}
	}
}
