// Package archetype holds the fixed personality catalogue used by profile
// analysis. Each archetype is defined by one pole on each trait axis.
package archetype

import "strings"

// Trait keys accepted in analysis requests.
const (
	TraitInvestment  = "investment"
	TraitRationality = "rationality"
	TraitOpenness    = "openness"
)

// Axis poles.
const (
	Invest    = "invest"
	Test      = "test"
	Rational  = "rational"
	Emotional = "emotional"
	Open      = "open"
	Guarded   = "guarded"
)

type Archetype struct {
	Label       string
	Investment  string
	Rationality string
	Openness    string
	Description string
}

// Axis describes one trait axis and its two poles as shown to the model.
type Axis struct {
	Key      string
	Name     string
	Positive string
	Negative string
}

var axes = []Axis{
	{
		Key:      TraitInvestment,
		Name:     "Investment",
		Positive: Invest + " (投资): commits deeply to a few people and interests",
		Negative: Test + " (测试): explores widely and moves on quickly",
	},
	{
		Key:      TraitRationality,
		Name:     "Rationality",
		Positive: Rational + " (理性): decides by logic and facts",
		Negative: Emotional + " (感性): decides by feeling and intuition",
	},
	{
		Key:      TraitOpenness,
		Name:     "Openness",
		Positive: Open + " (合理解释): talks problems through and explains herself",
		Negative: Guarded + " (回避): withdraws and avoids difficult topics",
	},
}

var catalogue = []Archetype{
	{
		Label: "Girl Next Door", Investment: Invest, Rationality: Emotional, Openness: Guarded,
		Description: "Warm, loyal and easy to be around, but slow to voice what bothers her. Trust is built through consistency and small gestures.",
	},
	{
		Label: "Ice Queen", Investment: Invest, Rationality: Rational, Openness: Guarded,
		Description: "Composed and selective. Keeps emotions private and tests reliability before letting anyone close; once committed she is steadfast.",
	},
	{
		Label: "Devoted Romantic", Investment: Invest, Rationality: Emotional, Openness: Open,
		Description: "Feels deeply and says so. Values closeness, rituals and reassurance, and expects the same emotional honesty in return.",
	},
	{
		Label: "Steady Strategist", Investment: Invest, Rationality: Rational, Openness: Open,
		Description: "Plans for the long term and resolves conflict by discussing it. Appreciates directness, follow-through and shared goals.",
	},
	{
		Label: "Free Spirit", Investment: Test, Rationality: Emotional, Openness: Open,
		Description: "Spontaneous and expressive, driven by novelty and mood. Responds to fun, variety and freedom rather than structure.",
	},
	{
		Label: "Dreamy Wanderer", Investment: Test, Rationality: Emotional, Openness: Guarded,
		Description: "Curious and sensitive but hard to pin down. Drifts away when pressured; needs space and a light touch.",
	},
	{
		Label: "Social Butterfly", Investment: Test, Rationality: Rational, Openness: Open,
		Description: "Outgoing, sharp and well connected. Enjoys banter and clear communication but keeps many options open.",
	},
	{
		Label: "Cool Observer", Investment: Test, Rationality: Rational, Openness: Guarded,
		Description: "Independent and analytical. Watches before engaging, avoids drama and values people who respect her pace.",
	},
}

// All returns a copy of the catalogue in its canonical order.
func All() []Archetype {
	out := make([]Archetype, len(catalogue))
	copy(out, catalogue)
	return out
}

// Axes returns the trait axes in canonical order.
func Axes() []Axis {
	out := make([]Axis, len(axes))
	copy(out, axes)
	return out
}

// Known reports whether label names a catalogue entry. Matching ignores case
// and surrounding whitespace.
func Known(label string) bool {
	_, ok := Lookup(label)
	return ok
}

func Lookup(label string) (Archetype, bool) {
	normalized := strings.TrimSpace(label)
	for _, item := range catalogue {
		if strings.EqualFold(item.Label, normalized) {
			return item, true
		}
	}
	return Archetype{}, false
}
