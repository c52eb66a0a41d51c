package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArchetypeParsesFencedJSON(t *testing.T) {
	got := Archetype("```json\n{\"archetype\":\"Ice Queen\",\"analysis\":\"x\"}\n```")
	assert.Equal(t, Result{Archetype: "Ice Queen", Analysis: "x"}, got)
}

func TestArchetypeFallsBackOnPlainText(t *testing.T) {
	got := Archetype("not json at all")
	assert.Equal(t, Result{Archetype: "unknown type", Analysis: "not json at all"}, got)
}

func TestParseReportsFallback(t *testing.T) {
	got, ok := Parse("not json at all")
	assert.False(t, ok)
	assert.Equal(t, FallbackArchetype, got.Archetype)

	got, ok = Parse(`{"archetype":"Ice Queen","analysis":"x"}`)
	assert.True(t, ok)
	assert.Equal(t, "Ice Queen", got.Archetype)
}

func TestParseAcceptsModelAnswerMatchingFallbackLabel(t *testing.T) {
	got, ok := Parse(`{"archetype":"unknown type","analysis":"Not enough to go on."}`)
	assert.True(t, ok)
	assert.Equal(t, Result{Archetype: FallbackArchetype, Analysis: "Not enough to go on."}, got)
}

func TestArchetypeFallbackUsesCleanedText(t *testing.T) {
	got := Archetype("```\n  sorry, I cannot classify her  \n```")
	assert.Equal(t, Result{Archetype: FallbackArchetype, Analysis: "sorry, I cannot classify her"}, got)
}

func TestArchetypeReturnsStrictParseAsIs(t *testing.T) {
	got := Archetype(`{"archetype":"Moon Child","analysis":""}`)
	assert.Equal(t, Result{Archetype: "Moon Child"}, got, "labels outside the catalogue pass through")
}

func TestArchetypeExtractsObjectFromProse(t *testing.T) {
	got := Archetype("Here you go: {\"archetype\":\"Free Spirit\",\"analysis\":\"Loves novelty.\"} Hope it helps!")
	assert.Equal(t, Result{Archetype: "Free Spirit", Analysis: "Loves novelty."}, got)
}

func TestArchetypeRepairsTrailingComma(t *testing.T) {
	got := Archetype(`{"archetype":"Cool Observer","analysis":"Independent.",}`)
	assert.Equal(t, Result{Archetype: "Cool Observer", Analysis: "Independent."}, got)
}

func TestArchetypeRepairsSingleQuotes(t *testing.T) {
	got := Archetype(`{'archetype': 'Social Butterfly', 'analysis': 'Outgoing.'}`)
	assert.Equal(t, Result{Archetype: "Social Butterfly", Analysis: "Outgoing."}, got)
}

func TestArchetypeRejectsRepairWithoutLabel(t *testing.T) {
	raw := `{"analysis": "no label",}`
	got := Archetype(raw)
	assert.Equal(t, FallbackArchetype, got.Archetype)
	assert.Equal(t, raw, got.Analysis)
}

func TestArchetypeTreatsJSONNullAsFailure(t *testing.T) {
	got := Archetype("null")
	assert.Equal(t, Result{Archetype: FallbackArchetype, Analysis: "null"}, got)
}

func TestClean(t *testing.T) {
	assert.Equal(t, `{"a":1}`, Clean("  ```json\n{\"a\":1}\n```  "))
	assert.Equal(t, "ab", Clean("a```b"))
	assert.Equal(t, "", Clean("```json```"))
}
