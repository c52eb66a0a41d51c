// Package extract recovers the archetype result from free-form model output.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// FallbackArchetype is returned when no JSON object can be recovered.
const FallbackArchetype = "unknown type"

type Result struct {
	Archetype string `json:"archetype"`
	Analysis  string `json:"analysis"`
}

// Clean removes every ```json and ``` marker and trims surrounding whitespace.
func Clean(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// Archetype parses raw model output and never fails; see Parse.
func Archetype(raw string) Result {
	result, _ := Parse(raw)
	return result
}

// Parse parses raw model output. A strictly valid JSON object is returned
// as-is. Otherwise the outermost {...} span is tried, then a repaired version
// of it; those recovered objects must name an archetype. When everything
// fails the cleaned text becomes the analysis of a fallback result and ok is
// false. A model that itself answers FallbackArchetype still yields ok.
func Parse(raw string) (result Result, ok bool) {
	cleaned := Clean(raw)

	if result, ok := decode(cleaned); ok {
		return result, true
	}

	candidate := cleaned
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		candidate = cleaned[start : end+1]
		if result, ok := decode(candidate); ok && named(result) {
			return result, true
		}
	}

	if repaired, err := jsonrepair.JSONRepair(candidate); err == nil {
		if result, ok := decode(repaired); ok && named(result) {
			return result, true
		}
	}

	return Result{Archetype: FallbackArchetype, Analysis: cleaned}, false
}

func decode(text string) (Result, bool) {
	var parsed *Result
	if err := json.Unmarshal([]byte(text), &parsed); err != nil || parsed == nil {
		return Result{}, false
	}
	return *parsed, true
}

func named(r Result) bool {
	return strings.TrimSpace(r.Archetype) != ""
}
