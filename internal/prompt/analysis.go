package prompt

import (
	"fmt"
	"strings"

	"cyberwill/backend/internal/archetype"
)

// DefaultTrait is rendered for a trait the client did not send.
const DefaultTrait = "unknown"

// conflictAlias is the key older clients use for the openness axis.
const conflictAlias = "conflict"

type Profile struct {
	Name   string
	Stage  string
	Traits map[string]string
}

// Trait returns the trimmed value for key, or DefaultTrait when it is missing
// or blank.
func (p Profile) Trait(key string) string {
	if value := strings.TrimSpace(p.Traits[key]); value != "" {
		return value
	}
	if key == archetype.TraitOpenness {
		if value := strings.TrimSpace(p.Traits[conflictAlias]); value != "" {
			return value
		}
	}
	return DefaultTrait
}

// Analysis renders the archetype classification prompt for profile.
func Analysis(profile Profile) string {
	var b strings.Builder

	b.WriteString("You are a relationship psychologist. Classify the person below into exactly one of the 8 archetypes.\n\n")

	b.WriteString("Person:\n")
	fmt.Fprintf(&b, "- Name: %s\n", profile.Name)
	fmt.Fprintf(&b, "- Relationship stage: %s\n", profile.Stage)
	for _, axis := range archetype.Axes() {
		fmt.Fprintf(&b, "- %s: %s\n", axis.Name, profile.Trait(axis.Key))
	}

	b.WriteString("\nTrait axes:\n")
	for _, axis := range archetype.Axes() {
		fmt.Fprintf(&b, "- %s: %s | %s\n", axis.Name, axis.Positive, axis.Negative)
	}

	b.WriteString("\nArchetypes:\n")
	for i, item := range archetype.All() {
		fmt.Fprintf(&b, "%d. %s (%s + %s + %s): %s\n",
			i+1, item.Label, item.Investment, item.Rationality, item.Openness, item.Description)
	}

	b.WriteString("\nIf a trait is unknown, infer it from the other traits and the relationship stage.\n")
	b.WriteString("Write the analysis in the same language as the person's name, in 2 to 4 sentences, with one concrete suggestion for the user.\n")
	b.WriteString(`Return only compact JSON on a single line: {"archetype": "<one label from the list above>", "analysis": "<text>"}.` + "\n")
	b.WriteString("Do not use Markdown, code fences or any text outside the JSON object.")

	return b.String()
}
