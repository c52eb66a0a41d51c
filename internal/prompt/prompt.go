// Package prompt builds the text sent to a provider from request input,
// optional profile context and fixed instructions.
package prompt

import (
	"fmt"
	"strings"

	"cyberwill/backend/internal/config"
	"cyberwill/backend/internal/provider"
)

const separator = "\n\n"

// Compose joins instructions, profile context and the user input in that
// order, separated by a blank line. Nil or empty optional segments are
// skipped; any other segment, whitespace-only included, is copied unmodified.
func Compose(userInput string, profileContext, instructions *string) string {
	segments := make([]string, 0, 3)
	if present(instructions) {
		segments = append(segments, *instructions)
	}
	if present(profileContext) {
		segments = append(segments, *profileContext)
	}
	segments = append(segments, userInput)
	return strings.Join(segments, separator)
}

func present(value *string) bool {
	return value != nil && *value != ""
}

type Input struct {
	User           string
	ProfileContext *string
	Instructions   *string
}

// Assembler turns request input into the prompt shape a binding expects.
type Assembler interface {
	Assemble(in Input) provider.Prompt
}

// Inline places everything, instructions included, in the user prompt.
type Inline struct{}

func (Inline) Assemble(in Input) provider.Prompt {
	return provider.Prompt{User: Compose(in.User, in.ProfileContext, in.Instructions)}
}

// SystemRole sends instructions as a separate system message.
type SystemRole struct{}

func (SystemRole) Assemble(in Input) provider.Prompt {
	out := provider.Prompt{User: Compose(in.User, in.ProfileContext, nil)}
	if present(in.Instructions) {
		out.System = *in.Instructions
	}
	return out
}

func NewAssembler(strategy string) (Assembler, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case config.StrategyInline:
		return Inline{}, nil
	case config.StrategySystemRole:
		return SystemRole{}, nil
	default:
		return nil, fmt.Errorf("unsupported prompt strategy %q", strategy)
	}
}
