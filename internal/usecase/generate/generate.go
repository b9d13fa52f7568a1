// Package generate renders registry prompts and runs them through the
// completion provider.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/domain"
	"github.com/minuted/minuted/internal/prompt"
)

const systemPrompt = "You are a helpful assistant."

// PromptReader is the registry contract the service depends on.
type PromptReader interface {
	Get(name string) (prompt.Definition, bool)
	Names() []string
}

type Service struct {
	prompts   PromptReader
	completer domain.Completer
	logger    *zap.Logger
}

func NewService(prompts PromptReader, completer domain.Completer, logger *zap.Logger) *Service {
	return &Service{prompts: prompts, completer: completer, logger: logger}
}

// Generate renders the named prompt with vars and returns the
// completion text. The prompt's output format, when present, is
// appended to the user prompt as formatting instructions.
func (s *Service) Generate(ctx context.Context, name string, vars map[string]string) (string, error) {
	def, ok := s.prompts.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrPromptNotFound, name)
	}

	userPrompt, err := BuildUserPrompt(def, vars)
	if err != nil {
		return "", err
	}

	result, err := s.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("generate %q: %w", name, err)
	}

	s.logger.Debug("Prompt generated",
		zap.String("prompt", name),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens))

	return result.Text, nil
}

// BuildUserPrompt appends the format instructions to the template and
// fills the combined text. The instructions are brace-escaped before
// filling, so their braces come out literal in the rendered prompt.
func BuildUserPrompt(def prompt.Definition, vars map[string]string) (string, error) {
	combined := def.Template + "\n\nOutput Format Instructions:\n" + formatInstructions(def.OutputFormat)
	return fillTemplate(combined, vars)
}

// formatInstructions renders the output format as indented JSON with
// braces escaped, or "{}" when no format is declared.
func formatInstructions(raw json.RawMessage) string {
	if len(raw) == 0 {
		return escapeBraces("{}")
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return escapeBraces(string(raw))
	}
	indented, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return escapeBraces(string(raw))
	}
	return escapeBraces(string(indented))
}

func escapeBraces(s string) string {
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}

// fillTemplate substitutes {name} placeholders from vars. Doubled
// braces are literals: {{ renders as { and }} as }. An unknown
// placeholder is a MissingVariableError; an unpaired brace is an
// error.
func fillTemplate(template string, vars map[string]string) (string, error) {
	var out strings.Builder
	runes := []rune(template)

	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '{':
			if i+1 < len(runes) && runes[i+1] == '{' {
				out.WriteRune('{')
				i++
				continue
			}
			end := indexRune(runes, i+1, '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder at offset %d: %w",
					i, domain.ErrMissingVariable)
			}
			name := string(runes[i+1 : end])
			value, ok := vars[name]
			if !ok {
				return "", domain.NewMissingVariable(name)
			}
			out.WriteString(value)
			i = end
		case '}':
			if i+1 < len(runes) && runes[i+1] == '}' {
				out.WriteRune('}')
				i++
				continue
			}
			return "", fmt.Errorf("unmatched '}' at offset %d: %w",
				i, domain.ErrMissingVariable)
		default:
			out.WriteRune(runes[i])
		}
	}

	return out.String(), nil
}

func indexRune(runes []rune, from int, r rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
