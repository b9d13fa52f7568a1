// Package prompt loads the prompt registry: named templates with
// declared input variables and an optional JSON output format.
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
)

// Definition is a single registry entry.
type Definition struct {
	Template       string          `json:"prompt_template"`
	InputVariables []string        `json:"input_variables"`
	OutputFormat   json.RawMessage `json:"output_format,omitempty"`
}

// Registry is an immutable set of prompt definitions loaded at startup.
type Registry struct {
	defs map[string]Definition
}

// Load reads the registry file. A missing or malformed file degrades to
// an empty registry with a warning, so the service still starts and
// falls back to raw-text behavior where a prompt would have applied.
func Load(path string, logger *zap.Logger) *Registry {
	defs, err := loadFile(path)
	if err != nil {
		logger.Warn("Prompt registry unavailable, starting empty",
			zap.String("path", path),
			zap.Error(err))
		return &Registry{defs: map[string]Definition{}}
	}

	logger.Info("Prompt registry loaded",
		zap.String("path", path),
		zap.Int("prompts", len(defs)))
	return &Registry{defs: defs}
}

func loadFile(path string) (map[string]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var defs map[string]Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return defs, nil
}

// Get returns the named definition.
func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all prompt names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
