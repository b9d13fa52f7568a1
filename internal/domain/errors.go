package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrNamespaceCheck signals that the vector store was unreachable during the ingestion check.
	ErrNamespaceCheck = errors.New("namespace check failed")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrCompletionProvider signals a completion provider failure.
	ErrCompletionProvider = errors.New("completion provider error")
	// ErrPromptNotFound signals a prompt name absent from the registry.
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrMissingVariable signals a template placeholder with no supplied value.
	ErrMissingVariable = errors.New("missing prompt variable")
	// ErrNoContext signals empty retrieval before any generation has been cached.
	ErrNoContext = errors.New("no context found")
)

// MissingVariableError wraps ErrMissingVariable with the placeholder name.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingVariable.Error(), e.Name)
}

func (e *MissingVariableError) Unwrap() error { return ErrMissingVariable }

// NewMissingVariable creates a missing variable error for a placeholder name.
func NewMissingVariable(name string) error {
	return &MissingVariableError{Name: name}
}
