// Package retrieval turns a question into retrieved transcript context.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/minuted/minuted/internal/domain"
)

const defaultTopK = 3

// index is the consumer interface for retrieval (ISP).
type index interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error)
}

type Service struct {
	index    index
	embedder domain.Embedder
	topK     int
}

type Option func(*Service)

func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

func NewService(idx index, embedder domain.Embedder, opts ...Option) *Service {
	s := &Service{index: idx, embedder: embedder, topK: defaultTopK}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assemble embeds the question, queries the namespace and joins the
// matched chunk texts. An empty string means nothing was retrieved.
func (s *Service) Assemble(ctx context.Context, namespace, question string) (string, error) {
	result, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}

	matches, err := s.index.Query(ctx, namespace, result.Embedding, s.topK)
	if err != nil {
		return "", fmt.Errorf("query %q: %w", namespace, err)
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if text := m.Metadata[domain.MetaText]; text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}
