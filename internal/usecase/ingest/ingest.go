// Package ingest turns raw transcript text into embedded chunks stored
// in the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/domain"
)

const cleaningPrompt = "preprocessing_prompt"

// Ingest statuses.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
)

// index is the consumer interface for ingestion (ISP).
type index interface {
	Count(ctx context.Context, namespace string) (int, error)
	Upsert(ctx context.Context, namespace string, records []domain.Record) error
}

type splitter interface {
	Split(text string) []string
}

type generator interface {
	Generate(ctx context.Context, name string, vars map[string]string) (string, error)
}

type Service struct {
	index     index
	embedder  domain.Embedder
	splitter  splitter
	generator generator
	logger    *zap.Logger
}

func NewService(idx index, embedder domain.Embedder, s splitter, g generator, logger *zap.Logger) *Service {
	return &Service{index: idx, embedder: embedder, splitter: s, generator: g, logger: logger}
}

// Result reports what ingestion did for a namespace.
type Result struct {
	Status    string
	Chunks    int
	Timestamp string
}

// Ingest stores a transcript in the namespace unless it already holds
// vectors, in which case ingestion is skipped. Re-ingesting different
// text into an occupied namespace requires deleting it first.
func (s *Service) Ingest(ctx context.Context, namespace, text, filename string) (Result, error) {
	count, err := s.index.Count(ctx, namespace)
	if err != nil {
		return Result{}, fmt.Errorf("%w: count vectors in %q: %w", domain.ErrNamespaceCheck, namespace, err)
	}
	if count > 0 {
		s.logger.Info("Namespace already ingested, skipping",
			zap.String("namespace", namespace),
			zap.Int("existing_chunks", count))
		return Result{Status: StatusSkipped, Chunks: count}, nil
	}

	cleaned, err := s.clean(ctx, namespace, text)
	if err != nil {
		return Result{}, err
	}

	chunks := s.splitter.Split(cleaned)
	if len(chunks) == 0 {
		return Result{}, fmt.Errorf("transcript for %q produced no chunks", namespace)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	records := make([]domain.Record, 0, len(chunks))
	for i, chunk := range chunks {
		emb, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			s.logger.Warn("Failed to embed chunk, dropping it",
				zap.String("namespace", namespace),
				zap.Int("chunk", i),
				zap.Error(err))
			continue
		}
		records = append(records, domain.Record{
			ID:     uuid.NewString(),
			Vector: emb.Embedding,
			Metadata: map[string]string{
				domain.MetaText:      chunk,
				domain.MetaChunk:     strconv.Itoa(i),
				domain.MetaFilename:  filename,
				domain.MetaTimestamp: now,
			},
		})
	}
	if len(records) == 0 {
		s.logger.Error("All chunks failed to embed, nothing stored",
			zap.String("namespace", namespace),
			zap.Int("chunks", len(chunks)))
		return Result{Status: StatusProcessed, Chunks: 0, Timestamp: now}, nil
	}

	if err := s.index.Upsert(ctx, namespace, records); err != nil {
		return Result{}, fmt.Errorf("store transcript for %q: %w", namespace, err)
	}

	s.logger.Info("Transcript ingested",
		zap.String("namespace", namespace),
		zap.Int("chunks", len(records)))

	return Result{Status: StatusProcessed, Chunks: len(records), Timestamp: now}, nil
}

// clean runs the transcript through the cleaning prompt. A registry
// without that prompt falls back to the raw text; a provider failure
// aborts ingestion so a half-cleaned transcript is never stored.
func (s *Service) clean(ctx context.Context, namespace, text string) (string, error) {
	cleaned, err := s.generator.Generate(ctx, cleaningPrompt, map[string]string{"transcript": text})
	if err != nil {
		if errors.Is(err, domain.ErrPromptNotFound) {
			s.logger.Warn("Cleaning prompt not in registry, using raw transcript",
				zap.String("namespace", namespace))
			return text, nil
		}
		return "", fmt.Errorf("clean transcript for %q: %w", namespace, err)
	}
	if cleaned == "" {
		return text, nil
	}
	return cleaned, nil
}
