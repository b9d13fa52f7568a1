// Package transcript orchestrates the transcript pipeline: ingestion,
// artifact generation, ad-hoc prompts and namespace management. The
// anchor record caches every LLM-derived artifact, so repeat requests
// for the same namespace cost zero completion tokens.
package transcript

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/domain"
	"github.com/minuted/minuted/internal/prompt"
	"github.com/minuted/minuted/internal/usecase/ingest"
)

// Prompt names the orchestrator drives.
const (
	summaryPrompt     = "summary_prompt"
	taskPrompt        = "task_extraction_prompt"
	structuringPrompt = "json_structuring_prompt"
	queryPrompt       = "query_prompt"
)

// CachedContext marks responses served from the anchor cache without
// any retrieval.
const CachedContext = "[CACHED]"

const defaultLanguage = "English"

// Processing statuses.
const (
	StatusProcessed = "processed"
	StatusCached    = "cached"
)

// Ingester stores a transcript in a namespace.
type Ingester interface {
	Ingest(ctx context.Context, namespace, text, filename string) (ingest.Result, error)
}

// AnchorCache reads and writes the per-namespace artifact map.
type AnchorCache interface {
	Get(ctx context.Context, namespace string) map[string]string
	Put(ctx context.Context, namespace string, artifacts map[string]string) error
}

// ContextAssembler retrieves transcript context for a question.
type ContextAssembler interface {
	Assemble(ctx context.Context, namespace, question string) (string, error)
}

// Generator runs a registry prompt through the completion provider.
type Generator interface {
	Generate(ctx context.Context, name string, vars map[string]string) (string, error)
}

// PromptReader exposes the loaded prompt registry.
type PromptReader interface {
	Get(name string) (prompt.Definition, bool)
	Names() []string
}

// index is the namespace-level index contract the orchestrator needs.
type index interface {
	Namespaces(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, namespace string) error
}

type Service struct {
	ingester  Ingester
	anchor    AnchorCache
	assembler ContextAssembler
	generator Generator
	prompts   PromptReader
	index     index
	logger    *zap.Logger
}

func NewService(
	ingester Ingester,
	anchor AnchorCache,
	assembler ContextAssembler,
	generator Generator,
	prompts PromptReader,
	idx index,
	logger *zap.Logger,
) *Service {
	return &Service{
		ingester:  ingester,
		anchor:    anchor,
		assembler: assembler,
		generator: generator,
		prompts:   prompts,
		index:     idx,
		logger:    logger,
	}
}

// ProcessResult is the outcome of processing a transcript.
type ProcessResult struct {
	Status     string
	Namespace  string
	Filename   string
	UploadedAt string
}

// Process ingests the transcript and produces the standard artifacts:
// summary, task list and structured output. Artifacts already in the
// anchor are reused; when all three are cached no completion runs.
func (s *Service) Process(ctx context.Context, namespace, text, filename string) (ProcessResult, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := s.ingester.Ingest(ctx, namespace, text, filename); err != nil {
		return ProcessResult{}, err
	}

	cached := s.anchor.Get(ctx, namespace)
	summary := cached[domain.ArtifactSummary]
	tasks := cached[domain.ArtifactTasks]
	structured := cached[domain.ArtifactStructured]

	if summary != "" && tasks != "" && structured != "" {
		s.logger.Info("All artifacts cached, skipping generation",
			zap.String("namespace", namespace))
		return ProcessResult{
			Status:     StatusCached,
			Namespace:  namespace,
			Filename:   filename,
			UploadedAt: now,
		}, nil
	}

	retrieved, err := s.assembler.Assemble(ctx, namespace, text)
	if err != nil {
		return ProcessResult{}, err
	}

	if summary == "" {
		summary, err = s.generator.Generate(ctx, summaryPrompt, map[string]string{"transcript": retrieved})
		if err != nil {
			return ProcessResult{}, fmt.Errorf("generate summary for %q: %w", namespace, err)
		}
	}
	if tasks == "" {
		tasks, err = s.generator.Generate(ctx, taskPrompt, map[string]string{"transcript": retrieved})
		if err != nil {
			return ProcessResult{}, fmt.Errorf("extract tasks for %q: %w", namespace, err)
		}
	}
	if structured == "" {
		// the structuring pass works on the task list, not the raw context
		structured, err = s.generator.Generate(ctx, structuringPrompt, map[string]string{"transcript": tasks})
		if err != nil {
			return ProcessResult{}, fmt.Errorf("structure tasks for %q: %w", namespace, err)
		}
	}

	merged := maps.Clone(cached)
	merged[domain.ArtifactSummary] = summary
	merged[domain.ArtifactTasks] = tasks
	merged[domain.ArtifactStructured] = structured
	merged[domain.MetaFilename] = filename
	merged[domain.MetaTimestamp] = now
	s.putAnchor(ctx, namespace, merged)

	return ProcessResult{
		Status:     StatusProcessed,
		Namespace:  namespace,
		Filename:   filename,
		UploadedAt: now,
	}, nil
}

// PromptResult is the outcome of an ad-hoc prompt run.
type PromptResult struct {
	Answer  string
	Context string
	Cached  bool
}

// RunPrompt answers an ad-hoc registry prompt against a namespace. A
// previous answer for the same prompt name is served straight from the
// anchor with no retrieval and no completion.
func (s *Service) RunPrompt(ctx context.Context, namespace, text, promptName string) (PromptResult, error) {
	cached := s.anchor.Get(ctx, namespace)
	if answer, ok := cached[promptName]; ok {
		s.logger.Info("Serving cached prompt answer",
			zap.String("namespace", namespace),
			zap.String("prompt", promptName))
		return PromptResult{Answer: answer, Context: CachedContext, Cached: true}, nil
	}

	retrieved, err := s.assembler.Assemble(ctx, namespace, text)
	if err != nil {
		return PromptResult{}, err
	}
	if retrieved == "" {
		return PromptResult{}, fmt.Errorf("%w: namespace %q has no transcript, process it first",
			domain.ErrNoContext, namespace)
	}

	def, ok := s.prompts.Get(promptName)
	if !ok {
		return PromptResult{}, fmt.Errorf("%w: %q", domain.ErrPromptNotFound, promptName)
	}

	vars := make(map[string]string, len(def.InputVariables))
	for _, name := range def.InputVariables {
		switch name {
		case "transcript":
			vars[name] = retrieved
		case "question":
			vars[name] = text
		case "language":
			vars[name] = defaultLanguage
		}
	}

	answer, err := s.generator.Generate(ctx, promptName, vars)
	if err != nil {
		return PromptResult{}, err
	}

	merged := maps.Clone(cached)
	merged[promptName] = answer
	s.putAnchor(ctx, namespace, merged)

	return PromptResult{Answer: answer, Context: retrieved}, nil
}

// QueryResult is the outcome of a question against a namespace.
type QueryResult struct {
	Answer  string
	Context string
}

// Query retrieves context for the question and answers it through the
// query prompt. Questions are never cached.
func (s *Service) Query(ctx context.Context, namespace, question string) (QueryResult, error) {
	retrieved, err := s.assembler.Assemble(ctx, namespace, question)
	if err != nil {
		return QueryResult{}, err
	}
	if retrieved == "" {
		return QueryResult{}, fmt.Errorf("%w: namespace %q has no transcript, process it first",
			domain.ErrNoContext, namespace)
	}

	answer, err := s.generator.Generate(ctx, queryPrompt, map[string]string{
		"transcript": retrieved,
		"question":   question,
	})
	if err != nil {
		return QueryResult{}, err
	}

	return QueryResult{Answer: answer, Context: retrieved}, nil
}

// Upload describes one ingested namespace.
type Upload struct {
	Namespace  string
	Filename   string
	UploadedAt string
}

// ListUploads enumerates namespaces with their anchor-recorded
// filename and upload time. Namespaces without those fields report
// "N/A" rather than being hidden.
func (s *Service) ListUploads(ctx context.Context) ([]Upload, error) {
	namespaces, err := s.index.Namespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}

	uploads := make([]Upload, 0, len(namespaces))
	for _, ns := range namespaces {
		meta := s.anchor.Get(ctx, ns)
		uploads = append(uploads, Upload{
			Namespace:  ns,
			Filename:   orNA(meta[domain.MetaFilename]),
			UploadedAt: orNA(meta[domain.MetaTimestamp]),
		})
	}
	return uploads, nil
}

// DeleteNamespace removes a namespace and its anchor. Re-processing the
// same namespace afterwards is treated as first-time ingestion.
func (s *Service) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := s.index.Delete(ctx, namespace); err != nil {
		return err
	}
	s.logger.Info("Namespace deleted", zap.String("namespace", namespace))
	return nil
}

// Prompts lists the registered prompt names.
func (s *Service) Prompts() []string {
	return s.prompts.Names()
}

// putAnchor writes the artifact map back. A failed cache write costs a
// regeneration later, never the current request.
func (s *Service) putAnchor(ctx context.Context, namespace string, artifacts map[string]string) {
	if err := s.anchor.Put(ctx, namespace, artifacts); err != nil {
		s.logger.Warn("Failed to cache artifacts",
			zap.String("namespace", namespace),
			zap.Error(err))
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
