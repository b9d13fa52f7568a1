package minuted

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/chunker"
	"github.com/minuted/minuted/internal/db"
	dbRedis "github.com/minuted/minuted/internal/db/redis"
	"github.com/minuted/minuted/internal/domain"
	"github.com/minuted/minuted/internal/prompt"
	"github.com/minuted/minuted/internal/repository/embcache"
	anchoruc "github.com/minuted/minuted/internal/usecase/anchor"
	generateuc "github.com/minuted/minuted/internal/usecase/generate"
	ingestuc "github.com/minuted/minuted/internal/usecase/ingest"
	retrievaluc "github.com/minuted/minuted/internal/usecase/retrieval"
	transcriptuc "github.com/minuted/minuted/internal/usecase/transcript"
	"github.com/minuted/minuted/internal/vectorstore/redis"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultDimensions       = 384
)

// EmbeddingResult is an embedding vector with token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// CompletionResult is a completion with token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer runs a single-turn chat completion.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (CompletionResult, error)
}

// ProcessResult reports what processing a transcript did.
type ProcessResult struct {
	Status     string
	Namespace  string
	Filename   string
	UploadedAt string
}

// PromptResult is an ad-hoc prompt answer. Context is "[CACHED]" when
// the answer came from the anchor cache.
type PromptResult struct {
	Answer  string
	Context string
	Cached  bool
}

// QueryResult is an answer to a question with its retrieved context.
type QueryResult struct {
	Answer  string
	Context string
}

// Upload describes one ingested namespace.
type Upload struct {
	Namespace  string
	Filename   string
	UploadedAt string
}

// Client is the minuted SDK entry point.
type Client struct {
	store       db.Store
	transcripts *transcriptuc.Service
}

// New creates a minuted Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dimensions: defaultDimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	store := cfg.store
	if store == nil {
		if len(cfg.addrs) == 0 {
			return nil, errors.New("minuted: database address required (use WithRedis)")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("minuted: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("minuted: database not ready: %w", err)
		}
		store = s
	}

	return wireClient(store, cfg), nil
}

func wireClient(store db.Store, cfg *clientConfig) *Client {
	logger := cfg.logger

	var embedder domain.Embedder = &noopEmbedder{}
	if cfg.embedder != nil {
		embedder = embcache.New(
			&embedderAdapter{inner: cfg.embedder}, store, nil, logger)
	}

	var completer domain.Completer = &noopCompleter{}
	if cfg.completer != nil {
		completer = &completerAdapter{inner: cfg.completer}
	}

	prompts := prompt.Load(cfg.promptsPath, logger)
	index := redis.NewIndex(store, logger)

	generateSvc := generateuc.NewService(prompts, completer, logger)
	anchorCache := anchoruc.NewCache(index, cfg.dimensions, nil, logger)
	splitter := chunker.New(cfg.chunkSize, cfg.chunkOverlap)
	ingestSvc := ingestuc.NewService(index, embedder, splitter, generateSvc, logger)

	retrievalOpts := []retrievaluc.Option{}
	if cfg.topK > 0 {
		retrievalOpts = append(retrievalOpts, retrievaluc.WithTopK(cfg.topK))
	}
	retrievalSvc := retrievaluc.NewService(index, embedder, retrievalOpts...)

	transcripts := transcriptuc.NewService(
		ingestSvc, anchorCache, retrievalSvc, generateSvc, prompts, index, logger)

	return &Client{store: store, transcripts: transcripts}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Process ingests a transcript and generates the standard artifacts.
func (c *Client) Process(ctx context.Context, namespace, transcript, filename string) (ProcessResult, error) {
	r, err := c.transcripts.Process(ctx, namespace, transcript, filename)
	if err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{
		Status:     r.Status,
		Namespace:  r.Namespace,
		Filename:   r.Filename,
		UploadedAt: r.UploadedAt,
	}, nil
}

// RunPrompt answers an ad-hoc registry prompt against a namespace.
func (c *Client) RunPrompt(ctx context.Context, namespace, transcript, promptName string) (PromptResult, error) {
	r, err := c.transcripts.RunPrompt(ctx, namespace, transcript, promptName)
	if err != nil {
		return PromptResult{}, err
	}
	return PromptResult{Answer: r.Answer, Context: r.Context, Cached: r.Cached}, nil
}

// Query answers a question against an ingested namespace.
func (c *Client) Query(ctx context.Context, namespace, question string) (QueryResult, error) {
	r, err := c.transcripts.Query(ctx, namespace, question)
	if err != nil {
		return QueryResult{}, err
	}
	return QueryResult{Answer: r.Answer, Context: r.Context}, nil
}

// ListUploads enumerates ingested namespaces.
func (c *Client) ListUploads(ctx context.Context) ([]Upload, error) {
	uploads, err := c.transcripts.ListUploads(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Upload, len(uploads))
	for i, u := range uploads {
		out[i] = Upload{Namespace: u.Namespace, Filename: u.Filename, UploadedAt: u.UploadedAt}
	}
	return out, nil
}

// DeleteNamespace removes a namespace and everything in it.
func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	return c.transcripts.DeleteNamespace(ctx, namespace)
}

// Prompts lists the registered prompt names.
func (c *Client) Prompts() []string {
	return c.transcripts.Prompts()
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// completerAdapter wraps the public Completer to satisfy internal domain.Completer.
type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(ctx context.Context, system, user string) (domain.CompletionResult, error) {
	r, err := a.inner.Complete(ctx, system, user)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}
	return domain.CompletionResult{
		Text:             r.Text,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		TotalTokens:      r.TotalTokens,
	}, nil
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"minuted: embedder not configured (use WithEmbedder)",
	)
}

// noopCompleter returns an error on Complete call (used when no completer configured).
type noopCompleter struct{}

func (noopCompleter) Complete(_ context.Context, _, _ string) (domain.CompletionResult, error) {
	return domain.CompletionResult{}, errors.New(
		"minuted: completer not configured (use WithCompleter)",
	)
}
