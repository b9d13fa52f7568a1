package domain

import "context"

// EmbeddingResult holds a vector and the token usage of the embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// CompletionResult holds generated text and the token usage of the call.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer runs a single-turn chat exchange against a completion provider.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (CompletionResult, error)
}
