package minuted

import (
	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/db"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	embedder  Embedder
	completer Completer

	promptsPath  string
	dimensions   int
	chunkSize    int
	chunkOverlap int
	topK         int

	logger *zap.Logger

	// test hook: bypass the real database
	store db.Store
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets the completion provider. Required for artifact
// generation; ingestion of pre-cleaned transcripts works without it.
func WithCompleter(cp Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cp
	})
}

// WithPromptRegistry sets the prompt registry file path. Without it the
// registry is empty and every generation fails with a prompt-not-found
// error.
func WithPromptRegistry(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.promptsPath = path
	})
}

// WithDimensions sets the embedding vector dimension. Defaults to 384.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithChunking sets the chunk size and overlap in runes.
// Defaults: size 500, overlap 50.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithTopK sets how many chunks retrieval returns. Default: 3.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// withStore injects a prebuilt store, bypassing the Redis connection.
// Test hook only.
func withStore(s db.Store) Option {
	return optionFunc(func(c *clientConfig) {
		c.store = s
	})
}
