// Package vectorstore defines the vector index port used by the
// ingestion and retrieval layers. Implementations live in subpackages.
package vectorstore

import (
	"context"

	"github.com/minuted/minuted/internal/domain"
)

// Index is the vector index contract. Namespaces isolate transcripts;
// the anchor record lives inside its namespace like any other record
// but is excluded from similarity queries and counts.
type Index interface {
	// Upsert writes records into a namespace, replacing existing ids.
	Upsert(ctx context.Context, namespace string, records []domain.Record) error

	// Fetch returns the records found for the given ids. Missing ids
	// are absent from the result, not an error.
	Fetch(ctx context.Context, namespace string, ids []string) (map[string]domain.Record, error)

	// Query ranks non-anchor records by cosine similarity against the
	// given vector and returns at most topK matches, best first.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error)

	// Count returns the number of non-anchor records in a namespace.
	Count(ctx context.Context, namespace string) (int, error)

	// Namespaces lists every namespace that has at least one record.
	Namespaces(ctx context.Context) ([]string, error)

	// Delete removes a namespace and everything in it, anchor included.
	Delete(ctx context.Context, namespace string) error
}
