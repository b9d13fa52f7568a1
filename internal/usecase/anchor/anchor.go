// Package anchor manages the per-namespace anchor record: a placeholder
// vector whose metadata caches LLM-derived artifacts (summary, tasks,
// structured output) so repeat requests skip the completion provider.
package anchor

import (
	"context"
	"fmt"
	"maps"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/domain"
)

// index is the consumer interface for the cache (ISP).
type index interface {
	Fetch(ctx context.Context, namespace string, ids []string) (map[string]domain.Record, error)
	Upsert(ctx context.Context, namespace string, records []domain.Record) error
}

// Cache reads and writes anchor record metadata.
type Cache struct {
	index      index
	dimensions int
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

func NewCache(idx index, dimensions int, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{index: idx, dimensions: dimensions, cacheTotal: cacheTotal, logger: logger}
}

// Get returns the anchor's cached artifacts. Store failures and a
// missing anchor both yield an empty map: the caller regenerates what
// it needs rather than failing the request.
func (c *Cache) Get(ctx context.Context, namespace string) map[string]string {
	id := domain.AnchorID(namespace)

	records, err := c.index.Fetch(ctx, namespace, []string{id})
	if err != nil {
		c.logger.Warn("Anchor fetch failed, treating as empty",
			zap.String("namespace", namespace),
			zap.Error(err))
		c.incCache("miss")
		return map[string]string{}
	}

	rec, ok := records[id]
	if !ok || len(rec.Metadata) == 0 {
		c.incCache("miss")
		return map[string]string{}
	}

	c.incCache("hit")
	return maps.Clone(rec.Metadata)
}

// Put writes the full artifact map to the anchor record, replacing
// whatever was there. Callers merge before calling.
func (c *Cache) Put(ctx context.Context, namespace string, artifacts map[string]string) error {
	rec := domain.Record{
		ID:       domain.AnchorID(namespace),
		Vector:   domain.PlaceholderVector(c.dimensions),
		Metadata: artifacts,
	}
	if err := c.index.Upsert(ctx, namespace, []domain.Record{rec}); err != nil {
		return fmt.Errorf("store anchor for %q: %w", namespace, err)
	}
	return nil
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
