// Package redis implements the vector index on Redis hashes.
// Each record is one hash: a packed float32 vector plus JSON metadata.
// Queries scan the namespace, pipeline HGETALL and rank in process,
// which keeps the store requirements to plain Redis commands.
package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/db"
	"github.com/minuted/minuted/internal/domain"
)

// store is the consumer interface for the index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Index stores vectors in Redis under minuted:ns:<namespace>:rec:<id>.
type Index struct {
	store  store
	logger *zap.Logger
}

func NewIndex(s store, logger *zap.Logger) *Index {
	return &Index{store: s, logger: logger}
}

func recordKey(namespace, id string) string {
	return domain.KeyPrefix + "ns:" + namespace + ":rec:" + id
}

func namespacePattern(namespace string) string {
	return domain.KeyPrefix + "ns:" + namespace + ":rec:*"
}

// recordID extracts the record id from a full key, or "" if the key
// does not follow the record key scheme.
func recordID(key string) string {
	idx := strings.LastIndex(key, ":rec:")
	if idx < 0 {
		return ""
	}
	return key[idx+len(":rec:"):]
}

// Upsert writes records in one pipelined round-trip.
func (i *Index) Upsert(ctx context.Context, namespace string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(records))
	for _, rec := range records {
		meta, err := encodeMetadata(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		items = append(items, db.HashSetItem{
			Key: recordKey(namespace, rec.ID),
			Fields: map[string]string{
				fieldVector: encodeVector(rec.Vector),
				fieldMeta:   meta,
			},
		})
	}

	if err := i.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d records in %q: %w", len(records), namespace, err)
	}
	return nil
}

// Fetch returns the records found for the given ids. An empty hash
// means the key does not exist; those ids are simply omitted.
func (i *Index) Fetch(ctx context.Context, namespace string, ids []string) (map[string]domain.Record, error) {
	if len(ids) == 0 {
		return map[string]domain.Record{}, nil
	}

	keys := make([]string, len(ids))
	for n, id := range ids {
		keys[n] = recordKey(namespace, id)
	}

	fields, err := i.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch records in %q: %w", namespace, err)
	}

	out := make(map[string]domain.Record, len(ids))
	for n, f := range fields {
		if len(f) == 0 {
			continue
		}
		rec, err := parseRecord(ids[n], f)
		if err != nil {
			i.logger.Warn("Skipping malformed record",
				zap.String("namespace", namespace),
				zap.String("id", ids[n]),
				zap.Error(err))
			continue
		}
		out[ids[n]] = rec
	}
	return out, nil
}

// Query ranks all non-anchor records in the namespace by cosine
// similarity. Malformed records are skipped with a warning.
func (i *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	keys, err := i.scanRecords(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	fields, err := i.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load records in %q: %w", namespace, err)
	}

	matches := make([]domain.Match, 0, len(keys))
	for n, f := range fields {
		id := recordID(keys[n])
		if id == "" || domain.IsAnchorID(id) || len(f) == 0 {
			continue
		}
		rec, err := parseRecord(id, f)
		if err != nil {
			i.logger.Warn("Skipping malformed record",
				zap.String("namespace", namespace),
				zap.String("id", id),
				zap.Error(err))
			continue
		}
		matches = append(matches, domain.Match{
			ID:       rec.ID,
			Score:    cosineSimilarity(vector, rec.Vector),
			Metadata: rec.Metadata,
		})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of non-anchor records in a namespace.
func (i *Index) Count(ctx context.Context, namespace string) (int, error) {
	keys, err := i.scanRecords(ctx, namespace)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, key := range keys {
		if id := recordID(key); id != "" && !domain.IsAnchorID(id) {
			count++
		}
	}
	return count, nil
}

// Namespaces lists every namespace with at least one record.
func (i *Index) Namespaces(ctx context.Context) ([]string, error) {
	keys, err := i.store.Scan(ctx, domain.KeyPrefix+"ns:*:rec:*")
	if err != nil {
		return nil, fmt.Errorf("scan namespaces: %w", err)
	}

	seen := make(map[string]struct{})
	prefix := domain.KeyPrefix + "ns:"
	for _, key := range keys {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		idx := strings.LastIndex(rest, ":rec:")
		if idx <= 0 {
			continue
		}
		seen[rest[:idx]] = struct{}{}
	}

	namespaces := make([]string, 0, len(seen))
	for ns := range seen {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	return namespaces, nil
}

// Delete removes every record in a namespace, anchor included.
func (i *Index) Delete(ctx context.Context, namespace string) error {
	keys, err := i.scanRecords(ctx, namespace)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := i.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete namespace %q: %w", namespace, err)
	}
	return nil
}

func (i *Index) scanRecords(ctx context.Context, namespace string) ([]string, error) {
	keys, err := i.store.Scan(ctx, namespacePattern(namespace))
	if err != nil {
		return nil, fmt.Errorf("scan namespace %q: %w", namespace, err)
	}
	return keys, nil
}

func parseRecord(id string, fields map[string]string) (domain.Record, error) {
	vec, err := decodeVector(fields[fieldVector])
	if err != nil {
		return domain.Record{}, err
	}
	meta, err := decodeMetadata(fields[fieldMeta])
	if err != nil {
		return domain.Record{}, err
	}
	return domain.Record{ID: id, Vector: vec, Metadata: meta}, nil
}
