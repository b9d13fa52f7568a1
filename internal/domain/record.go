package domain

import "strings"

// KeyPrefix namespaces all minuted keys in the backing store.
const KeyPrefix = "minuted:"

// anchorSuffix marks the per-namespace metadata anchor record.
const anchorSuffix = "_meta"

// Metadata field names shared by chunk and anchor records.
const (
	MetaText      = "text"
	MetaChunk     = "chunk"
	MetaFilename  = "filename"
	MetaTimestamp = "timestamp"
)

// Artifact keys cached in the anchor record by the transcript flow.
const (
	ArtifactSummary    = "summary"
	ArtifactTasks      = "tasks"
	ArtifactStructured = "structured_output"
)

// Record is one entry in the vector index: an embedded chunk or the anchor.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Match is one similarity search hit.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// AnchorID returns the deterministic id of a namespace's anchor record.
func AnchorID(namespace string) string {
	return namespace + anchorSuffix
}

// IsAnchorID reports whether a record id belongs to an anchor record.
// Anchor records share the namespace with chunk vectors but must never
// appear as similarity search hits.
func IsAnchorID(id string) bool {
	return strings.HasSuffix(id, anchorSuffix)
}

// PlaceholderVector returns the non-degenerate vector stored on anchor
// records. The store requires a vector; this one is never searched.
func PlaceholderVector(dimensions int) []float32 {
	v := make([]float32, dimensions)
	if dimensions > 0 {
		v[0] = 0.001
	}
	return v
}
