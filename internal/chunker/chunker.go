// Package chunker splits transcript text into overlapping chunks for
// embedding. Splits prefer paragraph, then line, then word boundaries,
// falling back to a hard rune cut for unbroken runs.
package chunker

import "strings"

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

var separators = []string{"\n\n", "\n", " "}

// Splitter produces chunks of at most chunkSize runes with the last
// overlap runes of each chunk repeated at the start of the next.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New creates a Splitter. Non-positive sizes fall back to the defaults;
// an overlap at or above the chunk size is clamped to the default.
func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 2
		}
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split breaks text into chunks. Whitespace-only input yields nil.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pieces := splitPieces(text, 0, s.chunkSize)
	return s.merge(pieces)
}

// splitPieces recursively splits text into fragments no longer than
// limit runes, trying separators in order of coarseness.
func splitPieces(text string, sepIdx, limit int) []string {
	if runeLen(text) <= limit {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return hardCut(text, limit)
	}

	var out []string
	for _, part := range strings.SplitAfter(text, separators[sepIdx]) {
		if part == "" {
			continue
		}
		out = append(out, splitPieces(part, sepIdx+1, limit)...)
	}
	return out
}

// merge greedily packs fragments into chunks, carrying overlap runes
// from the tail of each finished chunk into the next. The carry is
// trimmed so carry plus the next fragment never exceeds chunkSize.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current strings.Builder

	flush := func(nextLen int) {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		if chunk == "" {
			return
		}
		chunks = append(chunks, chunk)
		carry := s.overlap
		if room := s.chunkSize - nextLen; carry > room {
			carry = room
		}
		if carry > 0 {
			current.WriteString(tailRunes(chunk, carry))
		}
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if runeLen(current.String())+n > s.chunkSize && current.Len() > 0 {
			flush(n)
		}
		current.WriteString(piece)
	}
	if strings.TrimSpace(current.String()) != "" {
		chunk := strings.TrimSpace(current.String())
		// drop a trailing fragment that is pure overlap carry-over
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], chunk) {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func hardCut(text string, limit int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > limit {
		out = append(out, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
