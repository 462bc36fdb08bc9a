// Package document keeps the displayed page of the source PDF in step with the
// audio timeline and serializes page renders.
package document

import (
	"sort"

	"github.com/listenupapp/readalong/internal/domain"
)

// ChunkForTimestamp returns the index of the chunk whose [start, start+duration)
// interval contains t. A t at or past the last chunk's start maps to the last
// chunk. Before the first chunk, inside a gap, or with no chunks, ok is false.
// chunks must be sorted by start time.
func ChunkForTimestamp(chunks []domain.Chunk, t float64) (int, bool) {
	n := len(chunks)
	if n == 0 || t < chunks[0].StartTime {
		return 0, false
	}
	if t >= chunks[n-1].StartTime {
		return n - 1, true
	}

	// First chunk starting after t; its predecessor is the only candidate.
	i := sort.Search(n, func(i int) bool { return chunks[i].StartTime > t }) - 1
	if i < 0 || !chunks[i].Contains(t) {
		return 0, false
	}
	return i, true
}

// PageForTimestamp returns the page of the chunk playing at t.
func PageForTimestamp(chunks []domain.Chunk, t float64) (int, bool) {
	i, ok := ChunkForTimestamp(chunks, t)
	if !ok {
		return 0, false
	}
	return chunks[i].Page, true
}

// FirstChunkForPage returns the first chunk, in manifest order, read from page.
func FirstChunkForPage(chunks []domain.Chunk, page int) (int, bool) {
	for i, c := range chunks {
		if c.Page == page {
			return i, true
		}
	}
	return 0, false
}
