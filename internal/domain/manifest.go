package domain

import (
	"fmt"
	"math"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/validation"
)

// overlapTolerance absorbs float rounding in estimated chunk timings.
const overlapTolerance = 1e-6

// Chunk is one synthesized audio segment tied to a page of the source document.
type Chunk struct {
	ChunkID     int     `json:"chunk_id"`
	Filename    string  `json:"filename" validate:"required,safename"`
	Page        int     `json:"page" validate:"gte=1"`
	TextSnippet string  `json:"text_snippet,omitempty"`
	StartTime   float64 `json:"start_time" validate:"gte=0"`
	Duration    float64 `json:"duration_seconds" validate:"gt=0"`
}

// End returns the exclusive end of the chunk's interval on the book timeline.
func (c Chunk) End() float64 {
	return c.StartTime + c.Duration
}

// Contains reports whether t falls in [StartTime, End).
func (c Chunk) Contains(t float64) bool {
	return t >= c.StartTime && t < c.End()
}

// BookMetadata describes the source document of an audiobook.
type BookMetadata struct {
	Title          string `json:"title"`
	Author         string `json:"author,omitempty"`
	SourceFilename string `json:"source_filename,omitempty"`
	TotalPages     int    `json:"total_pages,omitempty"`
}

// Manifest is the processing status and ordered chunk list of one audiobook.
// ReadyChunks only grows until IsComplete becomes true.
type Manifest struct {
	BookID             string       `json:"book_id" validate:"required"`
	Metadata           BookMetadata `json:"metadata"`
	TotalChunks        int          `json:"total_chunks" validate:"gte=0"`
	ReadyChunks        []Chunk      `json:"ready_chunks" validate:"dive"`
	ProgressPercentage float64      `json:"progress_percentage"`
	IsComplete         bool         `json:"is_complete"`
}

// Refresh recomputes the derived progress fields from TotalChunks and ReadyChunks.
func (m *Manifest) Refresh() {
	if m.TotalChunks > 0 {
		m.ProgressPercentage = math.Round(float64(len(m.ReadyChunks))/float64(m.TotalChunks)*1000) / 10
	} else {
		m.ProgressPercentage = 0
	}
	m.IsComplete = m.TotalChunks > 0 && len(m.ReadyChunks) == m.TotalChunks
}

// Validate checks field constraints, then that chunks are ordered by start time
// with non-overlapping intervals.
func (m *Manifest) Validate() error {
	if err := validation.New().Validate(m); err != nil {
		return err
	}
	for i := 1; i < len(m.ReadyChunks); i++ {
		prev, cur := m.ReadyChunks[i-1], m.ReadyChunks[i]
		if cur.StartTime < prev.StartTime {
			return errors.Validationf("chunk %d starts before chunk %d", i, i-1)
		}
		if prev.End()-cur.StartTime > overlapTolerance {
			return errors.Validationf("chunk %d overlaps chunk %d", i, i-1)
		}
	}
	return nil
}

// Extends reports whether m is prev with zero or more chunks appended.
func (m *Manifest) Extends(prev *Manifest) bool {
	if prev == nil {
		return true
	}
	if m.BookID != prev.BookID || len(m.ReadyChunks) < len(prev.ReadyChunks) {
		return false
	}
	for i, c := range prev.ReadyChunks {
		if m.ReadyChunks[i].Filename != c.Filename {
			return false
		}
	}
	return true
}

// TotalDuration returns the end of the last ready chunk.
func (m *Manifest) TotalDuration() float64 {
	if m == nil || len(m.ReadyChunks) == 0 {
		return 0
	}
	return m.ReadyChunks[len(m.ReadyChunks)-1].End()
}

// String implements fmt.Stringer for log output.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s (%d/%d chunks)", m.BookID, len(m.ReadyChunks), m.TotalChunks)
}
