package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/errors"
)

func chunks() []Chunk {
	return []Chunk{
		{ChunkID: 0, Filename: "chunk_0000_p1.wav", Page: 1, StartTime: 0, Duration: 10},
		{ChunkID: 1, Filename: "chunk_0001_p1.wav", Page: 1, StartTime: 10, Duration: 5},
		{ChunkID: 2, Filename: "chunk_0002_p2.wav", Page: 2, StartTime: 20, Duration: 8},
	}
}

func TestManifest_Validate(t *testing.T) {
	m := &Manifest{BookID: "book", TotalChunks: 4, ReadyChunks: chunks()}
	assert.NoError(t, m.Validate())
}

func TestManifest_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Chunk)
	}{
		{"overlap", func(c []Chunk) { c[1].Duration = 11 }},
		{"out of order", func(c []Chunk) { c[2].StartTime = 5 }},
		{"zero duration", func(c []Chunk) { c[0].Duration = 0 }},
		{"page zero", func(c []Chunk) { c[2].Page = 0 }},
		{"unsafe filename", func(c []Chunk) { c[0].Filename = "../x.wav" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := chunks()
			tt.mutate(c)
			m := &Manifest{BookID: "book", TotalChunks: 3, ReadyChunks: c}

			err := m.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
}

func TestManifest_Refresh(t *testing.T) {
	m := &Manifest{BookID: "book", TotalChunks: 3, ReadyChunks: chunks()[:1]}
	m.Refresh()
	assert.InDelta(t, 33.3, m.ProgressPercentage, 0.001)
	assert.False(t, m.IsComplete)

	m.ReadyChunks = chunks()
	m.Refresh()
	assert.InDelta(t, 100.0, m.ProgressPercentage, 0.001)
	assert.True(t, m.IsComplete)

	empty := &Manifest{BookID: "book"}
	empty.Refresh()
	assert.False(t, empty.IsComplete)
}

func TestManifest_Extends(t *testing.T) {
	prev := &Manifest{BookID: "book", ReadyChunks: chunks()[:2]}
	next := &Manifest{BookID: "book", ReadyChunks: chunks()}

	assert.True(t, next.Extends(prev))
	assert.True(t, next.Extends(nil))
	assert.False(t, prev.Extends(next))

	other := &Manifest{BookID: "other", ReadyChunks: chunks()}
	assert.False(t, other.Extends(prev))
}

func TestChunk_Contains(t *testing.T) {
	c := Chunk{StartTime: 10, Duration: 5}
	assert.True(t, c.Contains(10))
	assert.True(t, c.Contains(14.999))
	assert.False(t, c.Contains(15))
	assert.InDelta(t, 15.0, c.End(), 0.0001)
}

func TestManifest_TotalDuration(t *testing.T) {
	var nilManifest *Manifest
	assert.Zero(t, nilManifest.TotalDuration())
	assert.InDelta(t, 28.0, (&Manifest{ReadyChunks: chunks()}).TotalDuration(), 0.0001)
}
