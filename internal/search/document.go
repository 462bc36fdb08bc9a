// Package search provides full-text search over audiobook chunk text using Bleve,
// so a listener can jump to the passage where a phrase is read.
package search

import (
	"fmt"

	"github.com/listenupapp/readalong/internal/domain"
)

// ChunkDocument is one audiobook chunk as stored in the Bleve index.
//
// Book title and author are denormalized onto every chunk so a single query
// can match both the passage and the book it belongs to.
type ChunkDocument struct {
	ID        string  `json:"id"` // "{book_id}#{chunk_id}"
	BookID    string  `json:"book_id"`
	ChunkID   int     `json:"chunk_id"`
	Filename  string  `json:"filename"`
	Page      int     `json:"page"`
	StartTime float64 `json:"start_time"`
	Text      string  `json:"text"`
	Title     string  `json:"title,omitempty"`
	Author    string  `json:"author,omitempty"`
}

// DocumentID returns the index id of a chunk.
func DocumentID(bookID string, chunkID int) string {
	return fmt.Sprintf("%s#%06d", bookID, chunkID)
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *ChunkDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"book_id":    d.BookID,
		"chunk_id":   float64(d.ChunkID),
		"filename":   d.Filename,
		"page":       float64(d.Page),
		"start_time": d.StartTime,
		"text":       d.Text,
	}
	if d.Title != "" {
		m["title"] = d.Title
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	return m
}

// DocumentsFromManifest builds one document per ready chunk. Full chunk text from
// texts is preferred over the manifest's short snippet.
func DocumentsFromManifest(m *domain.Manifest, texts map[int]string) []*ChunkDocument {
	docs := make([]*ChunkDocument, 0, len(m.ReadyChunks))
	for _, c := range m.ReadyChunks {
		text := texts[c.ChunkID]
		if text == "" {
			text = c.TextSnippet
		}
		docs = append(docs, &ChunkDocument{
			ID:        DocumentID(m.BookID, c.ChunkID),
			BookID:    m.BookID,
			ChunkID:   c.ChunkID,
			Filename:  c.Filename,
			Page:      c.Page,
			StartTime: c.StartTime,
			Text:      text,
			Title:     m.Metadata.Title,
			Author:    m.Metadata.Author,
		})
	}
	return docs
}
