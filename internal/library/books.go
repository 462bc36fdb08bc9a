package library

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/sanitize"
)

// Audiobooks lists every directory under the audiobooks path that carries a
// readable manifest. Unreadable manifests are logged and skipped.
func (l *Library) Audiobooks(ctx context.Context) ([]domain.AudiobookSummary, error) {
	entries, err := os.ReadDir(l.cfg.AudiobooksPath)
	if os.IsNotExist(err) {
		return []domain.AudiobookSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audiobooks dir: %w", err)
	}

	books := make([]domain.AudiobookSummary, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(l.cfg.AudiobooksPath, e.Name(), ManifestFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := readManifest(path)
		if err != nil {
			l.logger.Error("failed to read manifest", "book_id", e.Name(), "error", err)
			continue
		}
		books = append(books, Summarize(e.Name(), m))
	}

	slices.SortFunc(books, func(a, b domain.AudiobookSummary) int {
		return strings.Compare(a.BookID, b.BookID)
	})
	return books, nil
}

// Summary returns the listing entry of one audiobook.
func (l *Library) Summary(bookID string) (*domain.AudiobookSummary, error) {
	m, err := l.Manifest(bookID)
	if err != nil {
		return nil, err
	}
	s := Summarize(m.BookID, m)
	return &s, nil
}

// Manifest reads the manifest of one audiobook with the derived progress fields recomputed.
func (l *Library) Manifest(bookID string) (*domain.Manifest, error) {
	safe, err := sanitize.BookID(bookID)
	if err != nil {
		return nil, errors.NotFoundf("Audiobook '%s' not found", bookID)
	}

	path := filepath.Join(l.cfg.AudiobooksPath, safe, ManifestFile)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NotFoundf("Audiobook '%s' not found", bookID)
	}

	m, err := readManifest(path)
	if err != nil {
		l.logger.Error("failed to read manifest", "book_id", bookID, "error", err)
		return nil, errors.Wrap(err, errors.CodeInternal, "Failed to read audiobook data")
	}
	m.BookID = safe
	return m, nil
}

// ChunkPath resolves a chunk file of an audiobook. Only WAV chunks are served.
func (l *Library) ChunkPath(bookID, filename string) (string, error) {
	safeBook, err := sanitize.BookID(bookID)
	if err != nil {
		return "", errors.NotFound("Audio chunk not found")
	}
	name, err := sanitize.Segment(filename)
	if err != nil {
		return "", errors.NotFound("Audio chunk not found")
	}
	if !sanitize.HasExt(name, ".wav") {
		return "", errors.Validation("Only WAV files are supported")
	}
	return existingFile(filepath.Join(l.cfg.AudiobooksPath, safeBook, name), "Audio chunk not found")
}

func readManifest(path string) (*domain.Manifest, error) {
	f, err := os.Open(path) //#nosec G304 -- path is built from a sanitized book id
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only

	var m domain.Manifest
	if err := json.UnmarshalRead(f, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if m.ReadyChunks == nil {
		m.ReadyChunks = []domain.Chunk{}
	}
	m.Refresh()
	return &m, nil
}

// Summarize builds the listing entry of a manifest stored under dirName.
func Summarize(dirName string, m *domain.Manifest) domain.AudiobookSummary {
	title := m.Metadata.Title
	if title == "" {
		title = dirName
	}
	author := m.Metadata.Author
	if author == "" {
		author = "Unknown"
	}
	return domain.AudiobookSummary{
		BookID:      dirName,
		Title:       title,
		Author:      author,
		SourceFile:  m.Metadata.SourceFilename,
		TotalChunks: m.TotalChunks,
		ReadyChunks: len(m.ReadyChunks),
		IsComplete:  m.IsComplete,
	}
}
