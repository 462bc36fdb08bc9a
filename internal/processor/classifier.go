// Package processor turns settled library file events into search index
// updates, job completions and SSE notifications.
package processor

import (
	"path/filepath"
	"strings"

	"github.com/listenupapp/readalong/internal/library"
)

// FileType represents the type of file detected by the classifier.
type FileType int

const (
	// FileTypeManifest is an audiobook's manifest.json.
	FileTypeManifest FileType = iota
	// FileTypeCitation is a {book}_citation_ready.json cache file.
	FileTypeCitation
	// FileTypeIgnored is anything else.
	FileTypeIgnored
)

const citationSuffix = "_citation_ready.json"

// String returns the string representation of a FileType.
func (ft FileType) String() string {
	switch ft {
	case FileTypeManifest:
		return "manifest"
	case FileTypeCitation:
		return "citation"
	case FileTypeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// classifyFile determines the file type and the audiobook it belongs to.
// Manifests live at {audiobooks}/{book}/manifest.json; citation caches are
// named {book}_citation_ready.json.
func classifyFile(path string) (FileType, string) {
	if path == "" {
		return FileTypeIgnored, ""
	}

	base := filepath.Base(path)
	switch {
	case strings.EqualFold(base, library.ManifestFile):
		book := filepath.Base(filepath.Dir(path))
		if book == "." || book == string(filepath.Separator) {
			return FileTypeIgnored, ""
		}
		return FileTypeManifest, book
	case strings.HasSuffix(base, citationSuffix) && len(base) > len(citationSuffix):
		return FileTypeCitation, strings.TrimSuffix(base, citationSuffix)
	default:
		return FileTypeIgnored, ""
	}
}
