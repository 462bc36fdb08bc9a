// Package library reads the server's on-disk audio sources, audiobook manifests,
// PDF inputs and citation caches.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/listenupapp/readalong/internal/audio"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/sanitize"
)

// ManifestFile is the name of the manifest inside each audiobook directory.
const ManifestFile = "manifest.json"

// Config holds the directories the library reads from.
type Config struct {
	AudiobooksPath string
	ObsidianPath   string
	StandalonePath string
	PDFInputPath   string
	PDFCachePath   string
}

// Library serves files from the configured directories.
// It holds no state beyond its configuration and is safe for concurrent use.
type Library struct {
	cfg     Config
	sources map[string]string
	logger  *slog.Logger
}

// New creates a library over cfg.
func New(cfg Config, log *slog.Logger) *Library {
	return &Library{
		cfg: cfg,
		sources: map[string]string{
			domain.SourceAudiobooks: cfg.AudiobooksPath,
			domain.SourceObsidian:   cfg.ObsidianPath,
			domain.SourceStandalone: cfg.StandalonePath,
		},
		logger: logger.OrDiscard(log),
	}
}

// EnsureDirs creates every configured directory that does not exist yet.
func (l *Library) EnsureDirs() error {
	for _, dir := range []string{
		l.cfg.StandalonePath,
		l.cfg.AudiobooksPath,
		l.cfg.ObsidianPath,
		l.cfg.PDFInputPath,
		l.cfg.PDFCachePath,
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// AudiobooksPath returns the directory holding one subdirectory per audiobook.
func (l *Library) AudiobooksPath() string {
	return l.cfg.AudiobooksPath
}

// Sources returns the audio source names in display order.
func (l *Library) Sources() []string {
	return slices.Clone(domain.AudioSources)
}

// SourceDir resolves a source name. An empty name selects the audiobooks source.
func (l *Library) SourceDir(source string) (string, error) {
	if source == "" {
		source = domain.SourceAudiobooks
	}
	dir, ok := l.sources[source]
	if !ok {
		return "", errors.Validationf("Invalid audio source specified. Valid sources: [%s]",
			strings.Join(domain.AudioSources, ", "))
	}
	return dir, nil
}

// ListAudio returns the WAV files directly inside a source directory. Files whose
// header cannot be read are still listed, without a duration.
func (l *Library) ListAudio(ctx context.Context, source string) ([]domain.AudioFile, error) {
	if source == "" {
		source = domain.SourceAudiobooks
	}
	dir, err := l.SourceDir(source)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []domain.AudioFile{}, nil
	}
	if err != nil {
		l.logger.Error("failed to scan audio source", "source", source, "path", dir, "error", err)
		return []domain.AudioFile{}, nil
	}

	files := make([]domain.AudioFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !sanitize.HasExt(e.Name(), ".wav") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, e.Name())
		file := domain.AudioFile{
			Name:      e.Name(),
			Path:      path,
			SizeBytes: fi.Size(),
			Type:      source,
		}
		if info, err := audio.Probe(ctx, path); err == nil {
			file.DurationSeconds = info.Duration
			file.Format = info.Format
			file.Title = info.Title
		} else {
			l.logger.Debug("probe failed", "file", e.Name(), "error", err)
		}
		files = append(files, file)
	}

	slices.SortFunc(files, func(a, b domain.AudioFile) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}

// AudioPath resolves a WAV file inside a source.
func (l *Library) AudioPath(source, filename string) (string, error) {
	if strings.Contains(filename, "..") || strings.HasPrefix(filename, "/") {
		return "", errors.Validation("Invalid filename")
	}
	dir, err := l.SourceDir(source)
	if err != nil {
		return "", err
	}
	name, err := sanitize.Filename(filename, ".wav")
	if err != nil {
		return "", errors.NotFound("Audio file not found in the specified source")
	}
	return existingFile(filepath.Join(dir, name), "Audio file not found in the specified source")
}

func existingFile(path, notFound string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return "", errors.NotFound(notFound)
	}
	return path, nil
}
