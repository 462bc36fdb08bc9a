package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/simonhull/audiometa"
)

// Info summarizes an audio file on disk.
type Info struct {
	Duration float64
	Format   string
	Title    string
}

// Probe reads duration and tags. WAV files are parsed directly; everything else
// goes through audiometa.
func Probe(ctx context.Context, path string) (*Info, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return probeWAV(path)
	}

	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close() //nolint:errcheck // read-only

	return &Info{
		Duration: file.Audio.Duration.Seconds(),
		Format:   file.Format.String(),
		Title:    file.Tags.Title,
	}, nil
}

func probeWAV(path string) (*Info, error) {
	f, err := os.Open(path) //#nosec G304 -- path comes from a configured library directory
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only

	info, err := ReadWAVInfo(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &Info{Duration: info.Duration, Format: "wav"}, nil
}
