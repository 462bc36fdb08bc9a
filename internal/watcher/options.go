package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures the file watcher behavior.
type Options struct {
	IgnorePatterns []string
	// IncludePatterns restricts reported files to matching base names.
	// Empty reports everything not ignored.
	IncludePatterns []string
	SettleDelay     time.Duration
	IgnoreHidden    bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 100 * time.Millisecond
	}

	// nil means no custom config; an explicit empty slice keeps IgnoreHidden as given.
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.temp",
			"*.part",
			"Thumbs.db",
		}
		o.IgnoreHidden = true
	}
}

// shouldIgnore reports whether path is hidden or matches an ignore pattern.
func (o *Options) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	if o.IgnoreHidden && strings.HasPrefix(base, ".") && base != "." && base != ".." {
		return true
	}
	return matchAny(o.IgnorePatterns, base)
}

// included reports whether a file should be reported at all.
func (o *Options) included(path string) bool {
	if o.shouldIgnore(path) {
		return false
	}
	if len(o.IncludePatterns) == 0 {
		return true
	}
	return matchAny(o.IncludePatterns, filepath.Base(path))
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}
