package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden, "Should ignore hidden files by default")
	assert.Equal(t, 100*time.Millisecond, opts.SettleDelay)
	assert.Contains(t, opts.IgnorePatterns, ".DS_Store")
	assert.Contains(t, opts.IgnorePatterns, "*.tmp")
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		IgnoreHidden:   false,
		SettleDelay:    200 * time.Millisecond,
		IgnorePatterns: []string{"*.bak"},
	}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden)
	assert.Equal(t, 200*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, []string{"*.bak"}, opts.IgnorePatterns)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{
		IgnoreHidden:   true,
		IgnorePatterns: []string{"*.tmp", ".DS_Store", "*.bak"},
	}
	opts.setDefaults()

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"hidden file", "/path/.hidden", true},
		{"DS_Store", "/path/.DS_Store", true},
		{"tmp file", "/path/manifest.json.tmp", true},
		{"bak file", "/path/file.bak", true},
		{"manifest", "/path/Book/manifest.json", false},
		{"under hidden parent", "/home/me/.local/audiobooks/manifest.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, opts.shouldIgnore(tt.path))
		})
	}
}

func TestOptions_Included(t *testing.T) {
	opts := Options{IncludePatterns: []string{"manifest.json", "*_citation_ready.json"}}
	opts.setDefaults()

	assert.True(t, opts.included("/lib/Book/manifest.json"))
	assert.True(t, opts.included("/cache/Book_citation_ready.json"))
	assert.False(t, opts.included("/lib/Book/chunk_0001_p1.wav"))
	assert.False(t, opts.included("/lib/Book/.manifest.json"))

	all := Options{IgnorePatterns: []string{}}
	all.setDefaults()
	assert.True(t, all.included("/lib/Book/chunk_0001_p1.wav"))
}
