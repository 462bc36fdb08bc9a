package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadPlayerConfig_Defaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := LoadPlayerConfig([]string{"-env-file", noEnvFile(t), "-data-path", dataDir})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "waveform", cfg.Player.Engine)
	assert.InDelta(t, 1.0, cfg.Player.Rate, 0.0001)
	assert.Equal(t, 60, cfg.Player.SampleHz)
	assert.True(t, cfg.Player.Sequenced)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 120, cfg.Poll.MaxIterations)
	assert.InDelta(t, 1.5, cfg.Poll.Backoff, 0.0001)
	assert.Equal(t, dataDir, cfg.Store.Path)
}

func TestLoadPlayerConfig_Precedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"# player settings\nREADALONG_ENGINE=plain\nREADALONG_POLL_MAX=7\nREADALONG_RATE='1.25'\n"), 0o600))

	// Environment beats the .env file; flags beat both.
	t.Setenv("READALONG_POLL_MAX", "9")
	t.Setenv("READALONG_ENGINE", "")
	t.Setenv("READALONG_RATE", "")

	cfg, err := LoadPlayerConfig([]string{
		"-env-file", envFile,
		"-data-path", t.TempDir(),
		"-api-url", "http://reader.local:9000/",
		"-poll-interval", "250ms",
	})
	require.NoError(t, err)

	assert.Equal(t, "plain", cfg.Player.Engine)
	assert.Equal(t, 9, cfg.Poll.MaxIterations)
	assert.InDelta(t, 1.25, cfg.Player.Rate, 0.0001)
	assert.Equal(t, "http://reader.local:9000", cfg.API.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
}

func TestLoadPlayerConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown engine", args: []string{"-engine", "vinyl"}},
		{name: "rate out of range", args: []string{"-rate", "3"}},
		{name: "volume out of range", args: []string{"-volume", "1.5"}},
		{name: "bad duration", args: []string{"-poll-interval", "soon"}},
		{name: "bad environment", args: []string{"-env", "test"}},
		{name: "unsafe source", args: []string{"-source", "../etc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-env-file", noEnvFile(t), "-data-path", t.TempDir()}, tt.args...)
			_, err := LoadPlayerConfig(args)
			assert.Error(t, err)
		})
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	out := t.TempDir()

	cfg, err := LoadServerConfig([]string{"-env-file", noEnvFile(t), "-output-path", out})
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.HTTP.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Zero(t, cfg.HTTP.WriteTimeout)
	assert.Equal(t, out, cfg.Library.StandalonePath)
	assert.Equal(t, filepath.Join(out, "audiobooks"), cfg.Library.AudiobooksPath)
	assert.Equal(t, filepath.Join(out, ".readalong"), cfg.Data.Path)
	assert.True(t, filepath.IsAbs(cfg.Library.ObsidianPath))
	assert.Equal(t, "http://pdf-service:8001", cfg.PDFService.URL)
	assert.Equal(t, 6, cfg.RateLimit.ProcessPerMinute)
	assert.True(t, cfg.Library.Watch)
}

func TestLoadServerConfig_InvalidPort(t *testing.T) {
	_, err := LoadServerConfig([]string{"-env-file", noEnvFile(t), "-output-path", t.TempDir(), "-port", "http"})
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/books", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "books"), got)

	got, err = expandPath("", "")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = expandPath("", "/var/readalong/../readalong")
	require.NoError(t, err)
	assert.Equal(t, "/var/readalong", got)
}

func TestGetBoolConfigValue(t *testing.T) {
	assert.True(t, getBoolConfigValue("yes", "UNUSED_KEY", false))
	assert.True(t, getBoolConfigValue("TRUE", "UNUSED_KEY", false))
	assert.False(t, getBoolConfigValue("no", "UNUSED_KEY", true))
	assert.True(t, getBoolConfigValue("", "UNUSED_KEY_READALONG", true))
}

func TestLoadEnvFile_InvalidLine(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(envFile, []byte("NOT A PAIR\n"), 0o600))

	assert.Error(t, loadEnvFile(envFile))
}
