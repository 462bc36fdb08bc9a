// Package config provides configuration for the readalong player and server with support for
// environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/readalong/internal/validation"
)

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `json:"environment" validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `json:"log_level" validate:"required,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	Format string `json:"log_format" validate:"omitempty,oneof=json pretty"`
}

// PlayerConfig holds configuration for the headless player.
type PlayerConfig struct {
	App    AppConfig
	Logger LoggerConfig
	API    APIClientConfig
	Player PlaybackConfig
	Poll   PollConfig
	Store  StoreConfig
}

// APIClientConfig holds settings for talking to the readalong server.
type APIClientConfig struct {
	BaseURL           string        `json:"api_url" validate:"required,url"`
	Timeout           time.Duration `json:"api_timeout" validate:"gt=0"`
	RequestsPerSecond float64       `json:"api_rps" validate:"gt=0"`
	Burst             int           `json:"api_burst" validate:"gte=1"`
}

// PlaybackConfig holds engine selection and initial transport values.
type PlaybackConfig struct {
	// Engine is "plain" (media element) or "waveform".
	Engine       string  `json:"engine" validate:"required,oneof=plain waveform"`
	Rate         float64 `json:"rate" validate:"gte=0.5,lte=2"`
	Volume       float64 `json:"volume" validate:"gte=0,lte=1"`
	SampleHz     int     `json:"sample_hz" validate:"gte=1,lte=240"`
	Sequenced    bool    `json:"sequenced"`
	ClickToSeek  bool    `json:"click_to_seek"`
	Source       string  `json:"source" validate:"omitempty,safename"`
	ScreenWidth  int     `json:"screen_width" validate:"gte=1"`
	ScreenHeight int     `json:"screen_height" validate:"gte=1"`
}

// PollConfig holds status polling settings.
type PollConfig struct {
	Interval      time.Duration `json:"poll_interval" validate:"gt=0"`
	MaxIterations int           `json:"poll_max_iterations" validate:"gte=1"`
	// Backoff is accepted for compatibility; polling runs at a fixed interval.
	Backoff float64 `json:"poll_backoff" validate:"gte=1"`
}

// StoreConfig holds the player's preference store location.
type StoreConfig struct {
	Path string `json:"data_path" validate:"required"`
}

// ServerConfig holds configuration for the readalong API server.
type ServerConfig struct {
	App        AppConfig
	Logger     LoggerConfig
	HTTP       HTTPConfig
	Library    LibraryConfig
	PDFService PDFServiceConfig
	Data       DataConfig
	RateLimit  RateLimitConfig
}

// HTTPConfig holds HTTP listener configuration.
type HTTPConfig struct {
	Port         string        `json:"port" validate:"required,numeric"`
	ReadTimeout  time.Duration `json:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `json:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `json:"idle_timeout" validate:"gt=0"`
}

// LibraryConfig holds the directories the server reads audio and documents from.
type LibraryConfig struct {
	AudiobooksPath string `json:"audiobooks_path" validate:"required"`
	ObsidianPath   string `json:"obsidian_path" validate:"required"`
	StandalonePath string `json:"standalone_path" validate:"required"`
	PDFInputPath   string `json:"pdf_input_path" validate:"required"`
	PDFCachePath   string `json:"pdf_cache_path" validate:"required"`
	Watch          bool   `json:"watch"`
}

// PDFServiceConfig holds settings for the external processing service.
type PDFServiceConfig struct {
	URL     string        `json:"pdf_service_url" validate:"required,url"`
	Timeout time.Duration `json:"pdf_service_timeout" validate:"gt=0"`
}

// DataConfig holds locations of server-side state.
type DataConfig struct {
	Path string `json:"server_data_path" validate:"required"`
}

// RateLimitConfig bounds processing requests per client.
type RateLimitConfig struct {
	ProcessPerMinute int `json:"process_per_minute" validate:"gte=1"`
	ProcessBurst     int `json:"process_burst" validate:"gte=1"`
}

// LoadPlayerConfig loads player configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadPlayerConfig(args []string) (*PlayerConfig, error) {
	fs := flag.NewFlagSet("readalong", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	apiURL := fs.String("api-url", "", "Readalong server base URL (default: http://localhost:8000)")
	apiTimeout := fs.String("api-timeout", "", "HTTP timeout for API calls (default: 30s)")
	apiRPS := fs.String("api-rps", "", "Outbound request rate (default: 10)")
	apiBurst := fs.String("api-burst", "", "Outbound request burst (default: 20)")
	engine := fs.String("engine", "", "Audio engine: plain or waveform (default: waveform)")
	rate := fs.String("rate", "", "Initial playback rate (default: 1.0)")
	volume := fs.String("volume", "", "Initial volume (default: 1.0)")
	sampleHz := fs.String("sample-hz", "", "Waveform sampling frequency (default: 60)")
	sequenced := fs.String("sequenced", "", "Advance to the next chunk on finish (default: true)")
	clickToSeek := fs.String("click-to-seek", "", "Enable click-to-seek on pages (default: true)")
	source := fs.String("source", "", "Default audio source (default: audiobooks)")
	pollInterval := fs.String("poll-interval", "", "Status poll interval (default: 5s)")
	pollMax := fs.String("poll-max", "", "Maximum status polls (default: 120)")
	pollBackoff := fs.String("poll-backoff", "", "Status poll backoff multiplier (default: 1.5)")
	dataPath := fs.String("data-path", "", "Directory for player preferences")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &PlayerConfig{
		App:    AppConfig{Environment: getConfigValue(*env, "ENV", "development")},
		Logger: loggerConfig(*logLevel, *logFormat),
		API: APIClientConfig{
			BaseURL:           strings.TrimRight(getConfigValue(*apiURL, "READALONG_API_URL", "http://localhost:8000"), "/"),
			RequestsPerSecond: getFloatConfigValue(*apiRPS, "READALONG_API_RPS", 10),
			Burst:             getIntConfigValue(*apiBurst, "READALONG_API_BURST", 20),
		},
		Player: PlaybackConfig{
			Engine:       getConfigValue(*engine, "READALONG_ENGINE", "waveform"),
			Rate:         getFloatConfigValue(*rate, "READALONG_RATE", 1.0),
			Volume:       getFloatConfigValue(*volume, "READALONG_VOLUME", 1.0),
			SampleHz:     getIntConfigValue(*sampleHz, "READALONG_SAMPLE_HZ", 60),
			Sequenced:    getBoolConfigValue(*sequenced, "READALONG_SEQUENCED", true),
			ClickToSeek:  getBoolConfigValue(*clickToSeek, "READALONG_CLICK_TO_SEEK", true),
			Source:       getConfigValue(*source, "READALONG_SOURCE", "audiobooks"),
			ScreenWidth:  getIntConfigValue("", "READALONG_SCREEN_WIDTH", 1024),
			ScreenHeight: getIntConfigValue("", "READALONG_SCREEN_HEIGHT", 768),
		},
		Poll: PollConfig{
			MaxIterations: getIntConfigValue(*pollMax, "READALONG_POLL_MAX", 120),
			Backoff:       getFloatConfigValue(*pollBackoff, "READALONG_POLL_BACKOFF", 1.5),
		},
		Store: StoreConfig{Path: getConfigValue(*dataPath, "READALONG_DATA_PATH", "")},
	}

	var err error
	if cfg.API.Timeout, err = parseDuration(*apiTimeout, "READALONG_API_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Poll.Interval, err = parseDuration(*pollInterval, "READALONG_POLL_INTERVAL", "5s"); err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	if cfg.Store.Path, err = expandPath(cfg.Store.Path, filepath.Join(home, ".readalong")); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all player config values are present and within range.
func (c *PlayerConfig) Validate() error {
	return validation.New().Validate(c)
}

// LoadServerConfig loads server configuration with the same precedence as LoadPlayerConfig.
func LoadServerConfig(args []string) (*ServerConfig, error) {
	fs := flag.NewFlagSet("readalong-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	port := fs.String("port", "", "Server port (default: 8000)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout, 0 disables (default: 0)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	outputPath := fs.String("output-path", "", "Base output directory (default: ./outputs)")
	audiobooksPath := fs.String("audiobooks-path", "", "Audiobooks directory (default: {output}/audiobooks)")
	obsidianPath := fs.String("obsidian-path", "", "Obsidian audio directory (default: ./obsidian_audio)")
	pdfInput := fs.String("pdf-input-path", "", "Directory of PDFs available for processing")
	pdfCache := fs.String("pdf-cache-path", "", "Directory of processed PDF caches")
	watch := fs.String("watch", "", "Watch the audiobooks directory for manifest changes (default: true)")
	pdfServiceURL := fs.String("pdf-service-url", "", "PDF processing service URL")
	pdfServiceTimeout := fs.String("pdf-service-timeout", "", "PDF service request timeout (default: 30s)")
	dataPath := fs.String("data-path", "", "Directory for jobs database and search index")
	processPerMinute := fs.String("process-per-minute", "", "Processing requests per client per minute (default: 6)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	_ = loadEnvFile(*envFile)

	cfg := &ServerConfig{
		App:    AppConfig{Environment: getConfigValue(*env, "ENV", "development")},
		Logger: loggerConfig(*logLevel, *logFormat),
		HTTP: HTTPConfig{
			Port: getConfigValue(*port, "SERVER_PORT", "8000"),
		},
		Library: LibraryConfig{
			Watch: getBoolConfigValue(*watch, "READALONG_WATCH", true),
		},
		PDFService: PDFServiceConfig{
			URL: strings.TrimRight(getConfigValue(*pdfServiceURL, "PDF_SERVICE_URL", "http://pdf-service:8001"), "/"),
		},
		RateLimit: RateLimitConfig{
			ProcessPerMinute: getIntConfigValue(*processPerMinute, "READALONG_PROCESS_PER_MINUTE", 6),
			ProcessBurst:     getIntConfigValue("", "READALONG_PROCESS_BURST", 3),
		},
	}

	var err error
	if cfg.HTTP.ReadTimeout, err = parseDuration(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	// Audio streams outlive any fixed write deadline, so the default is none.
	if cfg.HTTP.WriteTimeout, err = parseDuration(*writeTimeout, "SERVER_WRITE_TIMEOUT", "0s"); err != nil {
		return nil, err
	}
	if cfg.HTTP.IdleTimeout, err = parseDuration(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.PDFService.Timeout, err = parseDuration(*pdfServiceTimeout, "PDF_SERVICE_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	if err := cfg.expandLibraryPaths(
		getConfigValue(*outputPath, "READALONG_OUTPUT_PATH", "outputs"),
		getConfigValue(*audiobooksPath, "READALONG_AUDIOBOOKS_PATH", ""),
		getConfigValue(*obsidianPath, "READALONG_OBSIDIAN_PATH", "obsidian_audio"),
		getConfigValue(*pdfInput, "READALONG_PDF_INPUT_PATH", "pdf_input"),
		getConfigValue(*pdfCache, "READALONG_PDF_CACHE_PATH", "pdf_cache"),
		getConfigValue(*dataPath, "READALONG_SERVER_DATA_PATH", ""),
	); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all server config values are present and within range.
func (c *ServerConfig) Validate() error {
	return validation.New().Validate(c)
}

// expandLibraryPaths resolves every directory; audiobooks default under output,
// data defaults to {output}/.readalong.
func (c *ServerConfig) expandLibraryPaths(output, audiobooks, obsidian, pdfInput, pdfCache, data string) error {
	out, err := expandPath(output, "")
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	c.Library.StandalonePath = out

	paths := []struct {
		name string
		dst  *string
		src  string
		def  string
	}{
		{"audiobooks", &c.Library.AudiobooksPath, audiobooks, filepath.Join(out, "audiobooks")},
		{"obsidian", &c.Library.ObsidianPath, obsidian, ""},
		{"pdf input", &c.Library.PDFInputPath, pdfInput, ""},
		{"pdf cache", &c.Library.PDFCachePath, pdfCache, ""},
		{"data", &c.Data.Path, data, filepath.Join(out, ".readalong")},
	}
	for _, p := range paths {
		expanded, err := expandPath(p.src, p.def)
		if err != nil {
			return fmt.Errorf("invalid %s path: %w", p.name, err)
		}
		*p.dst = expanded
	}
	return nil
}

func loggerConfig(level, format string) LoggerConfig {
	return LoggerConfig{
		Level:  getConfigValue(level, "LOG_LEVEL", "info"),
		Format: getConfigValue(format, "LOG_FORMAT", ""),
	}
}

func parseDuration(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), s, err)
	}
	return d, nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		path = defaultPath
	}
	if path == "" {
		return "", nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
