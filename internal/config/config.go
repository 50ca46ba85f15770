package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Analysis providers.
const (
	AnalysisProviderNone       = "none"
	AnalysisProviderOpenRouter = "openrouter"
	AnalysisProviderGemini     = "gemini"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	MediaDir string `toml:"media_dir"`
	StateDir string `toml:"state_dir"`
	APIBind  string `toml:"api_bind"`
}

// Engine configures the external media-processing engine.
type Engine struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	DiagnosticBytes int    `toml:"diagnostic_bytes"`
}

// Analysis configures the advisory semantic-analysis collaborator.
type Analysis struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Mirror configures best-effort S3 copies of newly derived versions.
type Mirror struct {
	Enabled  bool   `toml:"enabled"`
	Bucket   string `toml:"bucket"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
	Prefix   string `toml:"prefix"`
}

// API configures the HTTP surface of the daemon.
type API struct {
	EditRatePerMinute int `toml:"edit_rate_per_minute"`
	EditBurst         int `toml:"edit_burst"`
	MaxUploadMB       int `toml:"max_upload_mb"`
}

// Notifications configures ntfy pushes for finished and failed edits.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for tailor.
//
// Configuration sections by subsystem:
//   - Paths: media and state directories plus the API bind address
//   - Engine: ffmpeg/ffprobe binaries, timeout and diagnostic size
//   - Analysis: advisory LLM analysis backend
//   - Mirror: optional S3 mirror of derived versions
//   - API: HTTP rate limits and upload size
//   - Notifications: optional ntfy topic
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Engine        Engine        `toml:"engine"`
	Analysis      Analysis      `toml:"analysis"`
	Mirror        Mirror        `toml:"mirror"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("tailor.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the media, state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.MediaDir, c.Paths.StateDir, c.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir is where log files are written.
func (c *Config) LogDir() string {
	if c.Paths.StateDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.StateDir, "logs")
}

// ManifestPath is the SQLite version manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Paths.StateDir, "versions.db")
}

// LockPath is the single-instance lock file guarding the state directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "tailor.lock")
}

// EngineTimeout returns the hard wall-clock limit for one engine run.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

// AnalysisTimeout returns the budget for the advisory analysis phase.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the connection settings for the analysis backend.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the analysis connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:       c.Analysis.Provider,
		APIKey:         strings.TrimSpace(c.Analysis.APIKey),
		BaseURL:        strings.TrimSpace(c.Analysis.BaseURL),
		Model:          strings.TrimSpace(c.Analysis.Model),
		Referer:        strings.TrimSpace(c.Analysis.Referer),
		Title:          strings.TrimSpace(c.Analysis.Title),
		TimeoutSeconds: c.Analysis.TimeoutSeconds,
	}
}
