package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeAnalysis()
	c.normalizeMirror()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		c.Paths.MediaDir = defaultMediaDir
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine.FFmpegBinary = strings.TrimSpace(c.Engine.FFmpegBinary)
	if c.Engine.FFmpegBinary == "" {
		c.Engine.FFmpegBinary = defaultFFmpegBinary
	}
	c.Engine.FFprobeBinary = strings.TrimSpace(c.Engine.FFprobeBinary)
	if c.Engine.FFprobeBinary == "" {
		c.Engine.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeAnalysis() {
	a := &c.Analysis
	a.Provider = strings.ToLower(strings.TrimSpace(a.Provider))
	if a.Provider == "" {
		a.Provider = defaultAnalysisProvider
	}
	if a.APIKey == "" {
		a.APIKey = lookupFirstEnv(analysisKeyEnv(a.Provider)...)
	}
	a.BaseURL = strings.TrimSpace(a.BaseURL)
	a.Model = strings.TrimSpace(a.Model)
	switch a.Provider {
	case AnalysisProviderOpenRouter:
		if a.BaseURL == "" {
			a.BaseURL = defaultOpenRouterBaseURL
		}
		if a.Model == "" {
			a.Model = defaultOpenRouterModel
		}
	case AnalysisProviderGemini:
		if a.BaseURL == defaultOpenRouterBaseURL {
			a.BaseURL = ""
		}
		if a.Model == "" || a.Model == defaultOpenRouterModel {
			a.Model = defaultGeminiModel
		}
	}
	// Without credentials the advisory phase would only ever fail; skip it.
	if a.Provider != AnalysisProviderNone && strings.TrimSpace(a.APIKey) == "" {
		a.Provider = AnalysisProviderNone
	}
}

func analysisKeyEnv(provider string) []string {
	switch provider {
	case AnalysisProviderGemini:
		return []string{"TAILOR_ANALYSIS_API_KEY", "GEMINI_API_KEY"}
	default:
		return []string{"TAILOR_ANALYSIS_API_KEY", "OPENROUTER_API_KEY"}
	}
}

func (c *Config) normalizeMirror() {
	c.Mirror.Bucket = strings.TrimSpace(c.Mirror.Bucket)
	c.Mirror.Region = strings.TrimSpace(c.Mirror.Region)
	c.Mirror.Endpoint = strings.TrimSpace(c.Mirror.Endpoint)
	c.Mirror.Prefix = strings.TrimLeft(strings.TrimSpace(c.Mirror.Prefix), "/")
	if c.Mirror.Prefix != "" && !strings.HasSuffix(c.Mirror.Prefix, "/") {
		c.Mirror.Prefix += "/"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupFirstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}
