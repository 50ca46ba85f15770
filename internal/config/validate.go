package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateMirror(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.MediaDir == "" {
		return errors.New("paths.media_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q must be host:port: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.TimeoutSeconds <= 0 {
		return errors.New("engine.timeout_seconds must be positive")
	}
	if c.Engine.DiagnosticBytes <= 0 {
		return errors.New("engine.diagnostic_bytes must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	switch c.Analysis.Provider {
	case AnalysisProviderNone, AnalysisProviderOpenRouter, AnalysisProviderGemini:
	default:
		return fmt.Errorf("analysis.provider %q must be one of none, openrouter, gemini", c.Analysis.Provider)
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		return errors.New("analysis.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateMirror() error {
	if !c.Mirror.Enabled {
		return nil
	}
	if c.Mirror.Bucket == "" {
		return errors.New("mirror.bucket is required when mirror.enabled is true")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.EditRatePerMinute < 0 {
		return errors.New("api.edit_rate_per_minute must not be negative")
	}
	if c.API.EditRatePerMinute > 0 && c.API.EditBurst <= 0 {
		return errors.New("api.edit_burst must be positive when rate limiting is enabled")
	}
	if c.API.MaxUploadMB <= 0 {
		return errors.New("api.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	u, err := url.Parse(topic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}
