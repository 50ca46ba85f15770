package config

const (
	defaultConfigPath             = "~/.config/tailor/config.toml"
	defaultMediaDir               = "~/.local/share/tailor/media"
	defaultStateDir               = "~/.local/share/tailor"
	defaultAPIBind                = "127.0.0.1:8787"
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultEngineTimeoutSeconds   = 120
	defaultDiagnosticBytes        = 500
	defaultAnalysisProvider       = AnalysisProviderOpenRouter
	defaultOpenRouterBaseURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel        = "google/gemini-3-flash-preview"
	defaultGeminiModel            = "gemini-2.5-flash"
	defaultAnalysisReferer        = "https://github.com/tailor-video/tailor"
	defaultAnalysisTitle          = "Tailor Edit Analysis"
	defaultAnalysisTimeoutSeconds = 20
	defaultMirrorPrefix           = "versions/"
	defaultEditRatePerMinute      = 30
	defaultEditBurst              = 5
	defaultMaxUploadMB            = 2048
	defaultNtfyTimeoutSeconds     = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaDir: defaultMediaDir,
			StateDir: defaultStateDir,
			APIBind:  defaultAPIBind,
		},
		Engine: Engine{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			TimeoutSeconds:  defaultEngineTimeoutSeconds,
			DiagnosticBytes: defaultDiagnosticBytes,
		},
		Analysis: Analysis{
			Provider:       defaultAnalysisProvider,
			Referer:        defaultAnalysisReferer,
			Title:          defaultAnalysisTitle,
			TimeoutSeconds: defaultAnalysisTimeoutSeconds,
		},
		Mirror: Mirror{
			Prefix: defaultMirrorPrefix,
		},
		API: API{
			EditRatePerMinute: defaultEditRatePerMinute,
			EditBurst:         defaultEditBurst,
			MaxUploadMB:       defaultMaxUploadMB,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
