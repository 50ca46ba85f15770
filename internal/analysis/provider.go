package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tailor/internal/config"
	"tailor/internal/media/ffprobe"
	"tailor/internal/services/gemini"
	"tailor/internal/services/llm"
	"tailor/internal/transform"
)

// HealthChecker is implemented by completers that can verify their credentials.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Backend pairs the analyzer with the client behind it, for status checks.
type Backend struct {
	Analyzer Analyzer
	Provider string
	Model    string
	Health   HealthChecker
}

// FromConfig builds the analyzer for the configured provider. With provider
// "none" it returns Disabled.
func FromConfig(ctx context.Context, cfg *config.Config, registry *transform.Registry, logger *slog.Logger) (Backend, error) {
	settings := cfg.GetLLM()
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	probeBinary := cfg.Engine.FFprobeBinary
	probe := func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Inspect(ctx, probeBinary, path)
	}

	var (
		completer Completer
		health    HealthChecker
		model     string
	)
	switch settings.Provider {
	case config.AnalysisProviderNone:
		return Backend{Analyzer: Disabled{}, Provider: settings.Provider}, nil
	case config.AnalysisProviderOpenRouter:
		client := llm.NewClient(llm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Referer: settings.Referer,
			Title:   settings.Title,
			Timeout: timeout,
		})
		completer, health, model = client, client, client.Model()
	case config.AnalysisProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:  settings.APIKey,
			Model:   settings.Model,
			BaseURL: settings.BaseURL,
			Timeout: timeout,
		})
		if err != nil {
			return Backend{}, err
		}
		completer, health, model = client, client, client.Model()
	default:
		return Backend{}, fmt.Errorf("analysis: unknown provider %q", settings.Provider)
	}

	analyzer := NewPromptAnalyzer(completer, registry, WithProbe(probe), WithLogger(logger))
	return Backend{Analyzer: analyzer, Provider: settings.Provider, Model: model, Health: health}, nil
}
