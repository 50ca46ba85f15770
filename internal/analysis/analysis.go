package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tailor/internal/logging"
	"tailor/internal/media/ffprobe"
	"tailor/internal/services"
	"tailor/internal/services/llm"
	"tailor/internal/transform"
)

// Result is the advisory outcome of analysing one command.
type Result struct {
	Succeeded   bool     `json:"succeeded"`
	Hint        string   `json:"hint,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Raw         string   `json:"-"`
}

// Analyzer inspects an asset and a command before it is resolved.
type Analyzer interface {
	Analyze(ctx context.Context, assetPath, command string) (Result, error)
}

// Completer sends a JSON-mode prompt to a language model.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ProbeFunc returns container metadata for a media file.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Disabled is the analyzer used when no provider is configured.
type Disabled struct{}

// Analyze always reports the analysis as unavailable.
func (Disabled) Analyze(context.Context, string, string) (Result, error) {
	return Result{}, services.Wrap(services.ErrAnalysisUnavailable, "analysis", "analyze", "no provider configured", nil)
}

// PromptAnalyzer asks a language model which registered operation a command
// most likely means and what the footage contains.
type PromptAnalyzer struct {
	completer Completer
	registry  *transform.Registry
	probe     ProbeFunc
	logger    *slog.Logger
}

// Option customizes a PromptAnalyzer.
type Option func(*PromptAnalyzer)

// WithProbe includes container metadata from probe in the prompt.
func WithProbe(probe ProbeFunc) Option {
	return func(a *PromptAnalyzer) {
		a.probe = probe
	}
}

// WithLogger sets the analyzer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *PromptAnalyzer) {
		a.logger = logging.NewComponentLogger(logger, "analysis")
	}
}

// NewPromptAnalyzer builds an analyzer over completer. Hints are limited to
// operations in registry.
func NewPromptAnalyzer(completer Completer, registry *transform.Registry, opts ...Option) *PromptAnalyzer {
	a := &PromptAnalyzer{
		completer: completer,
		registry:  registry,
		logger:    logging.NewComponentLogger(nil, "analysis"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type modelResponse struct {
	Operation   string   `json:"operation"`
	Summary     string   `json:"scene_description"`
	Suggestions []string `json:"suggested_edits"`
}

// Analyze builds the prompt, calls the model and validates its answer. Every
// failure wraps services.ErrAnalysisUnavailable.
func (a *PromptAnalyzer) Analyze(ctx context.Context, assetPath, command string) (Result, error) {
	if a == nil || a.completer == nil {
		return Disabled{}.Analyze(ctx, assetPath, command)
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{}, services.Wrap(services.ErrAnalysisUnavailable, "analysis", "analyze", "empty command", nil)
	}

	metadata := ""
	if a.probe != nil {
		probed, err := a.probe(ctx, assetPath)
		if err != nil {
			a.logger.Debug("probe failed; analysing without metadata", logging.Error(err))
		} else {
			metadata = probed.Describe()
		}
	}

	content, err := a.completer.CompleteJSON(ctx, a.systemPrompt(), userPrompt(command, metadata))
	if err != nil {
		return Result{}, services.Wrap(services.ErrAnalysisUnavailable, "analysis", "complete", "", err)
	}
	var parsed modelResponse
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return Result{Raw: content}, services.Wrap(services.ErrAnalysisUnavailable, "analysis", "decode", "", err)
	}

	result := Result{
		Succeeded: true,
		Summary:   strings.TrimSpace(parsed.Summary),
		Raw:       content,
	}
	if hint := strings.ToLower(strings.TrimSpace(parsed.Operation)); a.registry.Has(hint) {
		result.Hint = hint
	} else if hint != "" && hint != "none" {
		a.logger.Debug("discarding unknown operation hint", logging.String("hint", hint))
	}
	for _, s := range parsed.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			result.Suggestions = append(result.Suggestions, s)
		}
	}
	return result, nil
}

func (a *PromptAnalyzer) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a post-production assistant. A user typed a short editing request for a video.\n")
	b.WriteString("Pick the single operation below that best matches the request, or \"none\".\n\nOperations:\n")
	for _, op := range a.registry.List() {
		fmt.Fprintf(&b, "- %s: %s\n", op.ID, op.Description)
	}
	b.WriteString("\nRespond with JSON only:\n")
	b.WriteString(`{"operation": "<id or none>", "scene_description": "<one sentence>", "suggested_edits": ["<id>", ...]}`)
	return b.String()
}

func userPrompt(command, metadata string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %q\n", command)
	if metadata != "" {
		fmt.Fprintf(&b, "Source: %s\n", metadata)
	}
	return b.String()
}
