package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tailor/internal/analysis"
	"tailor/internal/engine"
	"tailor/internal/intent"
	"tailor/internal/keylock"
	"tailor/internal/logging"
	"tailor/internal/metrics"
	"tailor/internal/services"
	"tailor/internal/versions"
)

// DefaultAnalysisTimeout bounds the advisory phase when no timeout is given.
const DefaultAnalysisTimeout = 20 * time.Second

// Publisher copies a newly registered version somewhere else. Failures are
// logged, never returned to the caller.
type Publisher interface {
	Publish(ctx context.Context, v versions.Version, path string) (string, error)
}

// Notifier announces finished and failed edits. Failures are logged, never
// returned to the caller.
type Notifier interface {
	NotifyVersionCreated(ctx context.Context, v versions.Version) error
	NotifyEditFailed(ctx context.Context, asset, command string, err error) error
}

// Outcome is the result of one handled command.
type Outcome struct {
	Version   versions.Version
	Operation string
	// Analysis is the advisory result; zero when analysis was skipped or failed.
	Analysis analysis.Result
	// Mirror is the remote location of the new version when it was mirrored.
	Mirror string
}

// Orchestrator turns a free-text command against an asset into a new version.
type Orchestrator struct {
	store           *versions.Store
	resolver        *intent.Resolver
	engine          *engine.Engine
	analyzer        analysis.Analyzer
	analysisTimeout time.Duration
	publisher       Publisher
	notifier        Notifier
	logger          *slog.Logger
	metrics         *metrics.Recorder
	assets          keylock.Locker
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithAnalyzer enables the advisory phase, bounded by timeout.
func WithAnalyzer(a analysis.Analyzer, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.analyzer = a
		}
		if timeout > 0 {
			o.analysisTimeout = timeout
		}
	}
}

// WithPublisher mirrors each new version through p.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithNotifier announces each new version and each engine failure through n.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.NewComponentLogger(logger, "pipeline") }
}

// WithMetrics records command outcomes on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New wires an orchestrator. Analysis is disabled unless WithAnalyzer is given.
func New(store *versions.Store, resolver *intent.Resolver, eng *engine.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:           store,
		resolver:        resolver,
		engine:          eng,
		analyzer:        analysis.Disabled{},
		analysisTimeout: DefaultAnalysisTimeout,
		logger:          logging.NewComponentLogger(nil, "pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleCommand runs the advisory analysis phase and then resolves and
// executes command against the latest version of asset. Only one command per
// asset is in flight at a time; different assets proceed in parallel.
func (o *Orchestrator) HandleCommand(ctx context.Context, asset, command string) (Outcome, error) {
	ctx = services.WithAsset(ctx, asset)
	logger := logging.WithContext(ctx, o.logger)
	start := time.Now()

	outcome, err := o.handle(ctx, asset, command)

	kind := "success"
	if err != nil {
		kind = services.Kind(err)
	}
	o.metrics.IncCommand(kind)
	o.metrics.SetVersions(o.store.Len())
	if err != nil {
		logger.Info("command not applied",
			logging.String("command", command),
			logging.String("kind", kind),
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err),
		)
		if kind == services.KindEngineFailure || kind == services.KindTimeout {
			o.notify(ctx, "edit failure", func(n Notifier) error { return n.NotifyEditFailed(ctx, asset, command, err) })
		}
		return Outcome{}, err
	}
	logger.Info("command applied",
		logging.String("command", command),
		logging.String(logging.FieldOperation, outcome.Operation),
		logging.String("version", outcome.Version.Filename),
		logging.Duration("elapsed", time.Since(start)),
	)
	o.notify(ctx, "new version", func(n Notifier) error { return n.NotifyVersionCreated(ctx, outcome.Version) })
	return outcome, nil
}

func (o *Orchestrator) notify(ctx context.Context, what string, send func(Notifier) error) {
	if o.notifier == nil {
		return
	}
	if err := send(o.notifier); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "notification failed", "notification_failed",
			logging.String("event", what),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "no push was delivered"),
		)
	}
}

func (o *Orchestrator) handle(ctx context.Context, asset, command string) (Outcome, error) {
	if _, err := o.store.Leaf(asset); err != nil {
		return Outcome{}, err
	}

	release, err := o.assets.Lock(ctx, asset)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	leaf, err := o.store.Leaf(asset)
	if err != nil {
		return Outcome{}, err
	}

	// Step 1: advisory only. Step 2 always runs.
	result := o.analyze(ctx, leaf, command)

	opID, ok := o.resolver.Resolve(command)
	if !ok {
		msg := fmt.Sprintf("no operation matches %q (try: %s)", command, strings.Join(o.examples(), ", "))
		if near, found := o.resolver.Suggest(command); found {
			msg = fmt.Sprintf("no operation matches %q; did you mean %q?", command, near.Phrase)
		}
		return Outcome{}, services.Wrap(services.ErrUnrecognizedCommand, "pipeline", "resolve", msg, nil)
	}
	ctx = services.WithOperation(ctx, opID)

	// Commands are serialized per asset, so the leaf read under the lock is
	// still current.
	v, err := o.engine.Execute(ctx, opID, leaf)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Version: v, Operation: opID, Analysis: result}
	outcome.Mirror = o.publish(ctx, v)
	return outcome, nil
}

func (o *Orchestrator) analyze(ctx context.Context, leaf versions.Version, command string) analysis.Result {
	if _, disabled := o.analyzer.(analysis.Disabled); disabled {
		o.metrics.IncAnalysis(metrics.OutcomeSkipped)
		return analysis.Result{}
	}

	actx, cancel := context.WithTimeout(ctx, o.analysisTimeout)
	defer cancel()

	result, err := o.analyzer.Analyze(actx, o.store.Path(leaf), command)
	if err == nil && !result.Succeeded {
		err = services.Wrap(services.ErrAnalysisUnavailable, "pipeline", "analyze", "analyzer reported failure", nil)
	}
	if err != nil {
		outcome := metrics.OutcomeFailure
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		o.metrics.IncAnalysis(outcome)
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "analysis unavailable", "analysis_unavailable",
			logging.String("version", leaf.Filename),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the analysis provider key and reachability"),
			logging.String(logging.FieldImpact, "command resolved from keywords only"),
		)
		return analysis.Result{}
	}
	o.metrics.IncAnalysis(metrics.OutcomeSuccess)
	return result
}

func (o *Orchestrator) publish(ctx context.Context, v versions.Version) string {
	if o.publisher == nil {
		return ""
	}
	location, err := o.publisher.Publish(ctx, v, o.store.Path(v))
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "mirror upload failed", "mirror_failed",
			logging.String("version", v.Filename),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check mirror bucket credentials"),
			logging.String(logging.FieldImpact, "version is stored locally only"),
		)
		return ""
	}
	return location
}

// examples returns one trigger phrase per operation for error messages.
func (o *Orchestrator) examples() []string {
	seen := make(map[string]bool)
	var out []string
	for _, trig := range o.resolver.Triggers() {
		if seen[trig.Operation] {
			continue
		}
		seen[trig.Operation] = true
		out = append(out, fmt.Sprintf("%q", trig.Phrase))
	}
	return out
}
