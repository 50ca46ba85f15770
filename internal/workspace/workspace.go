package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"tailor/internal/analysis"
	"tailor/internal/config"
	"tailor/internal/engine"
	"tailor/internal/ingest"
	"tailor/internal/intent"
	"tailor/internal/logging"
	"tailor/internal/metrics"
	"tailor/internal/mirror"
	"tailor/internal/notifications"
	"tailor/internal/pipeline"
	"tailor/internal/preflight"
	"tailor/internal/services"
	"tailor/internal/transform"
	"tailor/internal/versions"
)

// ErrLocked is returned when another tailor process holds the state directory.
var ErrLocked = errors.New("state directory is locked by another tailor process")

// Mode selects how the state directory lock is taken.
type Mode int

const (
	// ReadOnly takes a shared lock; several readers may coexist.
	ReadOnly Mode = iota
	// ReadWrite takes the exclusive lock required to register versions.
	ReadWrite
)

// Workspace is every component wired for one state directory.
type Workspace struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *transform.Registry
	Resolver *intent.Resolver
	Store    *versions.Store
	Engine   *engine.Engine
	Analysis analysis.Backend
	Mirror   *mirror.Publisher
	Metrics  *metrics.Recorder
	Pipeline *pipeline.Orchestrator
	Importer *ingest.Importer
	Notifier notifications.Service

	lock *flock.Flock
}

// Open locks the state directory and builds the pipeline. In ReadWrite mode
// engine scratch files left by a crashed process are removed first.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, mode Mode) (*Workspace, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", services.ErrConfiguration)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	ws := &Workspace{Config: cfg, Logger: logger, lock: flock.New(cfg.LockPath())}
	if err := ws.acquire(ctx, mode); err != nil {
		return nil, err
	}
	if err := ws.build(ctx, mode); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return ws, nil
}

func (w *Workspace) acquire(ctx context.Context, mode Mode) error {
	var (
		ok  bool
		err error
	)
	if mode == ReadWrite {
		ok, err = w.lock.TryLock()
	} else {
		ok, err = w.lock.TryRLock()
	}
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", w.lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("%w (%s)", ErrLocked, w.lock.Path())
	}
	logging.WithContext(ctx, w.Logger).Debug("state directory locked",
		logging.String("lock", w.lock.Path()),
		logging.Bool("exclusive", mode == ReadWrite),
	)
	return nil
}

func (w *Workspace) build(ctx context.Context, mode Mode) error {
	cfg := w.Config

	if mode == ReadWrite {
		removed, err := engine.SweepPartials(cfg.Paths.MediaDir)
		if err != nil {
			return err
		}
		if removed > 0 {
			w.Logger.Info("removed interrupted engine outputs", logging.Int("count", removed))
		}
	}

	w.Registry = transform.Default()
	resolver, err := intent.NewDefault(w.Registry)
	if err != nil {
		return err
	}
	w.Resolver = resolver

	w.Store, err = versions.Open(ctx, versions.Options{
		Dir:          cfg.Paths.MediaDir,
		ManifestPath: cfg.ManifestPath(),
		Suffixes:     w.Registry.Suffixes(),
		ReadOnly:     mode == ReadOnly,
		Logger:       w.Logger,
	})
	if err != nil {
		return err
	}

	w.Metrics = metrics.New()
	w.Metrics.SetVersions(w.Store.Len())

	w.Engine = engine.New(engine.Config{
		Binary:          cfg.Engine.FFmpegBinary,
		Timeout:         cfg.EngineTimeout(),
		DiagnosticBytes: cfg.Engine.DiagnosticBytes,
	}, w.Registry, w.Store, engine.WithLogger(w.Logger), engine.WithMetrics(w.Metrics))

	w.Analysis, err = analysis.FromConfig(ctx, cfg, w.Registry, w.Logger)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{
		pipeline.WithAnalyzer(w.Analysis.Analyzer, cfg.AnalysisTimeout()),
		pipeline.WithLogger(w.Logger),
		pipeline.WithMetrics(w.Metrics),
	}
	if cfg.Mirror.Enabled {
		w.Mirror, err = mirror.New(ctx, mirror.Config{
			Bucket:   cfg.Mirror.Bucket,
			Region:   cfg.Mirror.Region,
			Endpoint: cfg.Mirror.Endpoint,
			Prefix:   cfg.Mirror.Prefix,
		}, mirror.WithLogger(w.Logger), mirror.WithMetrics(w.Metrics))
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithPublisher(w.Mirror))
	}
	w.Notifier = notifications.NewService(cfg)
	if notifications.Enabled(w.Notifier) {
		opts = append(opts, pipeline.WithNotifier(w.Notifier))
	}
	w.Pipeline = pipeline.New(w.Store, w.Resolver, w.Engine, opts...)

	w.Importer = ingest.New(w.Store,
		ingest.WithMaxBytes(int64(cfg.API.MaxUploadMB)<<20),
		ingest.WithLogger(w.Logger),
		ingest.WithMetrics(w.Metrics),
	)
	return nil
}

// Services returns the remote collaborators preflight should probe.
func (w *Workspace) Services() preflight.Services {
	var svc preflight.Services
	if w.Analysis.Health != nil {
		svc.Analysis = w.Analysis.Health
	}
	if w.Mirror != nil {
		svc.Mirror = w.Mirror
	}
	return svc
}

// AssetOf returns the asset a stored filename belongs to. Unknown names are
// returned unchanged so the pipeline reports them as missing assets.
func (w *Workspace) AssetOf(filename string) string {
	if v, err := w.Store.Get(filename); err == nil {
		return v.Asset
	}
	return filename
}

// Close releases the manifest and the state directory lock.
func (w *Workspace) Close() error {
	if w == nil {
		return nil
	}
	var errs []error
	if w.Store != nil {
		errs = append(errs, w.Store.Close())
	}
	if w.lock != nil {
		errs = append(errs, w.lock.Unlock())
	}
	return errors.Join(errs...)
}
