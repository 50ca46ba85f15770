package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"tailor/internal/keylock"
	"tailor/internal/logging"
	"tailor/internal/metrics"
	"tailor/internal/services"
	"tailor/internal/transform"
	"tailor/internal/versions"
)

const (
	// DefaultTimeout bounds one engine run when Config.Timeout is unset.
	DefaultTimeout = 120 * time.Second
	// DefaultDiagnosticBytes is how much stderr tail a Failure carries.
	DefaultDiagnosticBytes = 500
)

// Config controls how the engine binary is invoked.
type Config struct {
	Binary          string
	Timeout         time.Duration
	DiagnosticBytes int
}

// Engine applies registered transforms to stored versions.
type Engine struct {
	cfg      Config
	registry *transform.Registry
	store    *versions.Store
	executor Executor
	logger   *slog.Logger
	metrics  *metrics.Recorder
	outputs  keylock.Locker
}

// Option customizes an Engine.
type Option func(*Engine)

// WithExecutor replaces the os/exec executor.
func WithExecutor(executor Executor) Option {
	return func(e *Engine) {
		if executor != nil {
			e.executor = executor
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.NewComponentLogger(logger, "engine")
	}
}

// WithMetrics records run counts and durations on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New constructs an engine over registry and store.
func New(cfg Config, registry *transform.Registry, store *versions.Store, opts ...Option) *Engine {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DiagnosticBytes <= 0 {
		cfg.DiagnosticBytes = DefaultDiagnosticBytes
	}
	e := &Engine{
		cfg:      cfg,
		registry: registry,
		store:    store,
		executor: CommandExecutor(),
		logger:   logging.NewComponentLogger(nil, "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OutputFilename returns the name Execute would give the result of applying
// operationID to input.
func (e *Engine) OutputFilename(operationID string, input versions.Version) (string, error) {
	op, err := e.registry.Lookup(operationID)
	if err != nil {
		return "", err
	}
	return versions.DerivedFilename(input.Filename, op.Suffix), nil
}

// Execute applies operationID to input and registers the result. Re-running
// the same pair returns the already registered version without spawning the
// engine. On any failure nothing is registered and no output is left behind.
func (e *Engine) Execute(ctx context.Context, operationID string, input versions.Version) (versions.Version, error) {
	op, err := e.registry.Lookup(operationID)
	if err != nil {
		return versions.Version{}, err
	}
	ctx = services.WithOperation(ctx, op.ID)
	logger := logging.WithContext(ctx, e.logger)

	if _, err := e.store.Get(input.Filename); err != nil {
		return versions.Version{}, err
	}
	inputPath := e.store.Path(input)
	if info, err := os.Stat(inputPath); err != nil || !info.Mode().IsRegular() {
		return versions.Version{}, services.Wrap(services.ErrVersionNotFound, "engine", "execute", "input file missing: "+input.Filename, err)
	}

	outputName := versions.DerivedFilename(input.Filename, op.Suffix)
	release, err := e.outputs.Lock(ctx, outputName)
	if err != nil {
		return versions.Version{}, err
	}
	defer release()

	if existing, ok, err := e.existing(outputName, input, op); ok || err != nil {
		if ok {
			e.metrics.ObserveEngineRun(op.ID, metrics.OutcomeReused, 0)
			logger.Debug("reusing existing version", logging.String("filename", existing.Filename))
		}
		return existing, err
	}

	partial := e.partialPath(outputName)
	start := time.Now()
	size, err := e.run(ctx, op, input, inputPath, partial)
	elapsed := time.Since(start)
	if err != nil {
		removeQuietly(partial)
		outcome := metrics.OutcomeFailure
		if errors.Is(err, services.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		e.metrics.ObserveEngineRun(op.ID, outcome, elapsed)
		logger.Warn("transform failed",
			logging.String(logging.FieldEventType, "engine_"+outcome),
			logging.String("input", input.Filename),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		)
		return versions.Version{}, err
	}

	// The process succeeded; finish publishing even if the caller has gone.
	commitCtx := context.WithoutCancel(ctx)
	finalPath := filepath.Join(e.store.Dir(), outputName)
	if err := publish(partial, finalPath); err != nil {
		removeQuietly(partial)
		if errors.Is(err, errOutputExists) {
			// Another writer claimed the name while the engine ran.
			existing, ok, lineageErr := e.existing(outputName, input, op)
			switch {
			case ok:
				e.metrics.ObserveEngineRun(op.ID, metrics.OutcomeReused, elapsed)
				return existing, nil
			case lineageErr == nil:
				lineageErr = services.Wrap(services.ErrDuplicateVersion, "engine", "publish",
					outputName+" already exists in the media directory", nil)
			}
			e.metrics.ObserveEngineRun(op.ID, metrics.OutcomeFailure, elapsed)
			return versions.Version{}, lineageErr
		}
		e.metrics.ObserveEngineRun(op.ID, metrics.OutcomeFailure, elapsed)
		return versions.Version{}, services.Wrap(services.ErrEngineFailure, "engine", "publish", outputName, err)
	}

	version, err := e.store.RegisterDerived(commitCtx, input, op.ID, outputName, size)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateVersion) && sameLineage(version, input, op) {
			e.metrics.ObserveEngineRun(op.ID, metrics.OutcomeReused, elapsed)
			return version, nil
		}
		// finalPath was created by this run, so it is safe to remove.
		removeQuietly(finalPath)
		e.metrics.ObserveEngineRun(op.ID, metrics.OutcomeFailure, elapsed)
		if errors.Is(err, services.ErrDuplicateVersion) && version.Filename != "" {
			return versions.Version{}, lineageMismatch(version)
		}
		return versions.Version{}, err
	}

	e.metrics.ObserveEngineRun(op.ID, metrics.OutcomeSuccess, elapsed)
	logger.Info("transform complete",
		logging.String("input", input.Filename),
		logging.String("output", version.Filename),
		logging.Int64("size_bytes", version.SizeBytes),
		logging.Duration("elapsed", elapsed),
	)
	return version, nil
}

// existing reports whether outputName is already registered as the result of
// op on input. A registration with different lineage is a name collision.
func (e *Engine) existing(outputName string, input versions.Version, op transform.Operation) (versions.Version, bool, error) {
	v, err := e.store.Get(outputName)
	if err != nil {
		return versions.Version{}, false, nil
	}
	if sameLineage(v, input, op) {
		return v, true, nil
	}
	return versions.Version{}, false, lineageMismatch(v)
}

func sameLineage(v, input versions.Version, op transform.Operation) bool {
	return v.Parent == input.Filename && v.Operation == op.ID
}

func lineageMismatch(v versions.Version) error {
	return services.Wrap(services.ErrDuplicateVersion, "engine", "execute",
		fmt.Sprintf("%s already exists with different lineage (parent %q, operation %q)", v.Filename, v.Parent, v.Operation), nil)
}

// run invokes the engine into partial and returns the output size.
func (e *Engine) run(ctx context.Context, op transform.Operation, input versions.Version, inputPath, partial string) (int64, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	tail := newTailBuffer(e.cfg.DiagnosticBytes)
	args := op.BuildArgs(inputPath, partial)
	e.logger.Debug("starting engine",
		logging.String(logging.FieldOperation, op.ID),
		logging.String("binary", e.cfg.Binary),
		logging.Any("args", args),
	)

	if err := e.executor.Run(runCtx, e.cfg.Binary, args, tail); err != nil {
		failure := &Failure{
			Marker:    services.ErrEngineFailure,
			Operation: op.ID,
			Input:     input.Filename,
			ExitCode:  exitCode(err),
			Stderr:    tail.String(),
			Err:       err,
		}
		switch {
		case ctx.Err() != nil:
			failure.Marker = ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			failure.Marker = services.ErrTimeout
			failure.Err = fmt.Errorf("exceeded %s: %w", e.cfg.Timeout, err)
		}
		return 0, failure
	}

	info, err := os.Stat(partial)
	if err != nil || info.Size() == 0 {
		if err == nil {
			err = errors.New("engine produced an empty output file")
		}
		return 0, &Failure{
			Marker:    services.ErrEngineFailure,
			Operation: op.ID,
			Input:     input.Filename,
			ExitCode:  0,
			Stderr:    tail.String(),
			Err:       err,
		}
	}
	return info.Size(), nil
}

func (e *Engine) partialPath(outputName string) string {
	ext := filepath.Ext(outputName)
	name := "." + versions.Stem(outputName) + versions.PartialMarker + uuid.NewString() + ext
	return filepath.Join(e.store.Dir(), name)
}

// errOutputExists reports that publish found a file it did not create.
var errOutputExists = errors.New("output path already occupied")

// publish makes partial visible as final and never replaces an existing file.
// Filesystems without hard links fall back to a no-replace rename.
func publish(partial, final string) error {
	err := os.Link(partial, final)
	if err == nil {
		return os.Remove(partial)
	}
	if errors.Is(err, fs.ErrExist) {
		return errOutputExists
	}
	if !errors.Is(err, fs.ErrPermission) && !isLinkUnsupported(err) {
		return err
	}
	if err := unix.Renameat2(unix.AT_FDCWD, partial, unix.AT_FDCWD, final, unix.RENAME_NOREPLACE); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return errOutputExists
		}
		return &os.LinkError{Op: "rename", Old: partial, New: final, Err: err}
	}
	return nil
}

func isLinkUnsupported(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EXDEV) || errors.Is(err, unix.EMLINK)
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}

// SweepPartials deletes scratch outputs left in dir by a crashed process and
// returns how many were removed.
func SweepPartials(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read media directory: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ".") || !strings.Contains(name, versions.PartialMarker) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}
