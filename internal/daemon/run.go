package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tailor/internal/config"
	"tailor/internal/logging"
	"tailor/internal/preflight"
	"tailor/internal/workspace"
)

// RunOptions configures the daemon process.
type RunOptions struct {
	LogLevel    string
	Development bool
	Version     string
}

// Run opens the workspace exclusively and serves the HTTP API until SIGINT,
// SIGTERM or cancellation of ctx.
func Run(ctx context.Context, cfg *config.Config, opts RunOptions) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.LogDir(), fmt.Sprintf("tailor-%s.log", runID))
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.LogDir(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.LogDir(), "tailor-*.log", cfg.Logging.RetentionDays, logPath)

	if err := checkLocal(signalCtx, logger, cfg); err != nil {
		return err
	}

	ws, err := workspace.Open(signalCtx, cfg, logger, workspace.ReadWrite)
	if err != nil {
		return err
	}
	defer ws.Close()

	checkRemote(signalCtx, logger, ws)
	logger.Info("workspace ready",
		logging.String(logging.FieldEventType, "workspace_ready"),
		logging.Int("versions", ws.Store.Len()),
		logging.Int("assets", len(ws.Store.Assets())),
		logging.String("analysis_provider", ws.Analysis.Provider),
		logging.Bool("mirror_enabled", ws.Mirror != nil),
	)

	listener, err := net.Listen("tcp", cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := NewServer(ws, WithVersion(opts.Version))
	if err := server.Serve(signalCtx, listener); err != nil {
		return err
	}
	logger.Info("tailor daemon shutting down")
	return nil
}

// checkLocal fails startup when a directory or required binary is unusable.
func checkLocal(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	failed := preflight.Failed(preflight.RunAll(ctx, cfg, preflight.Services{}))
	for _, r := range failed {
		logger.Error("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
		)
	}
	if len(failed) > 0 {
		return fmt.Errorf("preflight: %d check(s) failed, first: %s: %s", len(failed), failed[0].Name, failed[0].Detail)
	}
	return nil
}

// checkRemote probes analysis and mirror backends. Failures only warn: both
// are optional at request time.
func checkRemote(ctx context.Context, logger *slog.Logger, ws *workspace.Workspace) {
	svc := ws.Services()
	checks := []struct {
		name    string
		checker preflight.HealthChecker
		impact  string
	}{
		{"analysis", svc.Analysis, "commands resolve from keywords only"},
		{"mirror", svc.Mirror, "new versions stay local"},
	}
	for _, c := range checks {
		if c.checker == nil {
			continue
		}
		result := preflight.CheckService(ctx, c.name, c.checker)
		if result.Passed {
			logger.Info("service reachable", logging.String("service", c.name))
			continue
		}
		logging.WarnWithContext(logger, "service unavailable", c.name+"_unavailable",
			logging.String("service", c.name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, c.impact),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
