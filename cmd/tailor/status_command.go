package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"tailor/internal/analysis"
	"tailor/internal/api"
	"tailor/internal/config"
	"tailor/internal/deps"
	"tailor/internal/mirror"
	"tailor/internal/preflight"
	"tailor/internal/transform"
	"tailor/internal/workspace"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := ctx.cliLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			printSection(stdout, "Workspace", colorize, workspaceLines(cmd.Context(), cfg, logger, colorize))
			printSection(stdout, "Dependencies", colorize, dependencyLines(binaryStatuses(cmd.Context(), cfg), colorize))

			dirs := []preflight.Result{
				preflight.CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir),
				preflight.CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
			}
			printSection(stdout, "Directories", colorize, resultLines(dirs, statusError, colorize))

			printSection(stdout, "Services", colorize, resultLines(serviceResults(cmd.Context(), cfg, logger), statusWarn, colorize))
			return nil
		},
	}
}

func printSection(w io.Writer, title string, colorize bool, lines []string) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(w, line)
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

// workspaceLines reports whether a daemon holds the state directory and, when
// none does, how many versions are stored.
func workspaceLines(ctx context.Context, cfg *config.Config, logger *slog.Logger, colorize bool) []string {
	ws, err := workspace.Open(ctx, cfg, logger, workspace.ReadOnly)
	switch {
	case errors.Is(err, workspace.ErrLocked):
		kind, detail := statusOK, "Running on "+cfg.Paths.APIBind
		if probeErr := probeDaemon(ctx, cfg); probeErr != nil {
			kind, detail = statusWarn, fmt.Sprintf("Lock held but API unreachable: %v", probeErr)
		}
		return []string{renderStatusLine("Daemon", kind, detail, colorize)}
	case err != nil:
		return []string{renderStatusLine("Workspace", statusError, err.Error(), colorize)}
	}
	defer ws.Close()
	return []string{
		renderStatusLine("Daemon", statusInfo, "Not running", colorize),
		renderStatusLine("Assets", statusInfo, fmt.Sprintf("%d", len(ws.Store.Assets())), colorize),
		renderStatusLine("Versions", statusInfo, fmt.Sprintf("%d", ws.Store.Len()), colorize),
	}
}

func probeDaemon(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+cfg.Paths.APIBind+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %s", resp.Status)
	}
	return nil
}

func binaryStatuses(ctx context.Context, cfg *config.Config) []api.DependencyStatus {
	statuses := preflight.CheckSystemDeps(cfg)
	out := api.FromDependencies(statuses)
	for i, s := range statuses {
		if !s.Available {
			continue
		}
		if v, err := deps.Version(ctx, s.Path); err == nil {
			out[i].Detail = v
		}
	}
	return out
}

func serviceResults(ctx context.Context, cfg *config.Config, logger *slog.Logger) []preflight.Result {
	var results []preflight.Result

	backend, err := analysis.FromConfig(ctx, cfg, transform.Default(), logger)
	if err != nil {
		results = append(results, preflight.Result{Name: "analysis", Detail: err.Error()})
	} else {
		result := preflight.CheckService(ctx, "analysis", backend.Health)
		if backend.Health != nil {
			result.Detail = fmt.Sprintf("%s (%s %s)", result.Detail, backend.Provider, backend.Model)
		}
		results = append(results, result)
	}

	var mirrorChecker preflight.HealthChecker
	if cfg.Mirror.Enabled {
		publisher, err := mirror.New(ctx, mirror.Config{
			Bucket:   cfg.Mirror.Bucket,
			Region:   cfg.Mirror.Region,
			Endpoint: cfg.Mirror.Endpoint,
			Prefix:   cfg.Mirror.Prefix,
		}, mirror.WithLogger(logger))
		if err != nil {
			return append(results, preflight.Result{Name: "mirror", Detail: err.Error()})
		}
		mirrorChecker = publisher
	}
	results = append(results, preflight.CheckService(ctx, "mirror", mirrorChecker))

	notify := preflight.Result{Name: "notifications", Passed: true, Detail: "Disabled"}
	if topic := cfg.Notifications.NtfyTopic; topic != "" {
		notify.Detail = "ntfy " + topic
	}
	return append(results, notify)
}

// resultLines renders preflight results, using failKind for failures.
func resultLines(results []preflight.Result, failKind statusKind, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = failKind
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}
