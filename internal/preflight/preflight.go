package preflight

import (
	"context"

	"tailor/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Services carries the optional collaborators to probe. Nil fields are skipped.
type Services struct {
	Analysis HealthChecker
	Mirror   HealthChecker
}

// RunAll executes every applicable check for cfg. Required binaries that are
// missing are reported as failures; optional ones pass with a note.
func RunAll(ctx context.Context, cfg *config.Config, svc Services) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Path}
		if !status.Available {
			result.Detail = status.Detail
			if status.Optional {
				result.Passed = true
				result.Detail += " (optional)"
			}
		}
		results = append(results, result)
	}

	if svc.Analysis != nil {
		results = append(results, CheckService(ctx, "Analysis ("+cfg.Analysis.Provider+")", svc.Analysis))
	}
	if svc.Mirror != nil {
		results = append(results, CheckService(ctx, "S3 mirror", svc.Mirror))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
