// Package metrics exposes Prometheus counters and histograms for the edit
// pipeline on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by every recorder method.
const (
	OutcomeSuccess = "success"
	OutcomeReused  = "reused"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeSkipped = "skipped"
)

// Recorder holds the pipeline metrics. A nil *Recorder is valid and records
// nothing, so components can take one unconditionally.
type Recorder struct {
	registry *prometheus.Registry

	engineRuns     *prometheus.CounterVec
	engineDuration *prometheus.HistogramVec
	commands       *prometheus.CounterVec
	analyses       *prometheus.CounterVec
	mirrorUploads  *prometheus.CounterVec
	imports        *prometheus.CounterVec
	versions       prometheus.Gauge
}

// New creates a recorder with its own registry plus the Go and process
// collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		engineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tailor_engine_runs_total",
				Help: "Transform executions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		engineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tailor_engine_run_duration_seconds",
				Help:    "Wall-clock time of ffmpeg invocations",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"operation"},
		),
		commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tailor_commands_total",
				Help: "Edit commands handled by the orchestrator, by error kind",
			},
			[]string{"outcome"},
		),
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tailor_analysis_total",
				Help: "Advisory analysis calls by outcome",
			},
			[]string{"outcome"},
		),
		mirrorUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tailor_mirror_uploads_total",
				Help: "Object mirror uploads by outcome",
			},
			[]string{"outcome"},
		),
		imports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tailor_imports_total",
				Help: "Uploaded originals by outcome",
			},
			[]string{"outcome"},
		),
		versions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tailor_versions",
				Help: "Registered versions across all assets",
			},
		),
	}
}

// ObserveEngineRun records one engine execution. Reused results are counted
// but carry no duration.
func (r *Recorder) ObserveEngineRun(operation, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.engineRuns.WithLabelValues(operation, outcome).Inc()
	if outcome != OutcomeReused {
		r.engineDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncCommand counts a handled command. outcome is "success" or an error kind.
func (r *Recorder) IncCommand(outcome string) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(outcome).Inc()
}

// IncAnalysis counts one advisory analysis attempt.
func (r *Recorder) IncAnalysis(outcome string) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(outcome).Inc()
}

// IncMirror counts one mirror upload attempt.
func (r *Recorder) IncMirror(outcome string) {
	if r == nil {
		return
	}
	r.mirrorUploads.WithLabelValues(outcome).Inc()
}

// IncImport counts one import attempt.
func (r *Recorder) IncImport(outcome string) {
	if r == nil {
		return
	}
	r.imports.WithLabelValues(outcome).Inc()
}

// SetVersions updates the registered-version gauge.
func (r *Recorder) SetVersions(n int) {
	if r == nil {
		return
	}
	r.versions.Set(float64(n))
}

// Registry exposes the underlying registry for tests and custom collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
