// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pdiddy/property-extractor/internal/telemetry"
	"github.com/pdiddy/property-extractor/pkg/types"
)

// progressMetric is the metric logged after every completed unit.
const progressMetric = "num_papers_processed"

// RunHooks prepares the run's directories and reports progress to an
// optional telemetry tracker.
type RunHooks struct {
	outputDir string
	cacheDir  string
	logger    *slog.Logger

	tracker   telemetry.Tracker
	telemetry types.TelemetryConfig
	runConfig map[string]any
	run       telemetry.Run
}

// HookOption configures RunHooks.
type HookOption func(*RunHooks)

// WithTracker reports the run to tracker. The run described by cfg is
// started unless the tracker already has an active run.
func WithTracker(tracker telemetry.Tracker, cfg types.TelemetryConfig, runConfig map[string]any) HookOption {
	return func(h *RunHooks) {
		h.tracker = tracker
		h.telemetry = cfg
		h.runConfig = runConfig
	}
}

// WithHookLogger sets the hooks' logger.
func WithHookLogger(l *slog.Logger) HookOption {
	return func(h *RunHooks) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewRunHooks returns hooks for a run writing stores to outputDir. An empty
// cacheDir means no cache directory is prepared.
func NewRunHooks(outputDir, cacheDir string, opts ...HookOption) *RunHooks {
	h := &RunHooks{outputDir: outputDir, cacheDir: cacheDir, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run returns the telemetry run, or nil before OnRunStart or when
// telemetry is off.
func (h *RunHooks) Run() telemetry.Run { return h.run }

// OnRunStart creates the output directory (not its parents) and the cache
// directory, then attaches to or starts the telemetry run.
func (h *RunHooks) OnRunStart(ctx context.Context) error {
	if err := os.Mkdir(h.outputDir, 0o755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if h.cacheDir != "" {
		if err := os.MkdirAll(h.cacheDir, 0o755); err != nil {
			return fmt.Errorf("creating cache directory: %w", err)
		}
	}

	if h.tracker == nil {
		return nil
	}

	if run, ok := h.tracker.Active(); ok {
		h.run = run
		h.logger.Info("reusing telemetry run", "run", run.ID())
	} else {
		run, err := h.tracker.Start(ctx, h.telemetry.Project, h.runConfig, h.telemetry.RunName)
		if err != nil {
			return fmt.Errorf("starting telemetry run: %w", err)
		}
		h.run = run
		h.logger.Info("started telemetry run", "run", run.ID(), "project", h.telemetry.Project)
	}

	for _, path := range h.telemetry.SaveFiles {
		if err := h.run.Save(path); err != nil {
			h.logger.Warn("saving file to telemetry run", "file", path, "error", err)
		}
	}
	return nil
}

// OnProgress records the number of completed units.
func (h *RunHooks) OnProgress(ctx context.Context, completed int) {
	if h.run == nil {
		return
	}
	if err := h.run.Log(ctx, map[string]float64{progressMetric: float64(completed)}); err != nil {
		h.logger.Warn("logging progress", "error", err)
	}
}

// OnRunEnd records the final counters.
func (h *RunHooks) OnRunEnd(ctx context.Context, s Summary) {
	h.logger.Info("run finished",
		"mode", s.Mode,
		"total", s.Total,
		"extracted", s.Extracted,
		"skipped", s.Skipped,
		"cancelled", s.Cancelled,
		"timed_out", s.TimedOut,
		"failed", s.Failed,
	)
	if h.run == nil {
		return
	}
	err := h.run.Log(ctx, map[string]float64{
		"extracted": float64(s.Extracted),
		"skipped":   float64(s.Skipped),
		"cancelled": float64(s.Cancelled),
		"timed_out": float64(s.TimedOut),
		"failed":    float64(s.Failed),
	})
	if err != nil {
		h.logger.Warn("logging run summary", "error", err)
	}
}
