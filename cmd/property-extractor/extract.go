// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/property-extractor/internal/extractor"
	"github.com/pdiddy/property-extractor/internal/procpool"
	"github.com/pdiddy/property-extractor/internal/telemetry"
	"github.com/pdiddy/property-extractor/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract property records from every document in a directory",
	Long: `Extract walks a flat document directory and writes one record store per
document to the output directory. Documents whose store already exists are
skipped, so an interrupted run can simply be started again.

With --mode local or --mode process and --workers N, one primary hands
documents to N workers, goroutines or child processes respectively, and
collects their results. A document that fails or exceeds --timeout is
reported and the run continues.`,
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.String("document-dir", "", "directory of source documents (default: documents)")
	f.String("output-dir", "", "directory for per-document record stores (default: records)")
	f.String("cache-dir", "", "parse cache directory (default: <document-dir>_cache)")
	f.Bool("no-cache", false, "disable the parse cache")
	f.StringSlice("models", nil, "properties to extract (default: all)")
	f.Duration("timeout", types.DefaultDocumentTimeout, "time limit per document")
	f.Int("max-units", 0, "process at most this many documents (0: all)")
	f.StringSlice("validators", nil, "document validators: min-length, mentions-property")
	f.Int("min-text-length", 200, "threshold for the min-length validator")
	f.StringSlice("filters", nil, "record filters: require-compound, dedupe")
	f.String("mode", "", "distribution mode: single, local, process")
	f.Int("workers", 0, "number of workers besides the primary")
	f.Bool("telemetry", false, "record the run in the local telemetry store")
	f.String("run-name", "", "name for a new telemetry run")
	f.String("resume-run", "", "telemetry run ID to resume")

	for key, flag := range map[string]string{
		"document_dir":         "document-dir",
		"output_dir":           "output-dir",
		"cache_dir":            "cache-dir",
		"no_cache":             "no-cache",
		"models":               "models",
		"timeout":              "timeout",
		"max_units":            "max-units",
		"validators":           "validators",
		"min_text_length":      "min-text-length",
		"filters":              "filters",
		"distribution.mode":    "mode",
		"distribution.workers": "workers",
		"telemetry.enabled":    "telemetry",
		"telemetry.run_name":   "run-name",
		"telemetry.resume_run": "resume-run",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := extractionConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := buildProcessor(cfg, logger)
	if err != nil {
		return err
	}

	hookOpts := []extractor.HookOption{extractor.WithHookLogger(logger)}
	if cfg.Telemetry.Enabled {
		tracker, err := openTracker(ctx, cfg.Telemetry)
		if err != nil {
			return err
		}
		defer tracker.Close()
		hookOpts = append(hookOpts, extractor.WithTracker(tracker, cfg.Telemetry, runConfig(cfg)))
	}
	hooks := extractor.NewRunHooks(cfg.OutputDir, cfg.CacheDir, hookOpts...)

	opts := []extractor.CoordinatorOption{
		extractor.WithHooks(hooks),
		extractor.WithOutput(os.Stdout),
		extractor.WithCoordinatorLogger(logger),
	}

	fmt.Printf("Extracting from %s into %s (%s", cfg.DocumentDir, cfg.OutputDir, cfg.Distribution.Mode)
	if cfg.Distribution.Mode != types.ModeSingle {
		fmt.Printf(", %d workers", cfg.Distribution.Workers)
	}
	fmt.Println(")")

	var summary extractor.Summary
	switch cfg.Distribution.Mode {
	case types.ModeLocal:
		summary, err = extractor.RunLocal(ctx, proc, cfg.Distribution.Workers, cfg.DocumentDir, cfg.MaxUnits, opts...)
	case types.ModeProcess:
		summary, err = runProcesses(ctx, cfg, proc, opts)
	default:
		summary, err = extractor.NewCoordinator(proc, opts...).Run(ctx, cfg.DocumentDir, cfg.MaxUnits)
	}
	if err != nil {
		return err
	}

	if summary.HasFailures() {
		return fmt.Errorf("%d document(s) failed extraction", summary.Failed)
	}
	return nil
}

// runProcesses starts worker child processes of this binary and runs the
// primary against them.
func runProcesses(ctx context.Context, cfg types.ExtractionConfig, proc *extractor.Processor, opts []extractor.CoordinatorOption) (extractor.Summary, error) {
	cfgPath, err := writeRunConfig(cfg)
	if err != nil {
		return extractor.Summary{}, err
	}
	defer os.Remove(cfgPath)

	bin, err := os.Executable()
	if err != nil {
		return extractor.Summary{}, fmt.Errorf("locating executable: %w", err)
	}

	args := []string{"worker", "--run-config", cfgPath, "--log-level", viper.GetString("log_level")}
	pool, err := procpool.Start(bin, args, cfg.Distribution.Workers)
	if err != nil {
		return extractor.Summary{}, err
	}

	summary, runErr := extractor.NewCoordinator(proc, append(opts, extractor.WithPrimary(pool.Primary()))...).
		Run(ctx, cfg.DocumentDir, cfg.MaxUnits)
	if err := pool.Close(); err != nil {
		slog.Warn("worker shutdown", "error", err)
	}
	return summary, runErr
}

// openTracker opens the local telemetry store and resumes the configured
// run, if any.
func openTracker(ctx context.Context, cfg types.TelemetryConfig) (*telemetry.LocalTracker, error) {
	tracker, err := telemetry.OpenLocal(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if cfg.ResumeRun != "" {
		if _, err := tracker.Resume(ctx, cfg.ResumeRun); err != nil {
			tracker.Close()
			return nil, err
		}
	}
	return tracker, nil
}
