// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/property-extractor/internal/cache"
	"github.com/pdiddy/property-extractor/internal/document"
	"github.com/pdiddy/property-extractor/internal/extractor"
	"github.com/pdiddy/property-extractor/internal/recordstore"
	"github.com/pdiddy/property-extractor/pkg/types"
)

// Configuration defaults. Keys follow the YAML field names of
// types.ExtractionConfig.
func init() {
	viper.SetDefault("document_dir", "documents")
	viper.SetDefault("output_dir", "records")
	viper.SetDefault("timeout", types.DefaultDocumentTimeout)
	viper.SetDefault("min_text_length", 200)
	viper.SetDefault("telemetry.dir", ".telemetry")
	viper.SetDefault("telemetry.project", "CDE_Extract")
	viper.SetDefault("export.destination_dir", "exports")
	viper.SetDefault("export.save_name", "records")
}

// parseModels turns property names into properties. An empty list selects
// every property.
func parseModels(names []string) ([]types.Property, error) {
	var props []types.Property
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			p := types.Property(part)
			if !p.Valid() {
				return nil, fmt.Errorf("unknown model %q", part)
			}
			props = append(props, p)
		}
	}
	if len(props) == 0 {
		return append([]types.Property(nil), types.AllProperties...), nil
	}
	return props, nil
}

// extractionConfig resolves the extraction settings from flags, the config
// file, and the environment.
func extractionConfig(v *viper.Viper) (types.ExtractionConfig, error) {
	models, err := parseModels(v.GetStringSlice("models"))
	if err != nil {
		return types.ExtractionConfig{}, err
	}

	cfg := types.ExtractionConfig{
		DocumentDir:     v.GetString("document_dir"),
		OutputDir:       v.GetString("output_dir"),
		CacheDir:        v.GetString("cache_dir"),
		Models:          models,
		DocumentOptions: v.GetStringMap("document_options"),
		Timeout:         v.GetDuration("timeout"),
		MaxUnits:        v.GetInt("max_units"),
		Validators:      v.GetStringSlice("validators"),
		MinTextLength:   v.GetInt("min_text_length"),
		Filters:         v.GetStringSlice("filters"),
		Distribution: types.DistributionConfig{
			Mode:    types.DistributionMode(v.GetString("distribution.mode")),
			Workers: v.GetInt("distribution.workers"),
		},
		Telemetry: types.TelemetryConfig{
			Enabled:   v.GetBool("telemetry.enabled"),
			Dir:       v.GetString("telemetry.dir"),
			Project:   v.GetString("telemetry.project"),
			RunName:   v.GetString("telemetry.run_name"),
			ResumeRun: v.GetString("telemetry.resume_run"),
			SaveFiles: v.GetStringSlice("telemetry.save_files"),
		},
	}

	if cfg.DocumentDir == "" {
		return cfg, fmt.Errorf("document directory is required")
	}
	if cfg.OutputDir == "" {
		return cfg, fmt.Errorf("output directory is required")
	}
	if cfg.CacheDir == "" && !v.GetBool("no_cache") {
		cfg.CacheDir = strings.TrimRight(cfg.DocumentDir, `/\`) + "_cache"
	}
	if v.GetBool("no_cache") {
		cfg.CacheDir = ""
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = types.DefaultDocumentTimeout
	}
	if v.GetBool("use_mpi") && cfg.Distribution.Mode == "" {
		cfg.Distribution.Mode = types.ModeProcess
	}

	switch cfg.Distribution.Mode {
	case types.ModeSingle, "":
		cfg.Distribution.Mode = types.ModeSingle
	case types.ModeLocal, types.ModeProcess:
		if cfg.Distribution.Workers < 1 {
			cfg.Distribution.Mode = types.ModeSingle
		}
	default:
		return cfg, fmt.Errorf("unknown distribution mode %q", cfg.Distribution.Mode)
	}
	return cfg, nil
}

// runConfig is the subset of cfg recorded with a telemetry run.
func runConfig(cfg types.ExtractionConfig) map[string]any {
	models := make([]string, len(cfg.Models))
	for i, m := range cfg.Models {
		models[i] = string(m)
	}
	return map[string]any{
		"document_dir": cfg.DocumentDir,
		"output_dir":   cfg.OutputDir,
		"cache_dir":    cfg.CacheDir,
		"models":       models,
		"timeout":      cfg.Timeout.String(),
		"max_units":    cfg.MaxUnits,
		"mode":         string(cfg.Distribution.Mode),
		"workers":      cfg.Distribution.Workers,
	}
}

// buildProcessor wires a per-document processor from cfg.
func buildProcessor(cfg types.ExtractionConfig, logger *slog.Logger) (*extractor.Processor, error) {
	opts := []extractor.ProcessorOption{
		extractor.WithTimeout(cfg.Timeout),
		extractor.WithDocumentOptions(cfg.DocumentOptions),
		extractor.WithLogger(logger),
	}

	if cfg.CacheDir != "" {
		c, err := cache.New(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, extractor.WithCache(c))
	}

	validator, err := document.NewValidator(cfg.Validators, cfg.MinTextLength, cfg.Models)
	if err != nil {
		return nil, err
	}
	if validator != nil {
		opts = append(opts, extractor.WithValidator(validator))
	}

	filter, err := document.NewFilter(cfg.Filters)
	if err != nil {
		return nil, err
	}
	if filter != nil {
		opts = append(opts, extractor.WithFilter(filter))
	}

	return extractor.NewProcessor(document.TextLoader{}, recordstore.NewRoot(cfg.OutputDir), cfg.Models, opts...), nil
}

// writeRunConfig saves the resolved config for worker processes and
// returns its path.
func writeRunConfig(cfg types.ExtractionConfig) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling run config: %w", err)
	}
	f, err := os.CreateTemp("", "property-extractor-*.yaml")
	if err != nil {
		return "", fmt.Errorf("creating run config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing run config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing run config: %w", err)
	}
	return f.Name(), nil
}

// readRunConfig loads a config written by writeRunConfig.
func readRunConfig(path string) (types.ExtractionConfig, error) {
	var cfg types.ExtractionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading run config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return cfg, nil
}
