// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DefaultDocumentTimeout bounds the extraction of a single document.
const DefaultDocumentTimeout = 300 * time.Second

// DistributionMode selects how the coordinator spreads work units.
type DistributionMode string

const (
	// ModeSingle processes units sequentially in the calling process.
	ModeSingle DistributionMode = "single"

	// ModeLocal runs a primary and N worker goroutines in one process.
	ModeLocal DistributionMode = "local"

	// ModeProcess runs a primary and N worker subprocesses.
	ModeProcess DistributionMode = "process"
)

// DistributionConfig holds settings for spreading work across workers.
type DistributionConfig struct {
	// Mode is single, local, or process. Single is used when Workers < 1.
	Mode DistributionMode `json:"mode" yaml:"mode"`

	// Workers is the number of workers besides the primary.
	Workers int `json:"workers" yaml:"workers"`
}

// TelemetryConfig holds settings for run tracking.
type TelemetryConfig struct {
	// Enabled turns run tracking on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is where the tracker keeps its database and saved files.
	Dir string `json:"dir" yaml:"dir"`

	// Project groups runs (e.g. "CDE_Extract").
	Project string `json:"project" yaml:"project"`

	// RunName is the human-readable name of a new run.
	RunName string `json:"run_name,omitempty" yaml:"run_name,omitempty"`

	// ResumeRun attaches to an existing run ID instead of creating one.
	ResumeRun string `json:"resume_run,omitempty" yaml:"resume_run,omitempty"`

	// SaveFiles lists files copied into the run at start.
	SaveFiles []string `json:"save_files,omitempty" yaml:"save_files,omitempty"`
}

// ExtractionConfig holds settings for an extraction run.
type ExtractionConfig struct {
	// DocumentDir is the flat directory of source documents.
	DocumentDir string `json:"document_dir" yaml:"document_dir"`

	// OutputDir is the root directory of per-document record stores.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// CacheDir holds cached parse state. Empty disables caching.
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`

	// Models lists the properties to extract (default: all).
	Models []Property `json:"models" yaml:"models"`

	// DocumentOptions are applied to every document before processing.
	DocumentOptions map[string]any `json:"document_options,omitempty" yaml:"document_options,omitempty"`

	// Timeout bounds the extraction of one document (default 300s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxUnits caps the number of enumerated documents. Zero means no cap.
	MaxUnits int `json:"max_units" yaml:"max_units"`

	// Validators names the document validators to apply (e.g. "min-length").
	Validators []string `json:"validators,omitempty" yaml:"validators,omitempty"`

	// MinTextLength is the threshold used by the min-length validator.
	MinTextLength int `json:"min_text_length,omitempty" yaml:"min_text_length,omitempty"`

	// Filters names the record filters to apply (e.g. "dedupe").
	Filters []string `json:"filters,omitempty" yaml:"filters,omitempty"`

	Distribution DistributionConfig `json:"distribution" yaml:"distribution"`
	Telemetry    TelemetryConfig    `json:"telemetry" yaml:"telemetry"`
}

// ExportFormat selects a consolidated export format.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
	ExportXLSX ExportFormat = "xlsx"
)

// ExportConfig holds settings for converting record stores into one table.
type ExportConfig struct {
	// StoreDir is the directory of per-document record stores.
	StoreDir string `json:"store_dir" yaml:"store_dir"`

	// DestinationDir receives the exported files.
	DestinationDir string `json:"destination_dir" yaml:"destination_dir"`

	// SaveName is the export file stem (e.g. "records").
	SaveName string `json:"save_name" yaml:"save_name"`

	// Models limits the export to these properties (default: all).
	Models []Property `json:"models" yaml:"models"`

	// Formats lists the formats to write (default: csv and json).
	Formats []ExportFormat `json:"formats" yaml:"formats"`
}
