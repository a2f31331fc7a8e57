// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"strings"
	"time"
)

// WorkUnit is one source document to process.
type WorkUnit struct {
	// Path is the filesystem path of the source document.
	Path string `json:"path" yaml:"path"`

	// Base is the file name without directory or extension. It names the
	// document's record store.
	Base string `json:"base" yaml:"base"`
}

// NewWorkUnit builds a WorkUnit for path, deriving its base name.
func NewWorkUnit(path string) WorkUnit {
	name := filepath.Base(path)
	return WorkUnit{
		Path: path,
		Base: strings.TrimSuffix(name, filepath.Ext(name)),
	}
}

// UnitStatus is the outcome of processing one work unit.
type UnitStatus string

const (
	StatusExtracted UnitStatus = "extracted"
	StatusSkipped   UnitStatus = "skipped"
	StatusCancelled UnitStatus = "cancelled"
	StatusTimedOut  UnitStatus = "timed_out"
	StatusFailed    UnitStatus = "failed"
)

// UnitResult reports how one work unit was processed. It is the payload a
// worker sends back to the primary when it finishes a unit.
type UnitResult struct {
	Path    string        `json:"path" yaml:"path"`
	Base    string        `json:"base" yaml:"base"`
	Status  UnitStatus    `json:"status" yaml:"status"`
	Records int           `json:"records" yaml:"records"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`

	// Error records the failure message. Empty unless Status is failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// StoreWritten reports whether the unit ended with a record store written
// during this run.
func (r UnitResult) StoreWritten() bool {
	switch r.Status {
	case StatusExtracted, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}
