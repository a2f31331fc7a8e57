// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/property-extractor/pkg/types"
)

// recordsMarker marks text dumps written by earlier tooling next to the
// source documents; they are never inputs.
const recordsMarker = "records.txt"

// ListWorkUnits returns the documents in dir in lexical order, skipping
// subdirectories, hidden entries, and records dumps. When limit > 0 only
// the first limit units are returned.
func ListWorkUnits(dir string, limit int) ([]types.WorkUnit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading document directory %s: %w", dir, err)
	}

	var units []types.WorkUnit
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.Contains(name, recordsMarker) {
			continue
		}
		units = append(units, types.NewWorkUnit(filepath.Join(dir, name)))
		if limit > 0 && len(units) == limit {
			break
		}
	}
	return units, nil
}
