//go:build mage

package main

import (
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Extract builds the CLI and runs an extraction with the project config.
// EXTRACT_ARGS, when set, is appended to the command line.
func Extract() error {
	mg.Deps(Build)
	return sh.RunV(binPath, withArgs([]string{"extract"}, os.Getenv("EXTRACT_ARGS"))...)
}

// Export builds the CLI and flattens the record stores into exports/.
func Export() error {
	mg.Deps(Build)
	return sh.RunV(binPath, withArgs([]string{"export"}, os.Getenv("EXPORT_ARGS"))...)
}

// Runs lists the tracked extraction runs.
func Runs() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "runs")
}

// withArgs appends the whitespace-separated words of extra to base.
func withArgs(base []string, extra string) []string {
	return append(base, strings.Fields(extra)...)
}
