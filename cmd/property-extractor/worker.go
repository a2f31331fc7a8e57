// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/property-extractor/internal/dispatch"
	"github.com/pdiddy/property-extractor/internal/extractor"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve extraction assignments on stdin and stdout",
	Hidden: true,
	Long: `Worker is started by "extract --mode process". It reads assignments from
stdin as JSON lines, extracts each document, and writes one completion per
assignment to stdout. It exits when told to or when stdin closes. Logs go
to stderr.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().String("run-config", "", "resolved run config written by the primary")
	workerCmd.MarkFlagRequired("run-config")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("run-config")
	cfg, err := readRunConfig(path)
	if err != nil {
		return err
	}

	logger := slog.Default().With("pid", os.Getpid())
	proc, err := buildProcessor(cfg, logger)
	if err != nil {
		return fmt.Errorf("configuring worker: %w", err)
	}

	// The primary owns shutdown. Interrupts reach the whole process group,
	// so they are ignored here and the worker drains until told to exit.
	signal.Ignore(os.Interrupt, syscall.SIGTERM)

	return extractor.ServeWorker(cmd.Context(), dispatch.NewStreamWorker(os.Stdin, os.Stdout), proc, logger)
}
