// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the property-extractor CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the property-extractor CLI.
var rootCmd = &cobra.Command{
	Use:   "property-extractor",
	Short: "Extract mechanical-property records from a directory of documents",
	Long: `property-extractor runs rule-based property models over a flat directory of
scientific documents and writes one record store per document. Runs are
restartable: a document whose store already exists is skipped.

Extraction can run sequentially, across worker goroutines, or across worker
processes. The export subcommand flattens the stores into CSV, JSON, or XLSX.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(viper.GetString("log_level"))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./property-extractor.yaml or ~/.config/property-extractor/property-extractor.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// legacyEnv maps config keys to the environment variables older batch
// scripts set.
var legacyEnv = map[string]string{
	"document_dir":       "DOCUMENT_DIR",
	"output_dir":         "OUTPUT_DIR",
	"telemetry.enabled":  "CDE_USE_WANDB",
	"telemetry.run_name": "WANDB_RUN_NAME",
	"use_mpi":            "USE_MPI",
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("property-extractor")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "property-extractor"))
		}
	}

	viper.SetEnvPrefix("PROPERTY_EXTRACTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := "PROPERTY_EXTRACTOR_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		viper.BindEnv(key, prefixed, env)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setupLogging installs a text handler on stderr as the default logger.
// Stdout is reserved for status lines and, in worker mode, the dispatch
// stream.
func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
