// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/property-extractor/internal/export"
	"github.com/pdiddy/property-extractor/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Flatten the record stores into one CSV, JSON, or XLSX table",
	Long: `Export reads every record store in the store directory and writes one
table with an Article column naming the source document. One file is
written per format as <destination>/<save-name>.<format>.`,
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.String("store-dir", "", "directory of record stores (default: output_dir)")
	f.String("destination", "", "directory for exported files (default: exports)")
	f.String("save-name", "", "export file stem (default: records)")
	f.StringSlice("models", nil, "properties to export (default: all)")
	f.StringSlice("formats", nil, "export formats: csv, json, xlsx (default: csv,json)")

	for key, flag := range map[string]string{
		"export.store_dir":       "store-dir",
		"export.destination_dir": "destination",
		"export.save_name":       "save-name",
		"export.models":          "models",
		"export.formats":         "formats",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := exportConfig(viper.GetViper())
	if err != nil {
		return err
	}

	res, err := export.ExportAll(cmd.Context(), cfg, slog.Default())
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d records from %d stores\n", res.Rows, res.Stores)
	for _, path := range res.Files {
		fmt.Printf("  %s\n", path)
	}
	return nil
}

// exportConfig resolves the export settings. The store directory falls
// back to the extraction output directory.
func exportConfig(v *viper.Viper) (types.ExportConfig, error) {
	cfg := types.ExportConfig{
		StoreDir:       v.GetString("export.store_dir"),
		DestinationDir: v.GetString("export.destination_dir"),
		SaveName:       v.GetString("export.save_name"),
	}
	if cfg.StoreDir == "" {
		cfg.StoreDir = v.GetString("output_dir")
	}
	if cfg.SaveName == "" {
		return cfg, fmt.Errorf("export save name is required")
	}

	if names := v.GetStringSlice("export.models"); len(names) > 0 {
		models, err := parseModels(names)
		if err != nil {
			return cfg, err
		}
		cfg.Models = models
	}
	for _, f := range v.GetStringSlice("export.formats") {
		cfg.Formats = append(cfg.Formats, types.ExportFormat(f))
	}
	return cfg, nil
}
