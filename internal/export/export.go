// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export flattens every per-document record store into one table
// and writes it as CSV, JSON, or XLSX.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/property-extractor/internal/recordstore"
	"github.com/pdiddy/property-extractor/pkg/types"
)

const sheetName = "Records"

// Row is one record together with the document it came from.
type Row struct {
	Article         string  `json:"Article"`
	Property        string  `json:"Property"`
	RawValue        string  `json:"Raw Value"`
	Value           float64 `json:"Value"`
	ValueMax        float64 `json:"Value Max"`
	Units           string  `json:"Units"`
	NormalizedValue float64 `json:"Normalized Value"`
	NormalizedUnits string  `json:"Normalized Units"`
	Compound        string  `json:"Compound"`
	Sentence        string  `json:"Sentence"`
	Element         string  `json:"Element"`
}

var header = []string{
	"Article", "Property", "Raw Value", "Value", "Value Max", "Units",
	"Normalized Value", "Normalized Units", "Compound", "Sentence", "Element",
}

func (r Row) values() []any {
	return []any{
		r.Article, r.Property, r.RawValue, r.Value, r.ValueMax, r.Units,
		r.NormalizedValue, r.NormalizedUnits, r.Compound, r.Sentence, r.Element,
	}
}

func (r Row) strings() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		r.Article, r.Property, r.RawValue, f(r.Value), f(r.ValueMax), r.Units,
		f(r.NormalizedValue), r.NormalizedUnits, r.Compound, r.Sentence, r.Element,
	}
}

// Collect reads every store under root, in store name order. When props is
// non-empty only those properties are included.
func Collect(ctx context.Context, root recordstore.Root, props []types.Property) ([]Row, int, error) {
	paths, err := root.List()
	if err != nil {
		return nil, 0, err
	}

	var rows []Row
	for _, path := range paths {
		s, err := recordstore.Open(path)
		if err != nil {
			return nil, 0, err
		}
		records, err := s.Records(ctx, props...)
		s.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("reading %s: %w", path, err)
		}
		for _, rec := range records {
			rows = append(rows, Row{
				Article:         s.Name(),
				Property:        string(rec.Property),
				RawValue:        rec.RawValue,
				Value:           rec.Value,
				ValueMax:        rec.ValueMax,
				Units:           rec.Units,
				NormalizedValue: rec.NormalizedValue,
				NormalizedUnits: rec.NormalizedUnits,
				Compound:        rec.Compound,
				Sentence:        rec.Sentence,
				Element:         rec.Element,
			})
		}
	}
	return rows, len(paths), nil
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.strings()); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes rows as an indented JSON array of objects keyed by the
// column names.
func WriteJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

// WriteXLSX writes rows to a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	for r, row := range rows {
		for c, v := range row.values() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 24)
	_ = f.SetColWidth(sheetName, "I", "I", 20)
	_ = f.SetColWidth(sheetName, "J", "J", 80)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// Result describes a finished export.
type Result struct {
	Stores int
	Rows   int
	Files  []string
}

var writers = map[types.ExportFormat]func(io.Writer, []Row) error{
	types.ExportCSV:  WriteCSV,
	types.ExportJSON: WriteJSON,
	types.ExportXLSX: WriteXLSX,
}

// DefaultFormats are written when the config names none.
var DefaultFormats = []types.ExportFormat{types.ExportCSV, types.ExportJSON}

// ExportAll collects the stores in cfg.StoreDir and writes one file per
// format to cfg.DestinationDir, named <save_name>.<format>.
func ExportAll(ctx context.Context, cfg types.ExportConfig, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	formats := cfg.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	for _, f := range formats {
		if _, ok := writers[f]; !ok {
			return Result{}, fmt.Errorf("unsupported export format %q", f)
		}
	}

	rows, stores, err := Collect(ctx, recordstore.NewRoot(cfg.StoreDir), cfg.Models)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(cfg.DestinationDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating destination directory: %w", err)
	}

	res := Result{Stores: stores, Rows: len(rows)}
	for _, f := range formats {
		path := filepath.Join(cfg.DestinationDir, cfg.SaveName+"."+string(f))
		if err := writeFile(path, rows, writers[f]); err != nil {
			return res, err
		}
		res.Files = append(res.Files, path)
	}

	logger.Info("export finished",
		"stores", res.Stores,
		"rows", res.Rows,
		"files", len(res.Files),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// writeFile writes to a temp file in the destination directory and renames
// it into place.
func writeFile(path string, rows []Row, write func(io.Writer, []Row) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := write(tmp, rows)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
