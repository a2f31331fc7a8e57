// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package recordstore persists extracted records, one SQLite database per
// source document. The existence of a document's database is the marker
// that the document has been processed.
package recordstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/property-extractor/pkg/types"
)

// Ext is the file extension of a record store.
const Ext = ".db"

const (
	metaSourcePath  = "source_path"
	metaWrittenAt   = "written_at"
	metaRecordCount = "record_count"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		property TEXT NOT NULL,
		raw_value TEXT,
		value REAL,
		value_max REAL,
		units TEXT,
		normalized_value REAL,
		normalized_units TEXT,
		compound TEXT,
		sentence TEXT,
		element TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_property ON records(property)`,
}

// Root is the output directory holding every record store.
type Root struct {
	dir string
}

// NewRoot returns a Root for dir. The directory is not created.
func NewRoot(dir string) Root {
	return Root{dir: dir}
}

// Dir returns the output directory.
func (r Root) Dir() string { return r.dir }

// Path returns the store path for a work unit: dir/<base>.db.
func (r Root) Path(unit types.WorkUnit) string {
	return filepath.Join(r.dir, unit.Base+Ext)
}

// Exists reports whether the unit's store is present.
func (r Root) Exists(unit types.WorkUnit) (bool, error) {
	_, err := os.Stat(r.Path(unit))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat store %s: %w", r.Path(unit), err)
}

// Write creates the unit's store with the given records, replacing any
// existing store. The database is built in a temporary file and renamed
// into place, so a store is either complete or absent.
func (r Root) Write(ctx context.Context, unit types.WorkUnit, records []types.Record) error {
	tmp, err := os.CreateTemp(r.dir, "."+unit.Base+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp store: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := writeDB(ctx, tmpPath, unit, records); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, r.Path(unit)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming store: %w", err)
	}
	return nil
}

func writeDB(ctx context.Context, path string, unit types.WorkUnit, records []types.Record) error {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=DELETE")
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (property, raw_value, value, value_max, units,
			normalized_value, normalized_units, compound, sentence, element)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		_, err := stmt.ExecContext(ctx,
			string(rec.Property), rec.RawValue, rec.Value, rec.ValueMax, rec.Units,
			rec.NormalizedValue, rec.NormalizedUnits, rec.Compound, rec.Sentence, rec.Element,
		)
		if err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	meta := map[string]string{
		metaSourcePath:  unit.Path,
		metaWrittenAt:   time.Now().UTC().Format(time.RFC3339Nano),
		metaRecordCount: strconv.Itoa(len(records)),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, k, v,
		); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing store: %w", err)
	}
	return db.Close()
}

// List returns the paths of every store in the output directory, sorted.
func (r Root) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("reading store directory %s: %w", r.dir, err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != Ext {
			continue
		}
		paths = append(paths, filepath.Join(r.dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// Meta describes a written store.
type Meta struct {
	SourcePath  string
	WrittenAt   time.Time
	RecordCount int
}

// Store is an open record store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens an existing store for reading.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", path+"?_query_only=true")
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name returns the store's document base name.
func (s *Store) Name() string {
	return strings.TrimSuffix(filepath.Base(s.path), Ext)
}

// Records returns the stored records in insertion order. When props is
// non-empty only those properties are returned.
func (s *Store) Records(ctx context.Context, props ...types.Property) ([]types.Record, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT property, raw_value, value, value_max, units,
			normalized_value, normalized_units, compound, sentence, element
		FROM records`)

	if len(props) > 0 {
		qb.WriteString(` WHERE property IN (?` + strings.Repeat(`, ?`, len(props)-1) + `)`)
		for _, p := range props {
			args = append(args, string(p))
		}
	}
	qb.WriteString(` ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var (
			r        types.Record
			property string
		)
		if err := rows.Scan(
			&property, &r.RawValue, &r.Value, &r.ValueMax, &r.Units,
			&r.NormalizedValue, &r.NormalizedUnits, &r.Compound, &r.Sentence, &r.Element,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Property = types.Property(property)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Meta returns the store's metadata.
func (s *Store) Meta(ctx context.Context) (Meta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("querying meta: %w", err)
	}
	defer rows.Close()

	var m Meta
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, fmt.Errorf("scanning meta: %w", err)
		}
		switch k {
		case metaSourcePath:
			m.SourcePath = v
		case metaWrittenAt:
			m.WrittenAt, _ = time.Parse(time.RFC3339Nano, v)
		case metaRecordCount:
			m.RecordCount, _ = strconv.Atoi(v)
		}
	}
	return m, rows.Err()
}
