// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extractor runs the extraction pipeline: it enumerates source
// documents, skips those that already have a record store, processes the
// rest under a per-document deadline, and distributes the work either
// sequentially or across a primary and its workers.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pdiddy/property-extractor/internal/document"
	"github.com/pdiddy/property-extractor/pkg/types"
)

// errTimedOut reports that extraction exceeded the per-document deadline.
var errTimedOut = errors.New("extraction timed out")

// DocumentCache saves and restores document parse state.
type DocumentCache interface {
	Hydrate(doc document.Document, path string) error
	Store(doc document.Document, path string, overwrite bool) error
}

// RecordStore persists one set of records per work unit.
type RecordStore interface {
	Exists(unit types.WorkUnit) (bool, error)
	Write(ctx context.Context, unit types.WorkUnit, records []types.Record) error
}

// Processor processes a single work unit end to end.
type Processor struct {
	loader    document.Loader
	store     RecordStore
	models    []types.Property
	options   map[string]any
	cache     DocumentCache
	validator document.Validator
	filter    document.Filter
	timeout   time.Duration
	logger    *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithCache enables parse-state caching.
func WithCache(c DocumentCache) ProcessorOption {
	return func(p *Processor) { p.cache = c }
}

// WithValidator sets the predicate that decides whether a document is worth
// extracting.
func WithValidator(v document.Validator) ProcessorOption {
	return func(p *Processor) { p.validator = v }
}

// WithFilter sets the post-processing applied to non-empty record sets.
func WithFilter(f document.Filter) ProcessorOption {
	return func(p *Processor) { p.filter = f }
}

// WithTimeout bounds extraction of one document. Non-positive values keep
// the default.
func WithTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDocumentOptions sets overrides applied to every document before
// processing.
func WithDocumentOptions(opts map[string]any) ProcessorOption {
	return func(p *Processor) { p.options = opts }
}

// WithLogger sets the processor's logger.
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor returns a Processor that loads documents with loader,
// extracts models, and writes results to store.
func NewProcessor(loader document.Loader, store RecordStore, models []types.Property, opts ...ProcessorOption) *Processor {
	p := &Processor{
		loader:  loader,
		store:   store,
		models:  models,
		timeout: types.DefaultDocumentTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ShouldSkip reports whether the unit already has a record store. A store
// that cannot be checked is treated as absent.
func (p *Processor) ShouldSkip(unit types.WorkUnit) bool {
	exists, err := p.store.Exists(unit)
	if err != nil {
		p.logger.Warn("checking record store", "document", unit.Path, "error", err)
		return false
	}
	if exists {
		p.logger.Info("skipping document, store exists", "document", unit.Path)
	}
	return exists
}

// Process runs one unit through load, configure, hydrate, validate,
// extract, persist, and cache. Errors are returned for units that could
// not be processed; no store is written for them. Timeouts and rejected
// documents still produce an empty store.
func (p *Processor) Process(ctx context.Context, unit types.WorkUnit) (types.UnitResult, error) {
	start := time.Now()
	result := types.UnitResult{Path: unit.Path, Base: unit.Base}

	if p.ShouldSkip(unit) {
		result.Status = types.StatusSkipped
		return result, nil
	}

	doc, err := p.loader.Load(unit.Path)
	if err != nil {
		return result, fmt.Errorf("loading %s: %w", unit.Path, err)
	}

	if err := p.configure(doc); err != nil {
		return result, fmt.Errorf("configuring %s: %w", unit.Path, err)
	}

	warm := false
	if p.cache != nil {
		if err := p.cache.Hydrate(doc, unit.Path); err != nil {
			p.logger.Debug("cache hydration failed, cold start", "document", unit.Path, "error", err)
		} else {
			warm = true
		}
	}

	valid := true
	if p.validator != nil {
		valid, err = p.validator(doc)
		if err != nil {
			return result, fmt.Errorf("validating %s: %w", unit.Path, err)
		}
	}

	var records []types.Record
	result.Status = types.StatusExtracted
	if valid {
		records, err = p.extract(ctx, doc)
		switch {
		case errors.Is(err, errTimedOut):
			p.logger.Warn("extraction timed out", "document", unit.Path, "timeout", p.timeout)
			records = nil
			result.Status = types.StatusTimedOut
		case err != nil:
			return result, fmt.Errorf("extracting %s: %w", unit.Path, err)
		}
	} else {
		p.logger.Info("cancelled document", "document", unit.Path)
		result.Status = types.StatusCancelled
	}

	if len(records) > 0 && p.filter != nil {
		records = p.filter(records)
	}

	if err := p.store.Write(ctx, unit, records); err != nil {
		return result, fmt.Errorf("writing store for %s: %w", unit.Path, err)
	}

	// A timed-out extraction may still be running against doc.
	if !warm && p.cache != nil && result.Status != types.StatusTimedOut {
		if err := p.cache.Store(doc, unit.Path, true); err != nil {
			p.logger.Warn("writing cache entry", "document", unit.Path, "error", err)
		}
	}

	result.Records = len(records)
	result.Elapsed = time.Since(start)
	p.logger.Info("processed document",
		"document", unit.Path,
		"status", result.Status,
		"records", result.Records,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (p *Processor) configure(doc document.Document) error {
	doc.SetModels(p.models)

	keys := make([]string, 0, len(p.options))
	for k := range p.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := doc.SetOption(k, p.options[k]); err != nil {
			return fmt.Errorf("option %s: %w", k, err)
		}
	}
	return nil
}

type extraction struct {
	records []types.Record
	err     error
}

// extract reads the document's records under the per-document deadline.
// A hung extraction is abandoned once the deadline passes.
func (p *Processor) extract(ctx context.Context, doc document.Document) ([]types.Record, error) {
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan extraction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extraction{err: fmt.Errorf("extraction panicked: %v", r)}
			}
		}()
		records, err := doc.Records(tctx)
		done <- extraction{records: records, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, errTimedOut
		}
		return out.records, out.err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errTimedOut
	}
}
