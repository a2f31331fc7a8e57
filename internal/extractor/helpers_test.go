// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/property-extractor/internal/document"
	"github.com/pdiddy/property-extractor/internal/telemetry"
	"github.com/pdiddy/property-extractor/pkg/types"
)

// stubDoc is a scriptable document.
type stubDoc struct {
	records   []types.Record
	err       error
	panicMsg  string
	hang      bool          // block until the extraction context ends
	block     chan struct{} // block until closed, ignoring the context
	optionErr error
	text      string

	calls   atomic.Int32
	models  []types.Property
	options map[string]any
}

func (d *stubDoc) SetModels(models []types.Property) { d.models = models }

func (d *stubDoc) SetOption(key string, value any) error {
	if d.optionErr != nil {
		return d.optionErr
	}
	if d.options == nil {
		d.options = map[string]any{}
	}
	d.options[key] = value
	return nil
}

func (d *stubDoc) Text() string { return d.text }

func (d *stubDoc) Records(ctx context.Context) ([]types.Record, error) {
	d.calls.Add(1)
	if d.panicMsg != "" {
		panic(d.panicMsg)
	}
	if d.block != nil {
		<-d.block
	}
	if d.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return d.records, d.err
}

// stubLoader serves stubDocs by base name.
type stubLoader struct {
	docs map[string]*stubDoc
}

func (l *stubLoader) Load(path string) (document.Document, error) {
	doc, ok := l.docs[types.NewWorkUnit(path).Base]
	if !ok {
		return nil, document.ErrUnsupportedFormat
	}
	return doc, nil
}

// memStore is an in-memory RecordStore.
type memStore struct {
	mu        sync.Mutex
	stores    map[string][]types.Record
	writes    int
	existsErr error
}

func newMemStore() *memStore {
	return &memStore{stores: map[string][]types.Record{}}
}

func (s *memStore) Exists(unit types.WorkUnit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.stores[unit.Base]
	return ok, nil
}

func (s *memStore) Write(_ context.Context, unit types.WorkUnit, records []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.stores[unit.Base] = append([]types.Record{}, records...)
	return nil
}

func (s *memStore) get(base string) ([]types.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.stores[base]
	return r, ok
}

// memCache counts cache traffic.
type memCache struct {
	hydrateErr error
	hydrates   int
	stores     int
	overwrite  []bool
}

func (c *memCache) Hydrate(document.Document, string) error {
	c.hydrates++
	return c.hydrateErr
}

func (c *memCache) Store(_ document.Document, _ string, overwrite bool) error {
	c.stores++
	c.overwrite = append(c.overwrite, overwrite)
	return nil
}

// funcProcessor adapts functions to UnitProcessor.
type funcProcessor struct {
	process func(ctx context.Context, unit types.WorkUnit) (types.UnitResult, error)
	skip    func(unit types.WorkUnit) bool
}

func (p funcProcessor) Process(ctx context.Context, unit types.WorkUnit) (types.UnitResult, error) {
	return p.process(ctx, unit)
}

func (p funcProcessor) ShouldSkip(unit types.WorkUnit) bool {
	if p.skip == nil {
		return false
	}
	return p.skip(unit)
}

func extracted(unit types.WorkUnit) types.UnitResult {
	return types.UnitResult{Path: unit.Path, Base: unit.Base, Status: types.StatusExtracted}
}

var errBroken = errors.New("broken document")

// writeDocs creates empty files with the given names in a new directory.
func writeDocs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	return dir
}

// fakeTracker records telemetry calls.
type fakeTracker struct {
	mu      sync.Mutex
	active  *fakeRun
	started int
	project string
	name    string
}

func (t *fakeTracker) Active() (telemetry.Run, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil, false
	}
	return t.active, true
}

func (t *fakeTracker) Start(_ context.Context, project string, _ map[string]any, name string) (telemetry.Run, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started++
	t.project = project
	t.name = name
	t.active = &fakeRun{id: "run-1"}
	return t.active, nil
}

type fakeRun struct {
	id    string
	mu    sync.Mutex
	logs  []map[string]float64
	saved []string
}

func (r *fakeRun) ID() string { return r.id }

func (r *fakeRun) Log(_ context.Context, metrics map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, metrics)
	return nil
}

func (r *fakeRun) Save(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, path)
	return nil
}

// progress returns the logged num_papers_processed values in order.
func (r *fakeRun) progress() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for _, m := range r.logs {
		if v, ok := m[progressMetric]; ok {
			out = append(out, v)
		}
	}
	return out
}
