// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recordstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/property-extractor/pkg/types"
)

func sampleRecords() []types.Record {
	return []types.Record{
		{
			Property: types.YieldStrength, RawValue: "880", Value: 880, ValueMax: 880,
			Units: "MPa", NormalizedValue: 880, NormalizedUnits: "MPa",
			Compound: "Ti6Al4V", Sentence: "The yield strength of Ti6Al4V was 880 MPa.", Element: "p",
		},
		{
			Property: types.Ductility, RawValue: "14", Value: 14, ValueMax: 14,
			Units: "%", NormalizedValue: 14, NormalizedUnits: "%",
			Sentence: "The elongation to failure reached 14%.", Element: "p",
		},
	}
}

func openStore(t *testing.T, root Root, unit types.WorkUnit) *Store {
	t.Helper()
	s, err := Open(root.Path(unit))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteAndRead(t *testing.T) {
	ctx := context.Background()
	root := NewRoot(t.TempDir())
	unit := types.NewWorkUnit("/papers/a.xml")

	exists, err := root.Exists(unit)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, root.Write(ctx, unit, sampleRecords()))

	exists, err = root.Exists(unit)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, filepath.Join(root.Dir(), "a.db"), root.Path(unit))

	s := openStore(t, root, unit)
	assert.Equal(t, "a", s.Name())

	got, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)

	ductility, err := s.Records(ctx, types.Ductility)
	require.NoError(t, err)
	require.Len(t, ductility, 1)
	assert.Equal(t, types.Ductility, ductility[0].Property)

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/papers/a.xml", meta.SourcePath)
	assert.Equal(t, 2, meta.RecordCount)
	assert.False(t, meta.WrittenAt.IsZero())
}

func TestWrite_EmptyRecordsCreatesStore(t *testing.T) {
	ctx := context.Background()
	root := NewRoot(t.TempDir())
	unit := types.NewWorkUnit("b.html")

	require.NoError(t, root.Write(ctx, unit, nil))

	exists, err := root.Exists(unit)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := openStore(t, root, unit).Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWrite_ReplacesExistingStore(t *testing.T) {
	ctx := context.Background()
	root := NewRoot(t.TempDir())
	unit := types.NewWorkUnit("c.xml")

	require.NoError(t, root.Write(ctx, unit, sampleRecords()))
	require.NoError(t, root.Write(ctx, unit, sampleRecords()[:1]))

	got, err := openStore(t, root, unit).Records(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	entries, err := os.ReadDir(root.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may remain")
}

func TestList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	root := NewRoot(dir)

	for _, name := range []string{"b.xml", "a.xml"} {
		require.NoError(t, root.Write(ctx, types.NewWorkUnit(name), nil))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.db"), nil, 0o644))

	paths, err := root.List()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)

	_, err = NewRoot(filepath.Join(dir, "missing")).List()
	assert.Error(t, err)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"))
	assert.Error(t, err)
}
