// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/property-extractor/internal/document"
	"github.com/pdiddy/property-extractor/pkg/types"
)

// plainDoc is a Document without cache support.
type plainDoc struct{}

func (plainDoc) SetModels([]types.Property) {}
func (plainDoc) SetOption(string, any) error { return nil }
func (plainDoc) Text() string { return "" }
func (plainDoc) Records(context.Context) ([]types.Record, error) { return nil, nil }

func writeArticle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.txt")
	content := "The yield strength was 250 MPa. The elongation reached 30%.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func load(t *testing.T, path string) document.Document {
	t.Helper()
	doc, err := document.TextLoader{}.Load(path)
	require.NoError(t, err)
	return doc
}

func TestHydrate_Miss(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	path := writeArticle(t)
	err = c.Hydrate(load(t, path), path)
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestHydrate_Unsupported(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Hydrate(plainDoc{}, "x.txt"), ErrUnsupported)
	assert.ErrorIs(t, c.Store(plainDoc{}, "x.txt", true), ErrUnsupported)
}

func TestStoreThenHydrate(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "nested", "cache"))
	require.NoError(t, err)

	path := writeArticle(t)
	warm := load(t, path)
	want, err := warm.Records(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Store(warm, path, true))

	cold := load(t, path)
	require.NoError(t, c.Hydrate(cold, path))
	got, err := cold.Records(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_Overwrite(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	path := writeArticle(t)
	doc := load(t, path)
	_, err = doc.Records(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Store(doc, path, false))
	assert.ErrorIs(t, c.Store(doc, path, false), ErrExists)
	assert.NoError(t, c.Store(doc, path, true))

	entries, err := os.ReadDir(c.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestHydrate_CorruptEntry(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	path := writeArticle(t)
	require.NoError(t, os.WriteFile(c.entryPath(path), []byte("state: [unterminated"), 0o644))

	err = c.Hydrate(load(t, path), path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMiss))
}
