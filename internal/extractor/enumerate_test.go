// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/property-extractor/pkg/types"
)

func TestListWorkUnits(t *testing.T) {
	dir := writeDocs(t, "a.xml", "b.xml", ".hidden.xml", "a_records.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	units, err := ListWorkUnits(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, []types.WorkUnit{
		{Path: filepath.Join(dir, "a.xml"), Base: "a"},
		{Path: filepath.Join(dir, "b.xml"), Base: "b"},
	}, units)
}

func TestListWorkUnits_Limit(t *testing.T) {
	dir := writeDocs(t, "1.xml", "2.xml", "3.xml", "4.xml", "5.xml")

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: 5},
		{limit: 1, want: 1},
		{limit: 3, want: 3},
		{limit: 9, want: 5},
	}
	for _, tt := range tests {
		units, err := ListWorkUnits(dir, tt.limit)
		require.NoError(t, err)
		assert.Len(t, units, tt.want, "limit %d", tt.limit)
	}
}

func TestListWorkUnits_MissingDir(t *testing.T) {
	_, err := ListWorkUnits(filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, err)
}
