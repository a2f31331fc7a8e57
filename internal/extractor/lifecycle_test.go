// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/property-extractor/internal/telemetry"
	"github.com/pdiddy/property-extractor/pkg/types"
)

func TestRunHooks_CreatesDirectories(t *testing.T) {
	base := t.TempDir()
	out := filepath.Join(base, "out")
	cacheDir := filepath.Join(base, "docs_cache", "nested")

	h := NewRunHooks(out, cacheDir)
	require.NoError(t, h.OnRunStart(context.Background()))
	assert.DirExists(t, out)
	assert.DirExists(t, cacheDir)
	assert.Nil(t, h.Run())

	// A second start with the directories present is fine.
	require.NoError(t, h.OnRunStart(context.Background()))
}

func TestRunHooks_OutputDirIsNotCreatedRecursively(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "out")
	err := NewRunHooks(out, "").OnRunStart(context.Background())
	assert.Error(t, err)
}

func TestRunHooks_StartsRunWhenNoneActive(t *testing.T) {
	ctx := context.Background()
	tracker := &fakeTracker{}
	cfg := types.TelemetryConfig{Project: "CDE_Extract", RunName: "batch-1", SaveFiles: []string{"models.yaml"}}
	h := NewRunHooks(filepath.Join(t.TempDir(), "out"), "", WithTracker(tracker, cfg, map[string]any{"workers": 2}))

	require.NoError(t, h.OnRunStart(ctx))
	assert.Equal(t, 1, tracker.started)
	assert.Equal(t, "CDE_Extract", tracker.project)
	assert.Equal(t, "batch-1", tracker.name)
	require.NotNil(t, h.Run())
	assert.Equal(t, []string{"models.yaml"}, tracker.active.saved)

	h.OnProgress(ctx, 1)
	h.OnProgress(ctx, 2)
	h.OnRunEnd(ctx, Summary{Extracted: 2})
	assert.Equal(t, []float64{1, 2}, tracker.active.progress())
	require.Len(t, tracker.active.logs, 3)
	assert.Equal(t, float64(2), tracker.active.logs[2]["extracted"])
}

func TestRunHooks_ReusesActiveRun(t *testing.T) {
	tracker := &fakeTracker{active: &fakeRun{id: "ambient"}}
	h := NewRunHooks(filepath.Join(t.TempDir(), "out"), "", WithTracker(tracker, types.TelemetryConfig{}, nil))

	require.NoError(t, h.OnRunStart(context.Background()))
	assert.Zero(t, tracker.started)
	assert.Equal(t, "ambient", h.Run().ID())
}

func TestRunHooks_LocalTracker(t *testing.T) {
	ctx := context.Background()
	tr, err := telemetry.OpenLocal(t.TempDir())
	require.NoError(t, err)
	defer tr.Close()

	saved := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(saved, []byte("workers: 2\n"), 0o644))

	cfg := types.TelemetryConfig{Project: "CDE_Extract", SaveFiles: []string{saved}}
	h := NewRunHooks(filepath.Join(t.TempDir(), "out"), "", WithTracker(tr, cfg, nil))
	require.NoError(t, h.OnRunStart(ctx))
	h.OnProgress(ctx, 1)

	metrics, err := tr.Metrics(ctx, h.Run().ID())
	require.NoError(t, err)
	assert.Equal(t, []telemetry.Metric{{Step: 0, Name: progressMetric, Value: 1}}, metrics)
}
