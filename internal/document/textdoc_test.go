// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/property-extractor/pkg/types"
)

const sampleArticle = `<?xml version="1.0"?>
<article>
  <title>Tensile behaviour of Ti6Al4V</title>
  <abstract>
    <p>The yield strength of Ti6Al4V was 880 MPa. The elongation to failure reached 14%.</p>
  </abstract>
  <body>
    <p>Young's modulus of AISI 304 steel is 193 GPa.</p>
    <fig><caption>Fracture strength of 950 MPa.</caption></fig>
    <ref>Smith et al. reported a tensile strength of 1000 MPa.</ref>
  </body>
</article>`

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadDoc(t *testing.T, path string) Document {
	t.Helper()
	doc, err := TextLoader{}.Load(path)
	require.NoError(t, err)
	return doc
}

func byProperty(records []types.Record) map[types.Property]types.Record {
	out := make(map[types.Property]types.Record)
	for _, r := range records {
		out[r.Property] = r
	}
	return out
}

func TestTextLoader_XMLArticle(t *testing.T) {
	doc := loadDoc(t, writeDoc(t, "paper.xml", sampleArticle))

	records, err := doc.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 5)

	got := byProperty(records)

	ys := got[types.YieldStrength]
	assert.Equal(t, 880.0, ys.Value)
	assert.Equal(t, "MPa", ys.Units)
	assert.Equal(t, "Ti6Al4V", ys.Compound)
	assert.Equal(t, "p", ys.Element)

	ym := got[types.YoungsModulus]
	assert.Equal(t, 193.0, ym.Value)
	assert.Equal(t, "GPa", ym.Units)
	assert.InDelta(t, 193000.0, ym.NormalizedValue, 1e-9)
	assert.Equal(t, "MPa", ym.NormalizedUnits)
	assert.Equal(t, "AISI 304", ym.Compound)

	d := got[types.Ductility]
	assert.Equal(t, 14.0, d.Value)
	assert.Equal(t, "%", d.Units)

	assert.Equal(t, "caption", got[types.FractureStrength].Element)
	assert.Equal(t, "ref", got[types.UltimateTensileStrength].Element)
}

func TestTextDocument_SkipElements(t *testing.T) {
	doc := loadDoc(t, writeDoc(t, "paper.xml", sampleArticle))
	require.NoError(t, doc.SetOption(OptionSkipElements, []any{"caption", "ref"}))

	records, err := doc.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
	for _, r := range records {
		assert.NotEqual(t, "caption", r.Element)
		assert.NotEqual(t, "ref", r.Element)
	}
}

func TestTextDocument_SetModels(t *testing.T) {
	doc := loadDoc(t, writeDoc(t, "paper.xml", sampleArticle))
	doc.SetModels([]types.Property{types.YieldStrength})

	records, err := doc.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.YieldStrength, records[0].Property)
}

func TestTextLoader_PlainTextRange(t *testing.T) {
	content := "# Results\n\nThe ultimate tensile strength was 350-420 MPa for the 6061 alloy.\n"
	doc := loadDoc(t, writeDoc(t, "notes.md", content))

	records, err := doc.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, types.UltimateTensileStrength, r.Property)
	assert.Equal(t, "350-420", r.RawValue)
	assert.Equal(t, 350.0, r.Value)
	assert.Equal(t, 420.0, r.ValueMax)
	assert.Equal(t, "6061 alloy", r.Compound)
}

func TestTextLoader_UnsupportedFormat(t *testing.T) {
	_, err := TextLoader{}.Load(writeDoc(t, "paper.pdf", "%PDF-1.4"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestTextDocument_SetOptionErrors(t *testing.T) {
	doc := loadDoc(t, writeDoc(t, "paper.txt", "text"))

	err := doc.SetOption("no_such_option", true)
	assert.True(t, errors.Is(err, ErrUnknownOption))

	assert.Error(t, doc.SetOption(OptionKeepUnitless, "yes"))
	assert.Error(t, doc.SetOption(OptionSkipElements, 42))
	assert.NoError(t, doc.SetOption(OptionKeepUnitless, true))
}

func TestTextDocument_KeepUnitless(t *testing.T) {
	content := "The yield strength was 410 in all cases.\n"

	doc := loadDoc(t, writeDoc(t, "a.txt", content))
	records, err := doc.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	doc = loadDoc(t, writeDoc(t, "b.txt", content))
	require.NoError(t, doc.SetOption(OptionKeepUnitless, true))
	records, err = doc.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 410.0, records[0].Value)
	assert.Empty(t, records[0].Units)
}

func TestTextDocument_RecordsHonoursContext(t *testing.T) {
	doc := loadDoc(t, writeDoc(t, "paper.xml", sampleArticle))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := doc.Records(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTextDocument_CacheRoundTrip(t *testing.T) {
	path := writeDoc(t, "paper.xml", sampleArticle)

	first := loadDoc(t, path)
	want, err := first.Records(context.Background())
	require.NoError(t, err)

	state, err := first.(Cacheable).CacheState()
	require.NoError(t, err)

	second := loadDoc(t, path)
	require.NoError(t, second.(Cacheable).RestoreCacheState(state))
	got, err := second.Records(context.Background())
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestTextDocument_RestoreRejectsUnsplitState(t *testing.T) {
	path := writeDoc(t, "paper.xml", sampleArticle)

	unsplit, err := loadDoc(t, path).(Cacheable).CacheState()
	require.NoError(t, err)

	err = loadDoc(t, path).(Cacheable).RestoreCacheState(unsplit)
	assert.Error(t, err)

	err = loadDoc(t, path).(Cacheable).RestoreCacheState("segments: [::")
	assert.Error(t, err)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two sentences",
			text: "First one. Second one.",
			want: []string{"First one.", "Second one."},
		},
		{
			name: "abbreviation followed by digit",
			text: "Fig. 3 shows results. The value is 3.5 MPa.",
			want: []string{"Fig. 3 shows results.", "The value is 3.5 MPa."},
		},
		{
			name: "lower-case continuation",
			text: "Smith et al. reported it.",
			want: []string{"Smith et al. reported it."},
		},
		{
			name: "exclamation and question",
			text: "Done! Next?",
			want: []string{"Done!", "Next?"},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.text))
		})
	}
}
