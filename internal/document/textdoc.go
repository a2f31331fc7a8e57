// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/property-extractor/pkg/types"
)

// Option keys understood by TextDocument.
const (
	// OptionSkipElements lists element kinds whose text is not extracted
	// (e.g. ["ref", "fn", "caption"]).
	OptionSkipElements = "skip_elements"

	// OptionKeepUnitless keeps values that carry no units.
	OptionKeepUnitless = "keep_unitless"
)

// blockElements start a new text segment in XML/HTML documents.
var blockElements = map[string]bool{
	"title": true, "article-title": true, "abstract": true, "p": true, "para": true,
	"div": true, "sec": true, "section": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "caption": true, "figcaption": true,
	"table": true, "tr": true, "td": true, "th": true, "li": true, "fn": true,
	"footnote": true, "ref": true, "citation": true, "label": true, "body": true,
}

// ignoredElements never contribute text.
var ignoredElements = map[string]bool{
	"script": true, "style": true, "math": true,
}

// segment is one block of text and, once split, its sentences.
type segment struct {
	Element   string   `yaml:"element"`
	Text      string   `yaml:"text"`
	Sentences []string `yaml:"sentences,omitempty"`
}

// cacheState is the serialised parse state of a TextDocument.
type cacheState struct {
	Source   string    `yaml:"source"`
	Segments []segment `yaml:"segments"`
}

// TextLoader loads .txt, .md, .xml, .html and .htm articles.
type TextLoader struct{}

// Load reads and parses the file at path.
func (TextLoader) Load(path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xml", ".html", ".htm", ".txt", ".md":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var segs []segment
	if ext == ".txt" || ext == ".md" {
		segs = parsePlain(string(data))
	} else {
		segs, err = parseMarkup(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	return &TextDocument{
		path:     path,
		segments: segs,
		models:   types.AllProperties,
	}, nil
}

// TextDocument is the built-in Document. Sentence splitting is deferred to
// the first Records call and is the state saved by the cache.
type TextDocument struct {
	path         string
	segments     []segment
	split        bool
	models       []types.Property
	skip         map[string]bool
	keepUnitless bool

	records []types.Record
	done    bool
}

// SetModels selects the properties to extract.
func (d *TextDocument) SetModels(models []types.Property) {
	d.models = models
	d.done = false
}

// SetOption applies skip_elements or keep_unitless.
func (d *TextDocument) SetOption(key string, value any) error {
	switch key {
	case OptionSkipElements:
		names, err := stringList(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", key, err)
		}
		d.skip = make(map[string]bool, len(names))
		for _, n := range names {
			d.skip[strings.ToLower(n)] = true
		}
	case OptionKeepUnitless:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("option %s: want bool, got %T", key, value)
		}
		d.keepUnitless = b
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOption, key)
	}
	d.done = false
	return nil
}

// Text returns all segment text joined by blank lines.
func (d *TextDocument) Text() string {
	parts := make([]string, len(d.segments))
	for i, s := range d.segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, "\n\n")
}

// Records splits the document into sentences (unless restored from cache)
// and runs every configured property model over them. The result is
// memoised until the configuration changes.
func (d *TextDocument) Records(ctx context.Context) ([]types.Record, error) {
	if d.done {
		return d.records, nil
	}

	if !d.split {
		for i := range d.segments {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			d.segments[i].Sentences = splitSentences(d.segments[i].Text)
		}
		d.split = true
	}

	var records []types.Record
	for _, seg := range d.segments {
		if d.skip[seg.Element] {
			continue
		}
		for _, sentence := range seg.Sentences {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for _, p := range d.models {
				m, ok := models[p]
				if !ok {
					continue
				}
				records = append(records, m.extractSentence(sentence, seg.Element, d.keepUnitless)...)
			}
		}
	}

	d.records = records
	d.done = true
	return records, nil
}

// CacheState serialises the split segments. Calling it before the first
// Records call caches the unsplit text only.
func (d *TextDocument) CacheState() (string, error) {
	data, err := yaml.Marshal(cacheState{Source: d.path, Segments: d.segments})
	if err != nil {
		return "", fmt.Errorf("marshaling parse state: %w", err)
	}
	return string(data), nil
}

// RestoreCacheState replaces the segments with cached ones.
func (d *TextDocument) RestoreCacheState(state string) error {
	var cs cacheState
	if err := yaml.Unmarshal([]byte(state), &cs); err != nil {
		return fmt.Errorf("unmarshaling parse state: %w", err)
	}
	for _, s := range cs.Segments {
		if s.Text != "" && len(s.Sentences) == 0 {
			return fmt.Errorf("cached parse state for %s is incomplete", d.path)
		}
	}
	d.segments = cs.Segments
	d.split = true
	d.done = false
	return nil
}

// parsePlain splits text into paragraphs on blank lines. Markdown heading
// lines become their own "h" segments.
func parsePlain(content string) []segment {
	var segs []segment
	var para []string

	flush := func() {
		text := collapseSpace(strings.Join(para, " "))
		if text != "" {
			segs = append(segs, segment{Element: "p", Text: text})
		}
		para = nil
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case strings.HasPrefix(trimmed, "#"):
			flush()
			if h := strings.TrimSpace(strings.TrimLeft(trimmed, "#")); h != "" {
				segs = append(segs, segment{Element: "h", Text: h})
			}
		default:
			para = append(para, trimmed)
		}
	}
	flush()
	return segs
}

// parseMarkup collects character data per block element. The decoder runs
// in non-strict mode so HTML and loosely formed publisher XML both load.
func parseMarkup(data []byte) ([]segment, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var (
		segs  []segment
		stack []string
		buf   strings.Builder
	)

	current := func() string {
		for i := len(stack) - 1; i >= 0; i-- {
			if blockElements[stack[i]] {
				return stack[i]
			}
		}
		return "p"
	}
	ignored := func() bool {
		for _, name := range stack {
			if ignoredElements[name] {
				return true
			}
		}
		return false
	}
	flush := func() {
		text := collapseSpace(buf.String())
		if text != "" {
			segs = append(segs, segment{Element: current(), Text: text})
		}
		buf.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if blockElements[name] {
				flush()
			}
			stack = append(stack, name)
		case xml.EndElement:
			name := strings.ToLower(t.Name.Local)
			if blockElements[name] {
				flush()
			}
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == name {
					stack = stack[:i]
					break
				}
			}
		case xml.CharData:
			if !ignored() {
				buf.Write(t)
				buf.WriteByte(' ')
			}
		}
	}
	flush()
	return segs, nil
}

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"e.g.": true, "i.e.": true, "al.": true, "fig.": true, "figs.": true,
	"eq.": true, "ref.": true, "refs.": true, "approx.": true, "ca.": true,
	"vs.": true, "no.": true, "tab.": true, "resp.": true,
}

// splitSentences breaks text at '.', '!' or '?' followed by whitespace and
// an upper-case letter or digit, except after known abbreviations.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+2 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		next := runes[i+2]
		if !unicode.IsUpper(next) && !unicode.IsDigit(next) {
			continue
		}
		if r == '.' && isAbbreviation(runes[start:i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isAbbreviation(upTo []rune) bool {
	words := strings.Fields(string(upTo))
	if len(words) == 0 {
		return false
	}
	return abbreviations[strings.ToLower(words[len(words)-1])]
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stringList accepts []string or the []any produced by YAML and viper.
func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("want string list, got element %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return strings.Split(v, ","), nil
	default:
		return nil, fmt.Errorf("want string list, got %T", value)
	}
}
