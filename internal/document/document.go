// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package document defines the document model consumed by the extraction
// pipeline and ships a built-in model for plain-text and XML/HTML articles.
//
// A Loader turns a file into a Document. The pipeline configures the
// Document with the properties to extract and with auxiliary options, then
// reads its records. Documents that implement Cacheable can have their parse
// state saved and restored between runs.
package document

import (
	"context"
	"errors"

	"github.com/pdiddy/property-extractor/pkg/types"
)

var (
	// ErrUnsupportedFormat is returned by a Loader for files it cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrUnknownOption is returned by SetOption for an option the document
	// does not recognise.
	ErrUnknownOption = errors.New("unknown document option")
)

// Document is one loaded source document. A Document is owned by a single
// processing call and is not safe for concurrent use.
type Document interface {
	// SetModels selects the properties Records extracts.
	SetModels(models []types.Property)

	// SetOption applies an auxiliary configuration override.
	SetOption(key string, value any) error

	// Text returns the document's plain text, for validators.
	Text() string

	// Records runs extraction and returns the extracted records. It may
	// take arbitrarily long; implementations should honour ctx.
	Records(ctx context.Context) ([]types.Record, error)
}

// Loader opens source documents.
type Loader interface {
	Load(path string) (Document, error)
}

// Cacheable is implemented by documents whose intermediate parse state can
// be saved and restored.
type Cacheable interface {
	// CacheState serialises the parse state computed so far.
	CacheState() (string, error)

	// RestoreCacheState replaces the parse state with a cached one.
	RestoreCacheState(state string) error
}
