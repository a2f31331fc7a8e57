// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"fmt"
	"strings"

	"github.com/pdiddy/property-extractor/pkg/types"
)

// Validator decides whether a loaded document is worth extracting.
type Validator func(doc Document) (bool, error)

// Filter post-processes the records extracted from one document.
type Filter func(records []types.Record) []types.Record

// Built-in validator and filter names accepted in configuration.
const (
	ValidatorMinLength        = "min-length"
	ValidatorMentionsProperty = "mentions-property"

	FilterRequireCompound = "require-compound"
	FilterDedupe          = "dedupe"
)

// MinLength accepts documents with at least n characters of text.
func MinLength(n int) Validator {
	return func(doc Document) (bool, error) {
		return len(doc.Text()) >= n, nil
	}
}

// MentionsProperty accepts documents that name at least one of props.
func MentionsProperty(props []types.Property) Validator {
	return func(doc Document) (bool, error) {
		return MentionsAny(doc.Text(), props), nil
	}
}

// AllOf accepts a document only when every validator does.
func AllOf(validators ...Validator) Validator {
	return func(doc Document) (bool, error) {
		for _, v := range validators {
			ok, err := v(doc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// RequireCompound drops records without an associated material.
func RequireCompound(records []types.Record) []types.Record {
	out := records[:0:0]
	for _, r := range records {
		if r.Compound != "" {
			out = append(out, r)
		}
	}
	return out
}

// Dedupe drops records repeating an earlier property, value, units and
// compound combination.
func Dedupe(records []types.Record) []types.Record {
	seen := make(map[string]bool, len(records))
	out := records[:0:0]
	for _, r := range records {
		key := strings.Join([]string{string(r.Property), r.RawValue, r.Units, r.Compound}, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// Chain applies filters in order.
func Chain(filters ...Filter) Filter {
	return func(records []types.Record) []types.Record {
		for _, f := range filters {
			records = f(records)
		}
		return records
	}
}

// NewValidator builds a validator from configured names. It returns nil
// when names is empty, meaning every document is valid.
func NewValidator(names []string, minLength int, props []types.Property) (Validator, error) {
	var vs []Validator
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case ValidatorMinLength:
			vs = append(vs, MinLength(minLength))
		case ValidatorMentionsProperty:
			vs = append(vs, MentionsProperty(props))
		default:
			return nil, fmt.Errorf("unknown validator %q", name)
		}
	}
	switch len(vs) {
	case 0:
		return nil, nil
	case 1:
		return vs[0], nil
	}
	return AllOf(vs...), nil
}

// NewFilter builds a filter from configured names. It returns nil when
// names is empty.
func NewFilter(names []string) (Filter, error) {
	var fs []Filter
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case FilterRequireCompound:
			fs = append(fs, RequireCompound)
		case FilterDedupe:
			fs = append(fs, Dedupe)
		default:
			return nil, fmt.Errorf("unknown filter %q", name)
		}
	}
	switch len(fs) {
	case 0:
		return nil, nil
	case 1:
		return fs[0], nil
	}
	return Chain(fs...), nil
}
