// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/property-extractor/pkg/types"
)

// propertyModel describes how one property is recognised in a sentence.
type propertyModel struct {
	property types.Property
	name     *regexp.Regexp
	units    map[string]float64 // unit -> factor to normalized units
	norm     string             // normalized units
}

// stressUnits converts stress units to MPa.
var stressUnits = map[string]float64{
	"MPa": 1,
	"GPa": 1000,
	"kPa": 0.001,
	"Pa":  0.000001,
	"ksi": 6.894757,
	"psi": 0.006894757,
}

var ratioUnits = map[string]float64{
	"%": 1,
}

var models = map[types.Property]propertyModel{
	types.YieldStrength: {
		property: types.YieldStrength,
		name:     regexp.MustCompile(`(?i)\b(?:yield\s+(?:strength|stress|point)|0\.2\s*%\s*proof\s+stress|proof\s+stress)\b`),
		units:    stressUnits,
		norm:     "MPa",
	},
	types.UltimateTensileStrength: {
		property: types.UltimateTensileStrength,
		name:     regexp.MustCompile(`(?i)\b(?:ultimate\s+tensile\s+strength|ultimate\s+strength|tensile\s+strength|UTS)\b`),
		units:    stressUnits,
		norm:     "MPa",
	},
	types.FractureStrength: {
		property: types.FractureStrength,
		name:     regexp.MustCompile(`(?i)\b(?:fracture\s+(?:strength|stress)|breaking\s+strength|rupture\s+strength)\b`),
		units:    stressUnits,
		norm:     "MPa",
	},
	types.YoungsModulus: {
		property: types.YoungsModulus,
		name:     regexp.MustCompile(`(?i)\b(?:young'?s\s+modulus|young’s\s+modulus|elastic\s+modulus|modulus\s+of\s+elasticity)\b`),
		units:    stressUnits,
		norm:     "MPa",
	},
	types.Ductility: {
		property: types.Ductility,
		name:     regexp.MustCompile(`(?i)\b(?:ductility|elongation(?:\s+(?:to|at)\s+(?:failure|fracture|break))?|strain\s+to\s+failure)\b`),
		units:    ratioUnits,
		norm:     "%",
	},
}

// valuePattern matches a number or range with optional error and units.
// Groups: 1 lower, 2 upper, 3 units.
var valuePattern = regexp.MustCompile(
	`(?:^|[^\w.])(\d+(?:\.\d+)?)\s*(?:(?:-|–|to)\s*(\d+(?:\.\d+)?))?\s*(?:(?:±|\+/-)\s*\d+(?:\.\d+)?\s*)?((?:[MGk]?Pa|ksi|psi)\b|%)?`)

var compoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:AISI|SAE|ASTM|UNS)\s?[A-Z]?\d+[A-Z]*\b`),
	regexp.MustCompile(`\b(?:Inconel|Hastelloy|Incoloy|Nimonic|Waspaloy)\s?[A-Z]?-?\d+\b`),
	regexp.MustCompile(`\b[A-Z][a-z]?-\d+[A-Z][a-z]?-\d+[A-Z][a-z]?\b`),
	regexp.MustCompile(`\b[A-Z][a-z]?\d+(?:\.\d+)?(?:[A-Z][a-z]?\d*(?:\.\d+)?)+\b`),
	regexp.MustCompile(`(?i)\b[\w-]+\s+(?:steel|alloy)\b`),
}

var compoundStopwords = map[string]bool{
	"the": true, "this": true, "that": true, "an": true, "a": true,
	"of": true, "these": true, "each": true, "our": true, "its": true,
}

// MentionsAny reports whether text names any of the given properties.
func MentionsAny(text string, props []types.Property) bool {
	for _, p := range props {
		if m, ok := models[p]; ok && m.name.MatchString(text) {
			return true
		}
	}
	return false
}

// extractSentence applies one property model to a sentence. Each mention of
// the property name is paired with the first acceptable value that follows
// it, before the next mention.
func (m propertyModel) extractSentence(sentence, element string, keepUnitless bool) []types.Record {
	mentions := m.name.FindAllStringIndex(sentence, -1)
	if len(mentions) == 0 {
		return nil
	}

	compound := findCompound(sentence)

	var records []types.Record
	for i, loc := range mentions {
		end := len(sentence)
		if i+1 < len(mentions) {
			end = mentions[i+1][0]
		}
		window := sentence[loc[1]:end]

		for _, g := range valuePattern.FindAllStringSubmatch(window, -1) {
			units := g[3]
			factor, ok := m.units[units]
			if units == "" {
				if !keepUnitless {
					continue
				}
				factor, ok = 1, true
			}
			if !ok {
				continue
			}

			lo, err := strconv.ParseFloat(g[1], 64)
			if err != nil {
				continue
			}
			hi := lo
			raw := g[1]
			if g[2] != "" {
				if v, err := strconv.ParseFloat(g[2], 64); err == nil {
					hi = v
					raw = g[1] + "-" + g[2]
				}
			}

			normUnits := m.norm
			if units == "" {
				normUnits = ""
			}

			records = append(records, types.Record{
				Property:        m.property,
				RawValue:        raw,
				Value:           lo,
				ValueMax:        hi,
				Units:           units,
				NormalizedValue: lo * factor,
				NormalizedUnits: normUnits,
				Compound:        compound,
				Sentence:        sentence,
				Element:         element,
			})
			break
		}
	}
	return records
}

// findCompound returns the first material name in the sentence.
func findCompound(sentence string) string {
	for _, re := range compoundPatterns {
		for _, match := range re.FindAllString(sentence, -1) {
			first := strings.ToLower(strings.Fields(match)[0])
			if compoundStopwords[first] {
				continue
			}
			return match
		}
	}
	return ""
}
