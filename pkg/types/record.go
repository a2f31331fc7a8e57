// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Property identifies a mechanical property and the extraction model that
// finds it. The document model runs one model per configured Property.
type Property string

const (
	YieldStrength           Property = "yield_strength"
	UltimateTensileStrength Property = "ultimate_tensile_strength"
	FractureStrength        Property = "fracture_strength"
	YoungsModulus           Property = "youngs_modulus"
	Ductility               Property = "ductility"
)

// AllProperties lists every supported property in export column order.
var AllProperties = []Property{
	YieldStrength,
	UltimateTensileStrength,
	FractureStrength,
	YoungsModulus,
	Ductility,
}

// Valid reports whether p is one of the supported properties.
func (p Property) Valid() bool {
	for _, known := range AllProperties {
		if p == known {
			return true
		}
	}
	return false
}

// Record is one extracted mechanical-property fact with provenance.
type Record struct {
	// Property is the extraction model that produced the record.
	Property Property `json:"property" yaml:"property"`

	// RawValue is the value text as written in the source (e.g. "350-420").
	RawValue string `json:"raw_value" yaml:"raw_value"`

	// Value is the numeric value, or the lower bound of a range.
	Value float64 `json:"value" yaml:"value"`

	// ValueMax is the upper bound of a range. Equal to Value for single values.
	ValueMax float64 `json:"value_max" yaml:"value_max"`

	// Units is the unit string as written in the source (e.g. "GPa", "%").
	Units string `json:"units" yaml:"units"`

	// NormalizedValue is Value converted to NormalizedUnits.
	NormalizedValue float64 `json:"normalized_value" yaml:"normalized_value"`

	// NormalizedUnits is "MPa" for stress properties and "%" for ductility.
	NormalizedUnits string `json:"normalized_units" yaml:"normalized_units"`

	// Compound is the material the value refers to. Empty when none was found.
	Compound string `json:"compound,omitempty" yaml:"compound,omitempty"`

	// Sentence is the source sentence the record was extracted from.
	Sentence string `json:"sentence" yaml:"sentence"`

	// Element is the document element kind that held the sentence (e.g. "p", "caption").
	Element string `json:"element,omitempty" yaml:"element,omitempty"`
}
