// Package ucum provides the unit-commensurability checks the quantity
// algebra delegates to. It covers the UCUM subset that shows up in
// clinical quantities (time, mass, length, volume) through a
// table-driven factor model; anything outside the table is reported as
// incommensurable rather than guessed at.
package ucum

import (
	"fmt"
	"strings"
)

// dimension is the physical dimension a unit measures. Two units
// convert only when their dimensions match.
type dimension int

const (
	dimTime dimension = iota
	dimMass
	dimLength
	dimVolume
)

type unitDef struct {
	dim    dimension
	factor float64 // multiplier to the dimension's base unit
}

// Base units: second, gram, meter, liter.
var units = map[string]unitDef{
	// time
	"s":   {dimTime, 1},
	"ms":  {dimTime, 0.001},
	"min": {dimTime, 60},
	"h":   {dimTime, 3600},
	"d":   {dimTime, 86400},
	"wk":  {dimTime, 7 * 86400},
	"mo":  {dimTime, 2629746},  // mean Gregorian month, a/12
	"a":   {dimTime, 31556952}, // mean Gregorian year, 365.2425 d

	// mass
	"g":  {dimMass, 1},
	"kg": {dimMass, 1000},
	"mg": {dimMass, 0.001},
	"ug": {dimMass, 1e-6},
	"ng": {dimMass, 1e-9},

	// length
	"m":  {dimLength, 1},
	"km": {dimLength, 1000},
	"cm": {dimLength, 0.01},
	"mm": {dimLength, 0.001},
	"um": {dimLength, 1e-6},
	"[in_i]": {dimLength, 0.0254},
	"[ft_i]": {dimLength, 0.3048},

	// volume
	"L":  {dimVolume, 1},
	"l":  {dimVolume, 1},
	"dL": {dimVolume, 0.1},
	"mL": {dimVolume, 0.001},
	"uL": {dimVolume, 1e-6},
}

// calendarSeconds maps FHIRPath calendar units onto definite durations
// for comparison purposes. Calendar units are not UCUM units, but the
// date algebra needs a consistent ordering for them.
var calendarSeconds = map[string]float64{
	"year":        31556952,
	"month":       2629746,
	"week":        7 * 86400,
	"day":         86400,
	"hour":        3600,
	"minute":      60,
	"second":      1,
	"millisecond": 0.001,
}

// IsCalendarUnit reports whether the word is a FHIRPath calendar unit
// (singular or plural form).
func IsCalendarUnit(word string) bool {
	_, ok := calendarSeconds[Singularize(word)]
	return ok
}

// Singularize strips the plural "s" from a calendar unit word.
func Singularize(word string) string {
	if strings.HasSuffix(word, "s") && len(word) > 1 {
		if _, ok := calendarSeconds[word[:len(word)-1]]; ok {
			return word[:len(word)-1]
		}
	}
	return word
}

// prefixes are the metric multipliers accepted in front of a base
// unit symbol when the unit is not in the named table.
var prefixes = map[string]float64{
	"G": 1e9,
	"M": 1e6,
	"k": 1e3,
	"h": 1e2,
	"da": 1e1,
	"d": 1e-1,
	"c": 1e-2,
	"m": 1e-3,
	"u": 1e-6,
	"n": 1e-9,
	"p": 1e-12,
}

// prefixable base symbols and their dimensions.
var bases = map[string]unitDef{
	"g": {dimMass, 1},
	"m": {dimLength, 1},
	"L": {dimVolume, 1},
	"l": {dimVolume, 1},
	"s": {dimTime, 1},
}

func lookup(unit string, calendar bool) (unitDef, bool) {
	if calendar {
		secs, ok := calendarSeconds[Singularize(unit)]
		if !ok {
			return unitDef{}, false
		}
		return unitDef{dimTime, secs}, true
	}
	if unit == "" || unit == "1" {
		// Dimensionless; handled by the caller's equal-unit check.
		return unitDef{}, false
	}
	if def, ok := units[unit]; ok {
		return def, true
	}
	// Fall back to prefix + base decomposition, longest prefix first.
	for _, plen := range []int{2, 1} {
		if len(unit) <= plen {
			continue
		}
		factor, ok := prefixes[unit[:plen]]
		if !ok {
			continue
		}
		base, ok := bases[unit[plen:]]
		if !ok {
			continue
		}
		return unitDef{base.dim, base.factor * factor}, true
	}
	return unitDef{}, false
}

// Comparable reports whether two units measure the same dimension and
// can therefore be compared after conversion. Calendar flags mark which
// side uses calendar units.
func Comparable(unitA string, calA bool, unitB string, calB bool) bool {
	if unitA == unitB && calA == calB {
		return true
	}
	a, okA := lookup(unitA, calA)
	b, okB := lookup(unitB, calB)
	return okA && okB && a.dim == b.dim
}

// Convert converts value from one unit to another. It returns an error
// for unknown units and for units of different dimensions.
func Convert(value float64, fromUnit string, fromCal bool, toUnit string, toCal bool) (float64, error) {
	if fromUnit == toUnit && fromCal == toCal {
		return value, nil
	}
	from, ok := lookup(fromUnit, fromCal)
	if !ok {
		return 0, fmt.Errorf("ucum: unknown unit %q", fromUnit)
	}
	to, ok := lookup(toUnit, toCal)
	if !ok {
		return 0, fmt.Errorf("ucum: unknown unit %q", toUnit)
	}
	if from.dim != to.dim {
		return 0, fmt.Errorf("ucum: units %q and %q are not commensurable", fromUnit, toUnit)
	}
	return value * from.factor / to.factor, nil
}

// System is the canonical UCUM system URL, exposed for the %ucum
// environment variable.
const System = "http://unitsofmeasure.org"
