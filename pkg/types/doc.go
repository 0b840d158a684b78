// Package types implements the FHIRPath value model.
//
// Values are boxed: a raw datum (boolean, integer, decimal, string,
// date, datetime, time, quantity or an object node from the source
// data) paired with an optional type tag and the FHIR primitive-element
// sibling. Collections are ordered sequences of boxed values; the
// empty collection represents "no value" and drives the language's
// empty-propagation rules.
//
// The package also houses the pieces of the algebra the evaluator
// leans on:
//
//   - deep value equality and the looser equivalence relation
//   - three-valued boolean logic (true / false / unknown)
//   - partial date, datetime and time values with precision-aware
//     comparison
//   - the quantity type with unit conversion delegated to pkg/ucum
//   - the toX()/convertsToX() conversion table
package types
