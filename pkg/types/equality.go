package types

import (
	"math"
	"strings"
)

// Equal applies FHIRPath value equality to two boxed values. The
// second result is false when the comparison is undefined (differing
// date precision, incommensurable quantity units), in which case the
// `=` operator yields empty.
func Equal(a, b Value) (eq bool, defined bool) {
	// Numbers compare numerically across integer/decimal.
	if an, aok := a.AsNumber(); aok {
		if bn, bok := b.AsNumber(); bok {
			return an == bn, true
		}
		return false, true
	}
	switch av := a.Data.(type) {
	case bool:
		bv, ok := b.Data.(bool)
		return ok && av == bv, true
	case string:
		bv, ok := b.Data.(string)
		return ok && av == bv, true
	case Date:
		bv, ok := b.Data.(Date)
		if !ok {
			return false, true
		}
		cmp, def := CompareDates(av, bv)
		return cmp == 0 && def, def
	case DateTime:
		bv, ok := b.Data.(DateTime)
		if !ok {
			return false, true
		}
		cmp, def := CompareDateTimes(av, bv)
		return cmp == 0 && def, def
	case Time:
		bv, ok := b.Data.(Time)
		if !ok {
			return false, true
		}
		cmp, def := CompareTimes(av, bv)
		return cmp == 0 && def, def
	case Quantity:
		bv, ok := b.Data.(Quantity)
		if !ok {
			return false, true
		}
		return EqualQuantities(av, bv)
	case map[string]interface{}:
		bv, ok := b.Data.(map[string]interface{})
		return ok && deepEqualMaps(av, bv), true
	case nil:
		return b.Data == nil, true
	default:
		return false, true
	}
}

// EqualCollections compares two collections pairwise in order. Either
// side empty is undefined (the operator returns empty); a length
// mismatch is plain false.
func EqualCollections(a, b Collection) (eq bool, defined bool) {
	if len(a) == 0 || len(b) == 0 {
		return false, false
	}
	if len(a) != len(b) {
		return false, true
	}
	for i := range a {
		eq, def := Equal(a[i], b[i])
		if !def {
			return false, false
		}
		if !eq {
			return false, true
		}
	}
	return true, true
}

// Equivalent applies FHIRPath equivalence to two boxed values: strings
// compare case-insensitively with normalized whitespace, decimals
// round to the least precision of the operands, dates of different
// precision are simply not equivalent.
func Equivalent(a, b Value) bool {
	if an, aok := a.AsNumber(); aok {
		bn, bok := b.AsNumber()
		if !bok {
			return false
		}
		ap, _ := a.NumericPrecision()
		bp, _ := b.NumericPrecision()
		prec := leastPrecision(ap, bp)
		if prec < 0 {
			return an == bn
		}
		scale := math.Pow(10, float64(prec))
		return math.Round(an*scale) == math.Round(bn*scale)
	}
	switch av := a.Data.(type) {
	case bool:
		bv, ok := b.Data.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.Data.(string)
		return ok && normalizeString(av) == normalizeString(bv)
	case Date:
		bv, ok := b.Data.(Date)
		if !ok {
			return false
		}
		cmp, def := CompareDates(av, bv)
		return def && cmp == 0
	case DateTime:
		bv, ok := b.Data.(DateTime)
		if !ok {
			return false
		}
		cmp, def := CompareDateTimes(av, bv)
		return def && cmp == 0
	case Time:
		bv, ok := b.Data.(Time)
		if !ok {
			return false
		}
		cmp, def := CompareTimes(av, bv)
		return def && cmp == 0
	case Quantity:
		bv, ok := b.Data.(Quantity)
		return ok && EquivalentQuantities(av, bv)
	case map[string]interface{}:
		bv, ok := b.Data.(map[string]interface{})
		return ok && deepEqualMaps(av, bv)
	case nil:
		return b.Data == nil
	default:
		return false
	}
}

// EquivalentCollections compares collections ignoring order: each left
// item must pair with a distinct equivalent right item, so duplicate
// counts matter. Empty is equivalent to empty.
func EquivalentCollections(a, b Collection) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, av := range a {
		found := false
		for i, bv := range b {
			if used[i] {
				continue
			}
			if Equivalent(av, bv) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// normalizeString lowercases and collapses runs of whitespace to a
// single space for equivalence comparison.
func normalizeString(s string) string {
	lower := strings.ToLower(s)
	fields := strings.Fields(lower)
	return strings.Join(fields, " ")
}

// deepEqualMaps is recursive structural equality over decoded JSON.
func deepEqualMaps(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !deepEqualJSON(av, bv) {
			return false
		}
	}
	return true
}

func deepEqualJSON(a, b interface{}) bool {
	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		return ok && deepEqualMaps(av, bv)
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqualJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	case float64:
		switch bv := b.(type) {
		case float64:
			return av == bv
		case int64:
			return av == float64(bv)
		}
		return false
	case int64:
		switch bv := b.(type) {
		case float64:
			return float64(av) == bv
		case int64:
			return av == bv
		}
		return false
	default:
		return a == b
	}
}
