package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"fhirpath/pkg/ucum"
)

// Quantity is a numeric value with a unit. Calendar marks FHIRPath
// calendar-duration units (year, month, ...), which are kept distinct
// from UCUM units per the language rules.
type Quantity struct {
	Value     float64
	Precision int // fractional digits from the literal; -1 unknown
	Unit      string
	Calendar  bool
}

func (q Quantity) String() string {
	num := strconv.FormatFloat(q.Value, 'f', -1, 64)
	if q.Precision >= 0 {
		num = strconv.FormatFloat(q.Value, 'f', q.Precision, 64)
	}
	if q.Unit == "" {
		return num
	}
	if q.Calendar {
		return num + " " + q.Unit
	}
	return num + " '" + q.Unit + "'"
}

// sameUnit reports whether two quantities share a unit exactly,
// treating singular and plural calendar forms as the same unit.
func sameUnit(a, b Quantity) bool {
	if a.Calendar != b.Calendar {
		return false
	}
	if a.Calendar {
		return ucum.Singularize(a.Unit) == ucum.Singularize(b.Unit)
	}
	return a.Unit == b.Unit
}

// align converts b's value into a's unit. The equal-unit path
// short-circuits without consulting the unit tables.
func align(a, b Quantity) (float64, error) {
	if sameUnit(a, b) {
		return b.Value, nil
	}
	return ucum.Convert(b.Value, b.Unit, b.Calendar, a.Unit, a.Calendar)
}

// CompareQuantities orders two quantities, converting units when they
// differ. Incommensurable units yield defined=false, which comparison
// operators surface as empty.
func CompareQuantities(a, b Quantity) (cmp int, defined bool) {
	bv, err := align(a, b)
	if err != nil {
		return 0, false
	}
	switch {
	case a.Value < bv:
		return -1, true
	case a.Value > bv:
		return 1, true
	default:
		return 0, true
	}
}

// AddQuantities adds two quantities in a's unit. Incommensurable units
// are an arithmetic error.
func AddQuantities(a, b Quantity) (Quantity, error) {
	bv, err := align(a, b)
	if err != nil {
		return Quantity{}, fmt.Errorf("cannot add quantities with units %q and %q", a.Unit, b.Unit)
	}
	return Quantity{Value: a.Value + bv, Precision: -1, Unit: a.Unit, Calendar: a.Calendar}, nil
}

// SubtractQuantities subtracts b from a in a's unit.
func SubtractQuantities(a, b Quantity) (Quantity, error) {
	bv, err := align(a, b)
	if err != nil {
		return Quantity{}, fmt.Errorf("cannot subtract quantities with units %q and %q", a.Unit, b.Unit)
	}
	return Quantity{Value: a.Value - bv, Precision: -1, Unit: a.Unit, Calendar: a.Calendar}, nil
}

// ScaleQuantity multiplies a quantity by a dimensionless factor.
func ScaleQuantity(q Quantity, factor float64) Quantity {
	return Quantity{Value: q.Value * factor, Precision: -1, Unit: q.Unit, Calendar: q.Calendar}
}

// DivideQuantity divides a quantity by a dimensionless divisor.
// Division by zero yields ok=false (empty result).
func DivideQuantity(q Quantity, divisor float64) (Quantity, bool) {
	if divisor == 0 {
		return Quantity{}, false
	}
	return Quantity{Value: q.Value / divisor, Precision: -1, Unit: q.Unit, Calendar: q.Calendar}, true
}

// EqualQuantities applies equality semantics: equal units compare
// values, convertible units compare after conversion, incommensurable
// units are undefined.
func EqualQuantities(a, b Quantity) (eq bool, defined bool) {
	cmp, ok := CompareQuantities(a, b)
	if !ok {
		return false, false
	}
	return cmp == 0, true
}

// EquivalentQuantities applies equivalence: like equality but rounding
// to the least precision of the two values, and defined incomparable
// pairs are simply not equivalent.
func EquivalentQuantities(a, b Quantity) bool {
	bv, err := align(a, b)
	if err != nil {
		return false
	}
	prec := leastPrecision(a.Precision, b.Precision)
	if prec < 0 {
		return a.Value == bv
	}
	scale := math.Pow(10, float64(prec))
	return math.Round(a.Value*scale) == math.Round(bv*scale)
}

func leastPrecision(a, b int) int {
	if a < 0 || b < 0 {
		return -1
	}
	if a < b {
		return a
	}
	return b
}

// ParseQuantityString parses the "value unit" text form accepted by
// toQuantity(), e.g. "4.5 'mg'", "10 days", "5".
func ParseQuantityString(s string) (Quantity, bool) {
	s = strings.TrimSpace(s)
	fields := strings.SplitN(s, " ", 2)
	numText := fields[0]
	f, err := strconv.ParseFloat(numText, 64)
	if err != nil {
		return Quantity{}, false
	}
	prec := 0
	if i := strings.IndexByte(numText, '.'); i >= 0 {
		prec = len(numText) - i - 1
	}
	q := Quantity{Value: f, Precision: prec, Unit: "1"}
	if len(fields) == 1 {
		return q, true
	}
	unit := strings.TrimSpace(fields[1])
	if strings.HasPrefix(unit, "'") && strings.HasSuffix(unit, "'") && len(unit) >= 2 {
		q.Unit = unit[1 : len(unit)-1]
		return q, true
	}
	if ucum.IsCalendarUnit(unit) {
		q.Unit = ucum.Singularize(unit)
		q.Calendar = true
		return q, true
	}
	return Quantity{}, false
}
