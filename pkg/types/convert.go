package types

import (
	"math"
	"strconv"
	"strings"
)

// ToBoolean converts a boxed value per the FHIRPath boolean conversion
// table: true/t/yes/y/1/1.0 and false/f/no/n/0/0.0, case-insensitive,
// plus numeric 1/0. ok is false for non-convertible values.
func ToBoolean(v Value) (bool, bool) {
	switch d := v.Data.(type) {
	case bool:
		return d, true
	case string:
		switch strings.ToLower(d) {
		case "true", "t", "yes", "y", "1", "1.0":
			return true, true
		case "false", "f", "no", "n", "0", "0.0":
			return false, true
		}
		return false, false
	case int64:
		switch d {
		case 1:
			return true, true
		case 0:
			return false, true
		}
		return false, false
	case Decimal:
		switch d.Value {
		case 1.0:
			return true, true
		case 0.0:
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// ToInteger converts booleans, integer strings and whole-valued
// integers. Decimals do not convert (FHIRPath reserves that for
// truncate/round).
func ToInteger(v Value) (int64, bool) {
	switch d := v.Data.(type) {
	case int64:
		return d, true
	case bool:
		if d {
			return 1, true
		}
		return 0, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(d), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// ToDecimal converts integers, booleans, decimals and decimal strings.
func ToDecimal(v Value) (Decimal, bool) {
	switch d := v.Data.(type) {
	case Decimal:
		return d, true
	case int64:
		return Decimal{Value: float64(d), Precision: 0}, true
	case bool:
		if d {
			return Decimal{Value: 1, Precision: 0}, true
		}
		return Decimal{Value: 0, Precision: 0}, true
	case string:
		s := strings.TrimSpace(d)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return Decimal{}, false
		}
		prec := -1
		if i := strings.IndexByte(s, '.'); i >= 0 {
			prec = len(s) - i - 1
		} else {
			prec = 0
		}
		return Decimal{Value: f, Precision: prec}, true
	default:
		return Decimal{}, false
	}
}

// ToQuantityValue converts numbers, quantities and quantity strings.
func ToQuantityValue(v Value) (Quantity, bool) {
	switch d := v.Data.(type) {
	case Quantity:
		return d, true
	case int64:
		return Quantity{Value: float64(d), Precision: 0, Unit: "1"}, true
	case Decimal:
		return Quantity{Value: d.Value, Precision: d.Precision, Unit: "1"}, true
	case bool:
		if d {
			return Quantity{Value: 1, Precision: 0, Unit: "1"}, true
		}
		return Quantity{Value: 0, Precision: 0, Unit: "1"}, true
	case string:
		return ParseQuantityString(d)
	default:
		return Quantity{}, false
	}
}

// ToStringValue renders primitives in their canonical text form. ok is
// false for object nodes.
func ToStringValue(v Value) (string, bool) {
	switch v.Data.(type) {
	case map[string]interface{}, nil:
		return "", false
	default:
		return v.String(), true
	}
}

// ToDateValue converts dates, datetimes and date strings.
func ToDateValue(v Value) (Date, bool) {
	switch d := v.Data.(type) {
	case Date:
		return d, true
	case DateTime:
		return Date{Year: d.Year, Month: d.Month, Day: d.Day,
			Precision: minPrecision(d.Precision, PrecDay)}, true
	case string:
		parsed, err := ParseDate(d)
		if err != nil {
			return Date{}, false
		}
		return parsed, true
	default:
		return Date{}, false
	}
}

// ToDateTimeValue converts dates, datetimes and datetime strings.
func ToDateTimeValue(v Value) (DateTime, bool) {
	switch d := v.Data.(type) {
	case DateTime:
		return d, true
	case Date:
		return d.ToDateTime(), true
	case string:
		parsed, err := ParseDateTime(d)
		if err != nil {
			return DateTime{}, false
		}
		return parsed, true
	default:
		return DateTime{}, false
	}
}

// ToTimeValue converts times and time strings.
func ToTimeValue(v Value) (Time, bool) {
	switch d := v.Data.(type) {
	case Time:
		return d, true
	case string:
		parsed, err := ParseTime(d)
		if err != nil {
			return Time{}, false
		}
		return parsed, true
	default:
		return Time{}, false
	}
}
