package types

import (
	"fmt"
	"strconv"
)

// TypeTag carries the element type information a model provider
// attached to a boxed value.
type TypeTag struct {
	Name      string
	Singleton bool
}

// Decimal is a decimal number together with the number of fractional
// digits it was written with. Precision -1 means "not derived from a
// literal"; equivalence rounding then uses full float precision.
type Decimal struct {
	Value     float64
	Precision int
}

// Value boxes a raw datum with an optional type tag and the FHIR
// primitive-element sibling (the underscore-prefixed companion object
// carrying extensions for a primitive). Data is one of: bool, int64,
// Decimal, string, Date, DateTime, Time, Quantity,
// map[string]interface{} (object node) or nil.
type Value struct {
	Data    interface{}
	Tag     *TypeTag
	Element map[string]interface{}
}

// NewBoolean boxes a boolean.
func NewBoolean(b bool) Value { return Value{Data: b} }

// NewInteger boxes an integer.
func NewInteger(i int64) Value { return Value{Data: i} }

// NewDecimal boxes a decimal with unknown literal precision.
func NewDecimal(f float64) Value { return Value{Data: Decimal{Value: f, Precision: -1}} }

// NewDecimalWithPrecision boxes a decimal recording its literal
// precision for equivalence rounding.
func NewDecimalWithPrecision(f float64, precision int) Value {
	return Value{Data: Decimal{Value: f, Precision: precision}}
}

// NewString boxes a string.
func NewString(s string) Value { return Value{Data: s} }

// NewQuantity boxes a quantity.
func NewQuantity(q Quantity) Value { return Value{Data: q} }

// NewObject boxes an object node from the source data.
func NewObject(obj map[string]interface{}) Value { return Value{Data: obj} }

// NewValue boxes an arbitrary datum coming from decoded JSON. Whole
// float64 values produced by the JSON decoder box as integers; other
// float64 values box as decimals of unknown precision.
func NewValue(data interface{}) Value {
	switch v := data.(type) {
	case Value:
		return v
	case bool, int64, string, Decimal, Date, DateTime, Time, Quantity, map[string]interface{}:
		return Value{Data: data}
	case int:
		return Value{Data: int64(v)}
	case float64:
		if v == float64(int64(v)) {
			return Value{Data: int64(v)}
		}
		return Value{Data: Decimal{Value: v, Precision: -1}}
	case nil:
		return Value{}
	default:
		return Value{Data: data}
	}
}

// WithTag returns the value with a type tag attached.
func (v Value) WithTag(name string, singleton bool) Value {
	v.Tag = &TypeTag{Name: name, Singleton: singleton}
	return v
}

// WithElement returns the value with the primitive-element sibling
// attached.
func (v Value) WithElement(element map[string]interface{}) Value {
	v.Element = element
	return v
}

// Unbox recovers the raw datum from a boxed value. Decimals unbox to
// float64; every other datum is returned as stored.
func Unbox(v Value) interface{} {
	if d, ok := v.Data.(Decimal); ok {
		return d.Value
	}
	return v.Data
}

// TypeName returns the runtime type name of the boxed datum, preferring
// the attached tag.
func (v Value) TypeName() string {
	if v.Tag != nil && v.Tag.Name != "" {
		return v.Tag.Name
	}
	switch d := v.Data.(type) {
	case bool:
		return "Boolean"
	case int64:
		return "Integer"
	case Decimal:
		return "Decimal"
	case string:
		return "String"
	case Date:
		return "Date"
	case DateTime:
		return "DateTime"
	case Time:
		return "Time"
	case Quantity:
		return "Quantity"
	case map[string]interface{}:
		if rt, ok := d["resourceType"].(string); ok {
			return rt
		}
		return ""
	default:
		return ""
	}
}

// IsObject reports whether the value boxes an object node.
func (v Value) IsObject() bool {
	_, ok := v.Data.(map[string]interface{})
	return ok
}

// AsBoolean returns the boolean datum if the value boxes one.
func (v Value) AsBoolean() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok
}

// AsString returns the string datum if the value boxes one.
func (v Value) AsString() (string, bool) {
	s, ok := v.Data.(string)
	return s, ok
}

// AsInteger returns the integer datum if the value boxes one.
func (v Value) AsInteger() (int64, bool) {
	i, ok := v.Data.(int64)
	return i, ok
}

// AsNumber returns the numeric datum as float64 for integers and
// decimals.
func (v Value) AsNumber() (float64, bool) {
	switch d := v.Data.(type) {
	case int64:
		return float64(d), true
	case Decimal:
		return d.Value, true
	default:
		return 0, false
	}
}

// AsQuantity returns the quantity datum if the value boxes one.
func (v Value) AsQuantity() (Quantity, bool) {
	q, ok := v.Data.(Quantity)
	return q, ok
}

// NumericPrecision returns the fractional-digit precision for decimals
// and 0 for integers.
func (v Value) NumericPrecision() (int, bool) {
	switch d := v.Data.(type) {
	case int64:
		return 0, true
	case Decimal:
		return d.Precision, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch d := v.Data.(type) {
	case bool:
		return strconv.FormatBool(d)
	case int64:
		return strconv.FormatInt(d, 10)
	case Decimal:
		if d.Precision >= 0 {
			return strconv.FormatFloat(d.Value, 'f', d.Precision, 64)
		}
		return strconv.FormatFloat(d.Value, 'f', -1, 64)
	case string:
		return d
	case Date:
		return d.String()
	case DateTime:
		return d.String()
	case Time:
		return d.String()
	case Quantity:
		return d.String()
	case map[string]interface{}:
		return fmt.Sprintf("%v", d)
	case nil:
		return "{}"
	default:
		return fmt.Sprintf("%v", d)
	}
}
