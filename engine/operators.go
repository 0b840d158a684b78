package engine

import (
	"math"
	"strings"
	"time"

	"fhirpath/errors"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/runtime"
	"fhirpath/pkg/types"
	"fhirpath/pkg/ucum"
)

// bindOperators attaches the concrete semantics for every core
// operator. The engine short-circuits `and`/`or` itself; the bound
// forms serve extension dispatch and keep the registry complete.
func bindOperators(reg *registry.Registry) {
	reg.BindOperator("=", opEqual(false))
	reg.BindOperator("!=", opEqual(true))
	reg.BindOperator("~", opEquivalent(false))
	reg.BindOperator("!~", opEquivalent(true))
	reg.BindOperator("<", opCompare(func(c int) bool { return c < 0 }))
	reg.BindOperator("<=", opCompare(func(c int) bool { return c <= 0 }))
	reg.BindOperator(">", opCompare(func(c int) bool { return c > 0 }))
	reg.BindOperator(">=", opCompare(func(c int) bool { return c >= 0 }))

	reg.BindOperator("+", opAdd)
	reg.BindOperator("-", opSubtract)
	reg.BindOperator("*", opMultiply)
	reg.BindOperator("/", opDivide)
	reg.BindOperator("div", opIntegerDivide)
	reg.BindOperator("mod", opModulo)
	reg.BindOperator("&", opConcat)

	reg.BindOperator("|", func(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
		return types.Union(left, right), nil
	})

	reg.BindOperator("in", opIn)
	reg.BindOperator("contains", func(ctx *runtime.Context, left, right types.Collection) (types.Collection, error) {
		return opIn(ctx, right, left)
	})

	reg.BindOperator("and", opLogic(types.Ternary.And))
	reg.BindOperator("or", opLogic(types.Ternary.Or))
	reg.BindOperator("xor", opLogic(types.Ternary.Xor))
	reg.BindOperator("implies", opLogic(types.Ternary.Implies))

	// `is`/`as` appear as dedicated node kinds after parsing; the
	// bound forms cover programmatic dispatch through the registry.
	reg.BindOperator("is", func(ctx *runtime.Context, left, right types.Collection) (types.Collection, error) {
		name, err := typeNameOperand(right)
		if err != nil {
			return nil, err
		}
		if left.IsEmpty() {
			return types.EmptyCollection, nil
		}
		v, ok := left.SingleValue()
		if !ok {
			return nil, errors.SingletonRequired(nil, "is operator", len(left))
		}
		return types.BooleanCollection(itemIsType(v, name, ctx)), nil
	})
	reg.BindOperator("as", func(ctx *runtime.Context, left, right types.Collection) (types.Collection, error) {
		name, err := typeNameOperand(right)
		if err != nil {
			return nil, err
		}
		if left.IsEmpty() {
			return types.EmptyCollection, nil
		}
		v, ok := left.SingleValue()
		if !ok {
			return nil, errors.SingletonRequired(nil, "as operator", len(left))
		}
		return castValue(v, name, ctx), nil
	})

	reg.BindUnaryOperator("-", opNegate)
	reg.BindUnaryOperator("+", func(_ *runtime.Context, operand types.Collection) (types.Collection, error) {
		if operand.IsEmpty() {
			return types.EmptyCollection, nil
		}
		v, ok := operand.SingleValue()
		if !ok {
			return nil, errors.SingletonRequired(nil, "unary +", len(operand))
		}
		if _, ok := v.AsNumber(); !ok {
			if _, isQ := v.AsQuantity(); !isQ {
				return nil, errors.New(errors.CodeInvalidOperandType,
					"unary + requires a number, got %s", v.TypeName())
			}
		}
		return operand, nil
	})
}

func typeNameOperand(c types.Collection) (string, error) {
	v, ok := c.SingleValue()
	if !ok {
		return "", errors.New(errors.CodeInvalidOperandType, "expected a type name operand")
	}
	s, ok := v.AsString()
	if !ok {
		return "", errors.New(errors.CodeInvalidOperandType, "expected a type name operand")
	}
	return s, nil
}

func opEqual(negate bool) registry.OperatorFunc {
	return func(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
		eq, defined := types.EqualCollections(left, right)
		if !defined {
			return types.EmptyCollection, nil
		}
		if negate {
			eq = !eq
		}
		return types.BooleanCollection(eq), nil
	}
}

func opEquivalent(negate bool) registry.OperatorFunc {
	return func(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
		eq := types.EquivalentCollections(left, right)
		if negate {
			eq = !eq
		}
		return types.BooleanCollection(eq), nil
	}
}

// opCompare applies an ordering operator to singleton operands.
// Undefined orderings (mixed precision dates, incommensurable units)
// yield empty; mismatched operand types are an error.
func opCompare(accept func(int) bool) registry.OperatorFunc {
	return func(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
		if left.IsEmpty() || right.IsEmpty() {
			return types.EmptyCollection, nil
		}
		lv, lok := left.SingleValue()
		rv, rok := right.SingleValue()
		if !lok || !rok {
			return nil, errors.SingletonRequired(nil, "comparison", max(len(left), len(right)))
		}
		cmp, defined, err := compareValues(lv, rv)
		if err != nil {
			return nil, err
		}
		if !defined {
			return types.EmptyCollection, nil
		}
		return types.BooleanCollection(accept(cmp)), nil
	}
}

// compareValues orders two scalar values of compatible types.
func compareValues(a, b types.Value) (cmp int, defined bool, err error) {
	if an, aok := a.AsNumber(); aok {
		if bn, bok := b.AsNumber(); bok {
			return compareFloats(an, bn), true, nil
		}
		if bq, bok := b.AsQuantity(); bok {
			// A bare number compares to a dimensionless quantity.
			aq := types.Quantity{Value: an, Precision: -1, Unit: "1"}
			c, ok := types.CompareQuantities(aq, bq)
			return c, ok, nil
		}
		return 0, false, typeMismatch(a, b)
	}
	switch av := a.Data.(type) {
	case string:
		bv, ok := b.Data.(string)
		if !ok {
			return 0, false, typeMismatch(a, b)
		}
		return strings.Compare(av, bv), true, nil
	case types.Date:
		switch bv := b.Data.(type) {
		case types.Date:
			c, ok := types.CompareDates(av, bv)
			return c, ok, nil
		case types.DateTime:
			c, ok := types.CompareDateTimes(av.ToDateTime(), bv)
			return c, ok, nil
		}
		return 0, false, typeMismatch(a, b)
	case types.DateTime:
		switch bv := b.Data.(type) {
		case types.DateTime:
			c, ok := types.CompareDateTimes(av, bv)
			return c, ok, nil
		case types.Date:
			c, ok := types.CompareDateTimes(av, bv.ToDateTime())
			return c, ok, nil
		}
		return 0, false, typeMismatch(a, b)
	case types.Time:
		bv, ok := b.Data.(types.Time)
		if !ok {
			return 0, false, typeMismatch(a, b)
		}
		c, defok := types.CompareTimes(av, bv)
		return c, defok, nil
	case types.Quantity:
		var bq types.Quantity
		switch bv := b.Data.(type) {
		case types.Quantity:
			bq = bv
		case int64:
			bq = types.Quantity{Value: float64(bv), Precision: 0, Unit: "1"}
		case types.Decimal:
			bq = types.Quantity{Value: bv.Value, Precision: bv.Precision, Unit: "1"}
		default:
			return 0, false, typeMismatch(a, b)
		}
		c, ok := types.CompareQuantities(av, bq)
		return c, ok, nil
	default:
		return 0, false, typeMismatch(a, b)
	}
}

func typeMismatch(a, b types.Value) error {
	return errors.New(errors.CodeInvalidOperandType,
		"cannot compare %s with %s", a.TypeName(), b.TypeName())
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// arithmeticOperands unwraps singleton operands for arithmetic;
// either side empty propagates empty.
func arithmeticOperands(op string, left, right types.Collection) (types.Value, types.Value, bool, error) {
	if left.IsEmpty() || right.IsEmpty() {
		return types.Value{}, types.Value{}, false, nil
	}
	lv, lok := left.SingleValue()
	rv, rok := right.SingleValue()
	if !lok || !rok {
		return types.Value{}, types.Value{}, false,
			errors.SingletonRequired(nil, "operator "+op, max(len(left), len(right)))
	}
	return lv, rv, true, nil
}

func opAdd(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
	lv, rv, ok, err := arithmeticOperands("+", left, right)
	if err != nil || !ok {
		return types.EmptyCollection, err
	}
	// String concatenation.
	if ls, ok := lv.AsString(); ok {
		rs, ok := rv.AsString()
		if !ok {
			return nil, errors.New(errors.CodeInvalidOperandType,
				"cannot add String and %s", rv.TypeName())
		}
		return types.Singleton(types.NewString(ls + rs)), nil
	}
	if lq, ok := lv.AsQuantity(); ok {
		rq, ok := rv.AsQuantity()
		if !ok {
			return nil, errors.New(errors.CodeInvalidOperandType,
				"cannot add Quantity and %s", rv.TypeName())
		}
		sum, err := types.AddQuantities(lq, rq)
		if err != nil {
			return nil, errors.New(errors.CodeIncompatibleUnits, "%v", err)
		}
		return types.Singleton(types.NewQuantity(sum)), nil
	}
	if isTemporal(lv) {
		return temporalShift(lv, rv, 1)
	}
	return numericBinary("+", lv, rv, func(a, b int64) int64 { return a + b },
		func(a, b float64) float64 { return a + b })
}

func opSubtract(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
	lv, rv, ok, err := arithmeticOperands("-", left, right)
	if err != nil || !ok {
		return types.EmptyCollection, err
	}
	if lq, ok := lv.AsQuantity(); ok {
		rq, ok := rv.AsQuantity()
		if !ok {
			return nil, errors.New(errors.CodeInvalidOperandType,
				"cannot subtract %s from Quantity", rv.TypeName())
		}
		diff, err := types.SubtractQuantities(lq, rq)
		if err != nil {
			return nil, errors.New(errors.CodeIncompatibleUnits, "%v", err)
		}
		return types.Singleton(types.NewQuantity(diff)), nil
	}
	if isTemporal(lv) {
		// date - quantity shifts; date - date yields the elapsed span.
		if ldt, ok := types.ToDateTimeValue(lv); ok {
			if rdt, isTemp := types.ToDateTimeValue(rv); isTemp && isTemporal(rv) {
				return types.Singleton(types.NewQuantity(types.SubtractDateTimes(ldt, rdt))), nil
			}
		}
		return temporalShift(lv, rv, -1)
	}
	return numericBinary("-", lv, rv, func(a, b int64) int64 { return a - b },
		func(a, b float64) float64 { return a - b })
}

func opMultiply(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
	lv, rv, ok, err := arithmeticOperands("*", left, right)
	if err != nil || !ok {
		return types.EmptyCollection, err
	}
	if lq, ok := lv.AsQuantity(); ok {
		if rn, ok := rv.AsNumber(); ok {
			return types.Singleton(types.NewQuantity(types.ScaleQuantity(lq, rn))), nil
		}
		return nil, errors.New(errors.CodeInvalidOperandType,
			"cannot multiply Quantity by %s", rv.TypeName())
	}
	if rq, ok := rv.AsQuantity(); ok {
		if ln, ok := lv.AsNumber(); ok {
			return types.Singleton(types.NewQuantity(types.ScaleQuantity(rq, ln))), nil
		}
	}
	return numericBinary("*", lv, rv, func(a, b int64) int64 { return a * b },
		func(a, b float64) float64 { return a * b })
}

// opDivide always produces a decimal; division by zero is a quiet
// empty.
func opDivide(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
	lv, rv, ok, err := arithmeticOperands("/", left, right)
	if err != nil || !ok {
		return types.EmptyCollection, err
	}
	if lq, ok := lv.AsQuantity(); ok {
		if rn, ok := rv.AsNumber(); ok {
			out, ok := types.DivideQuantity(lq, rn)
			if !ok {
				return types.EmptyCollection, nil
			}
			return types.Singleton(types.NewQuantity(out)), nil
		}
		if rq, ok := rv.AsQuantity(); ok {
			aligned, err := ucum.Convert(rq.Value, rq.Unit, rq.Calendar, lq.Unit, lq.Calendar)
			if lq.Unit == rq.Unit && lq.Calendar == rq.Calendar {
				aligned, err = rq.Value, nil
			}
			if err != nil {
				return nil, errors.New(errors.CodeIncompatibleUnits,
					"cannot divide quantities with units %q and %q", lq.Unit, rq.Unit)
			}
			if aligned == 0 {
				return types.EmptyCollection, nil
			}
			return types.Singleton(types.NewDecimal(lq.Value / aligned)), nil
		}
		return nil, errors.New(errors.CodeInvalidOperandType,
			"cannot divide Quantity by %s", rv.TypeName())
	}
	ln, lok := lv.AsNumber()
	rn, rok := rv.AsNumber()
	if !lok || !rok {
		return nil, errors.New(errors.CodeInvalidOperandType,
			"cannot divide %s by %s", lv.TypeName(), rv.TypeName())
	}
	if rn == 0 {
		return types.EmptyCollection, nil
	}
	return types.Singleton(types.NewDecimal(ln / rn)), nil
}

func opIntegerDivide(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
	lv, rv, ok, err := arithmeticOperands("div", left, right)
	if err != nil || !ok {
		return types.EmptyCollection, err
	}
	ln, lok := lv.AsNumber()
	rn, rok := rv.AsNumber()
	if !lok || !rok {
		return nil, errors.New(errors.CodeInvalidOperandType,
			"div requires numeric operands, got %s and %s", lv.TypeName(), rv.TypeName())
	}
	if rn == 0 {
		return types.EmptyCollection, nil
	}
	return types.Singleton(types.NewInteger(int64(math.Trunc(ln / rn)))), nil
}

func opModulo(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
	lv, rv, ok, err := arithmeticOperands("mod", left, right)
	if err != nil || !ok {
		return types.EmptyCollection, err
	}
	ln, lok := lv.AsNumber()
	rn, rok := rv.AsNumber()
	if !lok || !rok {
		return nil, errors.New(errors.CodeInvalidOperandType,
			"mod requires numeric operands, got %s and %s", lv.TypeName(), rv.TypeName())
	}
	if rn == 0 {
		return types.EmptyCollection, nil
	}
	li, lInt := lv.AsInteger()
	ri, rInt := rv.AsInteger()
	if lInt && rInt {
		return types.Singleton(types.NewInteger(li % ri)), nil
	}
	return types.Singleton(types.NewDecimal(math.Mod(ln, rn))), nil
}

// opConcat is the `&` operator: string concatenation treating empty as
// the empty string.
func opConcat(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
	ls, err := concatOperand(left)
	if err != nil {
		return nil, err
	}
	rs, err := concatOperand(right)
	if err != nil {
		return nil, err
	}
	return types.Singleton(types.NewString(ls + rs)), nil
}

func concatOperand(c types.Collection) (string, error) {
	if c.IsEmpty() {
		return "", nil
	}
	v, ok := c.SingleValue()
	if !ok {
		return "", errors.SingletonRequired(nil, "operator &", len(c))
	}
	s, ok := types.ToStringValue(v)
	if !ok {
		return "", errors.New(errors.CodeStringOpOnNonString,
			"operator & requires string operands, got %s", v.TypeName())
	}
	return s, nil
}

// opIn: left empty yields empty, right empty yields false.
func opIn(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
	if left.IsEmpty() {
		return types.EmptyCollection, nil
	}
	v, ok := left.SingleValue()
	if !ok {
		return nil, errors.SingletonRequired(nil, "in operator", len(left))
	}
	return types.BooleanCollection(right.Contains(v)), nil
}

func opLogic(table func(types.Ternary, types.Ternary) types.Ternary) registry.OperatorFunc {
	return func(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
		lt, err := ternaryOperand(left, nil)
		if err != nil {
			return nil, err
		}
		rt, err := ternaryOperand(right, nil)
		if err != nil {
			return nil, err
		}
		return table(lt, rt).ToCollection(), nil
	}
}

func opNegate(_ *runtime.Context, operand types.Collection) (types.Collection, error) {
	if operand.IsEmpty() {
		return types.EmptyCollection, nil
	}
	v, ok := operand.SingleValue()
	if !ok {
		return nil, errors.SingletonRequired(nil, "unary -", len(operand))
	}
	switch d := v.Data.(type) {
	case int64:
		return types.Singleton(types.NewInteger(-d)), nil
	case types.Decimal:
		return types.Singleton(types.NewDecimalWithPrecision(-d.Value, d.Precision)), nil
	case types.Quantity:
		d.Value = -d.Value
		return types.Singleton(types.NewQuantity(d)), nil
	default:
		return nil, errors.New(errors.CodeInvalidOperandType,
			"unary - requires a number, got %s", v.TypeName())
	}
}

// numericBinary applies integer/decimal arithmetic, staying in
// integers when both operands are integers.
func numericBinary(op string, lv, rv types.Value, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) (types.Collection, error) {
	li, lInt := lv.AsInteger()
	ri, rInt := rv.AsInteger()
	if lInt && rInt {
		return types.Singleton(types.NewInteger(intOp(li, ri))), nil
	}
	ln, lok := lv.AsNumber()
	rn, rok := rv.AsNumber()
	if !lok || !rok {
		return nil, errors.New(errors.CodeInvalidOperandType,
			"operator %s is not defined for %s and %s", op, lv.TypeName(), rv.TypeName())
	}
	return types.Singleton(types.NewDecimal(floatOp(ln, rn))), nil
}

// isTemporal reports whether a value is a date, datetime or time.
func isTemporal(v types.Value) bool {
	switch v.Data.(type) {
	case types.Date, types.DateTime, types.Time:
		return true
	}
	return false
}

// temporalShift adds or subtracts a duration quantity to a temporal
// value, using calendar-aware arithmetic for year/month steps.
func temporalShift(lv, rv types.Value, sign int) (types.Collection, error) {
	q, ok := rv.AsQuantity()
	if !ok {
		return nil, errors.New(errors.CodeInvalidOperandType,
			"cannot offset %s by %s", lv.TypeName(), rv.TypeName())
	}
	dt, ok := types.ToDateTimeValue(lv)
	if _, isTime := lv.Data.(types.Time); isTime || !ok {
		return nil, errors.New(errors.CodeInvalidOperandType,
			"date arithmetic is not defined for %s", lv.TypeName())
	}
	shifted, err := shiftDateTime(dt, q, sign)
	if err != nil {
		return nil, err
	}
	if _, isDate := lv.Data.(types.Date); isDate {
		return types.Singleton(types.Value{Data: types.Date{
			Year: shifted.Year, Month: shifted.Month, Day: shifted.Day,
			Precision: types.PrecDay,
		}}), nil
	}
	return types.Singleton(types.Value{Data: shifted}), nil
}

func shiftDateTime(dt types.DateTime, q types.Quantity, sign int) (types.DateTime, error) {
	amount := int(q.Value) * sign
	unit := q.Unit
	if q.Calendar {
		switch unit {
		case "year":
			t := dt.ToTime().AddDate(amount, 0, 0)
			return rebuild(dt, t), nil
		case "month":
			t := dt.ToTime().AddDate(0, amount, 0)
			return rebuild(dt, t), nil
		case "week":
			t := dt.ToTime().AddDate(0, 0, amount*7)
			return rebuild(dt, t), nil
		case "day":
			t := dt.ToTime().AddDate(0, 0, amount)
			return rebuild(dt, t), nil
		}
	}
	// Definite-duration units convert to seconds.
	secs, err := ucum.Convert(q.Value, q.Unit, q.Calendar, "s", false)
	if err != nil {
		return types.DateTime{}, errors.New(errors.CodeIncompatibleUnits,
			"cannot offset a date by %q", q.Unit)
	}
	t := dt.ToTime().Add(time.Duration(float64(sign) * secs * float64(time.Second)))
	return rebuild(dt, t), nil
}

// rebuild maps a shifted instant back onto the original value's
// precision and offset.
func rebuild(orig types.DateTime, t time.Time) types.DateTime {
	out := types.DateTime{
		Year:        t.Year(),
		Month:       int(t.Month()),
		Day:         t.Day(),
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		Sec:         t.Second(),
		Millisecond: t.Nanosecond() / int(time.Millisecond),
		Offset:      orig.Offset,
		Precision:   orig.Precision,
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
