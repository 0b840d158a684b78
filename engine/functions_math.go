package engine

import (
	"math"

	"fhirpath/errors"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
)

func registerMathFunctions(reg *registry.Registry) {
	// numberFn registers a function over a singleton numeric focus.
	// The body returns an empty collection for a quiet empty (e.g. sqrt
	// of a negative).
	numberFn := func(name string, args []registry.ArgDescriptor, fn func(inv *registry.Invocation, v types.Value) (types.Collection, error)) {
		reg.RegisterBuiltin(&registry.FunctionEntry{
			Name:           name,
			Args:           args,
			InputType:      "Number",
			PropagateEmpty: true,
			Call: func(inv *registry.Invocation) (types.Collection, error) {
				v, ok, err := singletonInput(inv, name+"()")
				if err != nil || !ok {
					return types.EmptyCollection, err
				}
				return fn(inv, v)
			},
		})
	}

	numberFn("abs", nil, func(_ *registry.Invocation, v types.Value) (types.Collection, error) {
		switch d := v.Data.(type) {
		case int64:
			if d < 0 {
				d = -d
			}
			return types.Singleton(types.NewInteger(d)), nil
		case types.Decimal:
			return types.Singleton(types.NewDecimalWithPrecision(math.Abs(d.Value), d.Precision)), nil
		case types.Quantity:
			d.Value = math.Abs(d.Value)
			return types.Singleton(types.NewQuantity(d)), nil
		default:
			return types.EmptyCollection, nil
		}
	})

	numberFn("ceiling", nil, func(_ *registry.Invocation, v types.Value) (types.Collection, error) {
		n, _ := v.AsNumber()
		return types.Singleton(types.NewInteger(int64(math.Ceil(n)))), nil
	})

	numberFn("floor", nil, func(_ *registry.Invocation, v types.Value) (types.Collection, error) {
		n, _ := v.AsNumber()
		return types.Singleton(types.NewInteger(int64(math.Floor(n)))), nil
	})

	numberFn("truncate", nil, func(_ *registry.Invocation, v types.Value) (types.Collection, error) {
		n, _ := v.AsNumber()
		return types.Singleton(types.NewInteger(int64(math.Trunc(n)))), nil
	})

	numberFn("round", []registry.ArgDescriptor{eagerOptArg("precision", "Integer")},
		func(inv *registry.Invocation, v types.Value) (types.Collection, error) {
			n, _ := v.AsNumber()
			digits := int64(0)
			if len(inv.Args) > 0 {
				p, ok, err := integerArg(inv, 0, "round() precision")
				if err != nil {
					return nil, err
				}
				if ok {
					if p < 0 {
						return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
							"round() precision must not be negative")
					}
					digits = p
				}
			}
			scale := math.Pow(10, float64(digits))
			rounded := math.Round(n*scale) / scale
			if digits == 0 {
				return types.Singleton(types.NewDecimalWithPrecision(rounded, 0)), nil
			}
			return types.Singleton(types.NewDecimalWithPrecision(rounded, int(digits))), nil
		})

	numberFn("exp", nil, func(_ *registry.Invocation, v types.Value) (types.Collection, error) {
		n, _ := v.AsNumber()
		return types.Singleton(types.NewDecimal(math.Exp(n))), nil
	})

	numberFn("ln", nil, func(_ *registry.Invocation, v types.Value) (types.Collection, error) {
		n, _ := v.AsNumber()
		if n <= 0 {
			return types.EmptyCollection, nil
		}
		return types.Singleton(types.NewDecimal(math.Log(n))), nil
	})

	numberFn("log", []registry.ArgDescriptor{eagerArgDesc("base", "Decimal")},
		func(inv *registry.Invocation, v types.Value) (types.Collection, error) {
			n, _ := v.AsNumber()
			baseColl := eagerArg(inv, 0)
			if baseColl.IsEmpty() {
				return types.EmptyCollection, nil
			}
			bv, ok := baseColl.SingleValue()
			if !ok {
				return nil, errors.SingletonRequired(inv.Node, "log() base", len(baseColl))
			}
			base, ok := bv.AsNumber()
			if !ok {
				return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
					"log() base must be numeric, got %s", bv.TypeName())
			}
			if n <= 0 || base <= 0 || base == 1 {
				return types.EmptyCollection, nil
			}
			return types.Singleton(types.NewDecimal(math.Log(n) / math.Log(base))), nil
		})

	numberFn("power", []registry.ArgDescriptor{eagerArgDesc("exponent", "Decimal")},
		func(inv *registry.Invocation, v types.Value) (types.Collection, error) {
			n, _ := v.AsNumber()
			expColl := eagerArg(inv, 0)
			if expColl.IsEmpty() {
				return types.EmptyCollection, nil
			}
			ev, ok := expColl.SingleValue()
			if !ok {
				return nil, errors.SingletonRequired(inv.Node, "power() exponent", len(expColl))
			}
			exponent, ok := ev.AsNumber()
			if !ok {
				return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
					"power() exponent must be numeric, got %s", ev.TypeName())
			}
			result := math.Pow(n, exponent)
			if math.IsNaN(result) || math.IsInf(result, 0) {
				return types.EmptyCollection, nil
			}
			_, baseInt := v.AsInteger()
			_, expInt := ev.AsInteger()
			if baseInt && expInt && result == math.Trunc(result) {
				return types.Singleton(types.NewInteger(int64(result))), nil
			}
			return types.Singleton(types.NewDecimal(result)), nil
		})

	numberFn("sqrt", nil, func(_ *registry.Invocation, v types.Value) (types.Collection, error) {
		n, _ := v.AsNumber()
		if n < 0 {
			return types.EmptyCollection, nil
		}
		return types.Singleton(types.NewDecimal(math.Sqrt(n))), nil
	})
}
