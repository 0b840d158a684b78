package engine

import (
	"fhirpath/errors"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
	"fhirpath/pkg/ucum"
)

func registerConversionFunctions(reg *registry.Registry) {
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "iif",
		Args: []registry.ArgDescriptor{
			lazyArg("criterion"),
			lazyArg("true-result"),
			lazyOptArg("otherwise-result"),
		},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			if len(inv.Input) > 1 {
				return nil, errors.SingletonRequired(inv.Node, "iif()", len(inv.Input))
			}
			cond, err := inv.EvalArg(0, inv.Input, inv.Ctx)
			if err != nil {
				return nil, err
			}
			value, defined, notSingle := cond.EffectiveBoolean()
			if notSingle {
				return nil, errors.SingletonRequired(inv.Node, "iif() criterion", len(cond))
			}
			if defined && value {
				return inv.EvalArg(1, inv.Input, inv.Ctx)
			}
			// False or empty criterion; a missing else yields empty.
			if len(inv.Args) < 3 {
				return types.EmptyCollection, nil
			}
			return inv.EvalArg(2, inv.Input, inv.Ctx)
		},
	})

	// conversion registers a toX/convertsToX pair over one converter.
	conversion := func(name string, convert func(types.Value) (types.Value, bool)) {
		reg.RegisterBuiltin(&registry.FunctionEntry{
			Name:           "to" + name,
			PropagateEmpty: true,
			Call: func(inv *registry.Invocation) (types.Collection, error) {
				v, ok, err := singletonInput(inv, "to"+name+"()")
				if err != nil || !ok {
					return types.EmptyCollection, err
				}
				out, ok := convert(v)
				if !ok {
					return types.EmptyCollection, nil
				}
				return types.Singleton(out), nil
			},
		})
		reg.RegisterBuiltin(&registry.FunctionEntry{
			Name:           "convertsTo" + name,
			PropagateEmpty: true,
			Call: func(inv *registry.Invocation) (types.Collection, error) {
				v, ok, err := singletonInput(inv, "convertsTo"+name+"()")
				if err != nil || !ok {
					return types.EmptyCollection, err
				}
				_, convertible := convert(v)
				return types.BooleanCollection(convertible), nil
			},
		})
	}

	conversion("Boolean", func(v types.Value) (types.Value, bool) {
		b, ok := types.ToBoolean(v)
		return types.NewBoolean(b), ok
	})
	conversion("Integer", func(v types.Value) (types.Value, bool) {
		i, ok := types.ToInteger(v)
		return types.NewInteger(i), ok
	})
	conversion("Decimal", func(v types.Value) (types.Value, bool) {
		d, ok := types.ToDecimal(v)
		return types.Value{Data: d}, ok
	})
	conversion("String", func(v types.Value) (types.Value, bool) {
		s, ok := types.ToStringValue(v)
		return types.NewString(s), ok
	})
	// toQuantity takes an optional target unit and converts into it.
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name:           "toQuantity",
		Args:           []registry.ArgDescriptor{eagerOptArg("unit", "String")},
		PropagateEmpty: true,
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			v, ok, err := singletonInput(inv, "toQuantity()")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			q, ok := types.ToQuantityValue(v)
			if !ok {
				return types.EmptyCollection, nil
			}
			if len(inv.Args) > 0 {
				unit, present, err := stringArg(inv, 0, "toQuantity() unit")
				if err != nil {
					return nil, err
				}
				if present {
					target := types.Quantity{Unit: unit, Calendar: ucum.IsCalendarUnit(unit)}
					if target.Calendar {
						target.Unit = ucum.Singularize(unit)
					}
					converted, err := ucum.Convert(q.Value, q.Unit, q.Calendar, target.Unit, target.Calendar)
					if err != nil {
						return types.EmptyCollection, nil
					}
					q = types.Quantity{Value: converted, Precision: -1, Unit: target.Unit, Calendar: target.Calendar}
				}
			}
			return types.Singleton(types.NewQuantity(q)), nil
		},
	})
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name:           "convertsToQuantity",
		PropagateEmpty: true,
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			v, ok, err := singletonInput(inv, "convertsToQuantity()")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			_, convertible := types.ToQuantityValue(v)
			return types.BooleanCollection(convertible), nil
		},
	})
	conversion("Date", func(v types.Value) (types.Value, bool) {
		d, ok := types.ToDateValue(v)
		return types.Value{Data: d}, ok
	})
	conversion("DateTime", func(v types.Value) (types.Value, bool) {
		dt, ok := types.ToDateTimeValue(v)
		return types.Value{Data: dt}, ok
	})
	conversion("Time", func(v types.Value) (types.Value, bool) {
		t, ok := types.ToTimeValue(v)
		return types.Value{Data: t}, ok
	})
}
