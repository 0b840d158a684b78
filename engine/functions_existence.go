package engine

import (
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
)

func registerExistenceFunctions(reg *registry.Registry) {
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "empty",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			return types.BooleanCollection(inv.Input.IsEmpty()), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "exists",
		Args: []registry.ArgDescriptor{lazyOptArg("criteria")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			if len(inv.Args) == 0 {
				return types.BooleanCollection(!inv.Input.IsEmpty()), nil
			}
			found := false
			err := iterate(inv, 0, func(_ types.Value, result types.Collection) error {
				if value, defined, _ := result.EffectiveBoolean(); defined && value {
					found = true
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return types.BooleanCollection(found), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "all",
		Args: []registry.ArgDescriptor{lazyArg("criteria")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			// Vacuously true on empty input.
			all := true
			err := iterate(inv, 0, func(_ types.Value, result types.Collection) error {
				value, defined, _ := result.EffectiveBoolean()
				if !defined || !value {
					all = false
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return types.BooleanCollection(all), nil
		},
	})

	boolAggregate := func(name string, want bool, every bool) {
		reg.RegisterBuiltin(&registry.FunctionEntry{
			Name: name,
			Call: func(inv *registry.Invocation) (types.Collection, error) {
				result := every
				for _, item := range inv.Input {
					b, ok := item.AsBoolean()
					if !ok {
						continue
					}
					if every {
						if b != want {
							result = false
						}
					} else if b == want {
						result = true
					}
				}
				return types.BooleanCollection(result), nil
			},
		})
	}
	boolAggregate("allTrue", true, true)
	boolAggregate("anyTrue", true, false)
	boolAggregate("allFalse", false, true)
	boolAggregate("anyFalse", false, false)

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "subsetOf",
		Args: []registry.ArgDescriptor{eagerArgDesc("other", "collection")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			other := eagerArg(inv, 0)
			for _, item := range inv.Input {
				if !other.Contains(item) {
					return types.BooleanCollection(false), nil
				}
			}
			return types.BooleanCollection(true), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "supersetOf",
		Args: []registry.ArgDescriptor{eagerArgDesc("other", "collection")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			for _, item := range eagerArg(inv, 0) {
				if !inv.Input.Contains(item) {
					return types.BooleanCollection(false), nil
				}
			}
			return types.BooleanCollection(true), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "count",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			return types.Singleton(types.NewInteger(int64(len(inv.Input)))), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "distinct",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			return inv.Input.Distinct(), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "isDistinct",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			return types.BooleanCollection(len(inv.Input.Distinct()) == len(inv.Input)), nil
		},
	})
}
