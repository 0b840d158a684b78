package engine

import (
	"fhirpath/errors"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
)

func registerSubsettingFunctions(reg *registry.Registry) {
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "single",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			switch len(inv.Input) {
			case 0:
				return types.EmptyCollection, nil
			case 1:
				return inv.Input, nil
			default:
				return nil, errors.SingletonRequired(inv.Node, "single()", len(inv.Input))
			}
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "first",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			if inv.Input.IsEmpty() {
				return types.EmptyCollection, nil
			}
			return types.Singleton(inv.Input[0]), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "last",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			if inv.Input.IsEmpty() {
				return types.EmptyCollection, nil
			}
			return types.Singleton(inv.Input[len(inv.Input)-1]), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "tail",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			if len(inv.Input) <= 1 {
				return types.EmptyCollection, nil
			}
			return inv.Input[1:], nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "skip",
		Args: []registry.ArgDescriptor{eagerArgDesc("num", "Integer")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			n, ok, err := integerArg(inv, 0, "skip() count")
			if err != nil {
				return nil, err
			}
			if !ok || n <= 0 {
				return inv.Input, nil
			}
			if int(n) >= len(inv.Input) {
				return types.EmptyCollection, nil
			}
			return inv.Input[n:], nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "take",
		Args: []registry.ArgDescriptor{eagerArgDesc("num", "Integer")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			n, ok, err := integerArg(inv, 0, "take() count")
			if err != nil {
				return nil, err
			}
			if !ok || n <= 0 {
				return types.EmptyCollection, nil
			}
			if int(n) >= len(inv.Input) {
				return inv.Input, nil
			}
			return inv.Input[:n], nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "intersect",
		Args: []registry.ArgDescriptor{eagerArgDesc("other", "collection")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			// Deep equality, duplicates removed.
			other := eagerArg(inv, 0)
			var out types.Collection
			for _, item := range inv.Input {
				if other.Contains(item) && !out.Contains(item) {
					out = append(out, item)
				}
			}
			return out, nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "exclude",
		Args: []registry.ArgDescriptor{eagerArgDesc("other", "collection")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			// Preserves duplicates and order of the kept items.
			other := eagerArg(inv, 0)
			var out types.Collection
			for _, item := range inv.Input {
				if !other.Contains(item) {
					out = append(out, item)
				}
			}
			return out, nil
		},
	})
}
