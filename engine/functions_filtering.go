package engine

import (
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
)

func registerFilteringFunctions(reg *registry.Registry) {
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "where",
		Args: []registry.ArgDescriptor{lazyArg("criteria")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			var out types.Collection
			err := iterate(inv, 0, func(item types.Value, result types.Collection) error {
				if value, defined, _ := result.EffectiveBoolean(); defined && value {
					out = append(out, item)
				}
				return nil
			})
			return out, err
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "select",
		Args: []registry.ArgDescriptor{lazyArg("projection")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			var out types.Collection
			err := iterate(inv, 0, func(_ types.Value, result types.Collection) error {
				// Nested collections flatten one level.
				out = append(out, types.Flatten(result)...)
				return nil
			})
			return out, err
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "repeat",
		Args: []registry.ArgDescriptor{lazyArg("projection")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			// Breadth-first expansion with deep-equality dedup; result
			// order is discovery order. Input items are not seeded into
			// the result; they appear only when the projection yields them.
			var out types.Collection
			current := inv.Input
			for len(current) > 0 {
				var next types.Collection
				for i, item := range current {
					itemCtx := inv.Ctx.WithIterator(types.Singleton(item), int64(i))
					produced, err := inv.EvalArg(0, types.Singleton(item), itemCtx)
					if err != nil {
						return nil, err
					}
					for _, p := range types.Flatten(produced) {
						if !out.Contains(p) {
							out = append(out, p)
							next = append(next, p)
						}
					}
				}
				current = next
			}
			return out, nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "ofType",
		Args: []registry.ArgDescriptor{typeArg("type")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			typeName := inv.Args[0].TypeName
			var out types.Collection
			for _, item := range inv.Input {
				out = append(out, castValue(item, typeName, inv.Ctx)...)
			}
			return out, nil
		},
	})
}
