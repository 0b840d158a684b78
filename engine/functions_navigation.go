package engine

import (
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
)

func registerNavigationFunctions(reg *registry.Registry) {
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "children",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			return childValues(inv.Input), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "descendants",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			// Breadth-first repeat(children()); the input itself is not
			// included.
			var out types.Collection
			current := inv.Input
			for len(current) > 0 {
				next := childValues(current)
				out = append(out, next...)
				current = next
			}
			return out, nil
		},
	})
}
