package engine

import (
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
)

func registerCombiningFunctions(reg *registry.Registry) {
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "union",
		Args: []registry.ArgDescriptor{eagerArgDesc("other", "collection")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			// Same semantics as the | operator: deep-equality dedup.
			return types.Union(inv.Input, eagerArg(inv, 0)), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "combine",
		Args: []registry.ArgDescriptor{eagerArgDesc("other", "collection")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			// Plain concatenation, duplicates kept.
			return types.Append(inv.Input, eagerArg(inv, 0)), nil
		},
	})
}
