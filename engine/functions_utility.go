package engine

import (
	"time"

	"fhirpath/errors"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
)

func registerUtilityFunctions(reg *registry.Registry) {
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "not",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			t, err := ternaryOperand(inv.Input, inv.Node)
			if err != nil {
				return nil, err
			}
			return t.Not().ToCollection(), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "trace",
		Args: []registry.ArgDescriptor{
			eagerArgDesc("name", "String"),
			lazyOptArg("projection"),
		},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			name, _, err := stringArg(inv, 0, "trace() name")
			if err != nil {
				return nil, err
			}
			logged := inv.Input
			if len(inv.Args) > 1 {
				projected, err := inv.EvalArg(1, inv.Input, inv.Ctx)
				if err != nil {
					return nil, err
				}
				logged = projected
			}
			if r, ok := inv.Evaluator.(*run); ok {
				snapshot := append(types.Collection(nil), logged...)
				r.trace(TraceEntry{Name: name, Values: snapshot, Timestamp: time.Now()})
			}
			// Identity: the input passes through untouched.
			return inv.Input, nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "now",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			t := time.Now()
			_, offsetSecs := t.Zone()
			offset := offsetSecs / 60
			return types.Singleton(types.Value{Data: types.DateTime{
				Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
				Hour: t.Hour(), Minute: t.Minute(), Sec: t.Second(),
				Millisecond: t.Nanosecond() / int(time.Millisecond),
				Offset:      &offset,
				Precision:   types.PrecMillisecond,
			}}), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "today",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			t := time.Now()
			return types.Singleton(types.Value{Data: types.Date{
				Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
				Precision: types.PrecDay,
			}}), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "timeOfDay",
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			t := time.Now()
			return types.Singleton(types.Value{Data: types.Time{
				Hour: t.Hour(), Minute: t.Minute(), Sec: t.Second(),
				Millisecond: t.Nanosecond() / int(time.Millisecond),
				Precision:   types.PrecMillisecond,
			}}), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "defineVariable",
		Args: []registry.ArgDescriptor{
			eagerArgDesc("name", "String"),
			lazyOptArg("value"),
		},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			name, ok, err := stringArg(inv, 0, "defineVariable() name")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
					"defineVariable() requires a name")
			}
			value := inv.Input
			if len(inv.Args) > 1 {
				value, err = inv.EvalArg(1, inv.Input, inv.Ctx)
				if err != nil {
					return nil, err
				}
			}
			// The definition lands in the shared scope so the rest of
			// the dot chain sees it; the input passes through.
			if err := inv.Ctx.DefineVariable(name, value); err != nil {
				return nil, errors.NewAt(errors.CodeVariableRedefined, inv.Node, "%v", err)
			}
			return inv.Input, nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "aggregate",
		Args: []registry.ArgDescriptor{
			lazyArg("aggregator"),
			lazyOptArg("init"),
		},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			total := types.EmptyCollection
			if len(inv.Args) > 1 {
				init, err := inv.EvalArg(1, inv.Input, inv.Ctx)
				if err != nil {
					return nil, err
				}
				total = init
			}
			for i, item := range inv.Input {
				itemCtx := inv.Ctx.WithIterator(types.Singleton(item), int64(i)).WithTotal(total)
				next, err := inv.EvalArg(0, types.Singleton(item), itemCtx)
				if err != nil {
					return nil, err
				}
				total = next
			}
			return total, nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "is",
		Args: []registry.ArgDescriptor{typeArg("type")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			if inv.Input.IsEmpty() {
				return types.EmptyCollection, nil
			}
			v, ok := inv.Input.SingleValue()
			if !ok {
				return nil, errors.SingletonRequired(inv.Node, "is()", len(inv.Input))
			}
			return types.BooleanCollection(itemIsType(v, inv.Args[0].TypeName, inv.Ctx)), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "as",
		Args: []registry.ArgDescriptor{typeArg("type")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			if inv.Input.IsEmpty() {
				return types.EmptyCollection, nil
			}
			v, ok := inv.Input.SingleValue()
			if !ok {
				return nil, errors.SingletonRequired(inv.Node, "as()", len(inv.Input))
			}
			return castValue(v, inv.Args[0].TypeName, inv.Ctx), nil
		},
	})

	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name:           "hasValue",
		PropagateEmpty: true,
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			v, ok := inv.Input.SingleValue()
			if !ok {
				return types.BooleanCollection(false), nil
			}
			return types.BooleanCollection(!v.IsObject() && v.Data != nil), nil
		},
	})
}
