package engine

import (
	"fhirpath/errors"
	"fhirpath/pkg/ast"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/runtime"
	"fhirpath/pkg/types"
)

// Install binds the operator evaluators and registers every built-in
// function into the registry. It runs once against the default
// registry from Engine construction; embedders with custom registries
// call it explicitly.
func Install(reg *registry.Registry) {
	bindOperators(reg)
	registerExistenceFunctions(reg)
	registerFilteringFunctions(reg)
	registerSubsettingFunctions(reg)
	registerCombiningFunctions(reg)
	registerConversionFunctions(reg)
	registerStringFunctions(reg)
	registerMathFunctions(reg)
	registerNavigationFunctions(reg)
	registerUtilityFunctions(reg)
}

// evalFunction resolves the callee in the registry, prepares arguments
// per their declared modes, enforces arity, input-type and
// empty-propagation, and invokes the entry's evaluator.
func (r *run) evalFunction(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, error) {
	if node.Target == nil {
		return nil, errors.NewAt(errors.CodeInvalidSyntax, node, "call without a callee")
	}
	name := node.Target.Name
	entry, ok := r.eng.reg.Function(name)
	if !ok {
		return nil, errors.NewAt(errors.CodeUnknownFunction, node, "unknown function %s()", name)
	}

	got := len(node.Args)
	if got < entry.MinArity() || got > entry.MaxArity() {
		return nil, errors.WrongArgumentCount(node, name, entry.MinArity(), entry.MaxArity(), got)
	}

	if entry.PropagateEmpty && input.IsEmpty() {
		return types.EmptyCollection, nil
	}
	if err := checkInputType(entry, node, input); err != nil {
		return nil, err
	}

	args := make([]registry.Arg, got)
	for i, argNode := range node.Args {
		desc := entry.Args[i]
		switch desc.Mode {
		case registry.ArgLazy:
			args[i] = registry.Arg{Mode: registry.ArgLazy, Node: argNode}
		case registry.ArgTypeOnly:
			typeName, err := typeNameOf(argNode)
			if err != nil {
				return nil, err
			}
			args[i] = registry.Arg{Mode: registry.ArgTypeOnly, TypeName: typeName}
		default:
			value, err := r.Eval(argNode, input, ctx)
			if err != nil {
				return nil, err
			}
			args[i] = registry.Arg{Mode: registry.ArgEager, Value: value}
		}
	}

	out, err := entry.Call(&registry.Invocation{
		Evaluator: r,
		Ctx:       ctx,
		Input:     input,
		Node:      node,
		Args:      args,
	})
	if err != nil {
		return nil, withRange(err, node)
	}
	return out, nil
}

// checkInputType enforces a function's declared focus type on
// singleton inputs; string functions surface the dedicated code.
func checkInputType(entry *registry.FunctionEntry, node *ast.Node, input types.Collection) error {
	if entry.InputType == "" || input.IsEmpty() {
		return nil
	}
	if len(input) > 1 {
		return errors.SingletonRequired(node, entry.Name+"()", len(input))
	}
	v := input[0]
	switch entry.InputType {
	case "String":
		if _, ok := v.AsString(); !ok {
			return errors.NewAt(errors.CodeStringOpOnNonString, node,
				"%s() requires a String focus, got %s", entry.Name, v.TypeName())
		}
	case "Number":
		if _, ok := v.AsNumber(); !ok {
			if _, isQ := v.AsQuantity(); !isQ {
				return errors.NewAt(errors.CodeInvalidOperandType, node,
					"%s() requires a numeric focus, got %s", entry.Name, v.TypeName())
			}
		}
	}
	return nil
}

// typeNameOf extracts the bare type name from a type-only argument:
// an identifier, a dotted qualifier chain, or a string literal.
func typeNameOf(node *ast.Node) (string, error) {
	switch node.Kind {
	case ast.KindIdentifier, ast.KindTypeOrIdentifier:
		return node.Name, nil
	case ast.KindLiteral:
		if node.LitKind == ast.LitString {
			return node.Text, nil
		}
	case ast.KindBinary:
		if node.Op == "." {
			left, errL := typeNameOf(node.Left)
			right, errR := typeNameOf(node.Right)
			if errL == nil && errR == nil {
				return left + "." + right, nil
			}
		}
	case ast.KindCursor:
		return "", nil
	}
	return "", errors.NewAt(errors.CodeInvalidOperandType, node, "expected a type name")
}

// Argument access helpers shared by the operation files.

func eagerArg(inv *registry.Invocation, i int) types.Collection {
	if i >= len(inv.Args) {
		return types.EmptyCollection
	}
	return inv.Args[i].Value
}

func stringArg(inv *registry.Invocation, i int, what string) (string, bool, error) {
	c := eagerArg(inv, i)
	if c.IsEmpty() {
		return "", false, nil
	}
	v, ok := c.SingleValue()
	if !ok {
		return "", false, errors.SingletonRequired(inv.Node, what, len(c))
	}
	s, ok := v.AsString()
	if !ok {
		return "", false, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
			"%s must be a String, got %s", what, v.TypeName())
	}
	return s, true, nil
}

func integerArg(inv *registry.Invocation, i int, what string) (int64, bool, error) {
	c := eagerArg(inv, i)
	if c.IsEmpty() {
		return 0, false, nil
	}
	v, ok := c.SingleValue()
	if !ok {
		return 0, false, errors.SingletonRequired(inv.Node, what, len(c))
	}
	n, ok := v.AsInteger()
	if !ok {
		return 0, false, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
			"%s must be an Integer, got %s", what, v.TypeName())
	}
	return n, true, nil
}

// singletonInput unwraps a function's focus that must hold at most one
// item; empty focus returns ok=false.
func singletonInput(inv *registry.Invocation, what string) (types.Value, bool, error) {
	if inv.Input.IsEmpty() {
		return types.Value{}, false, nil
	}
	v, ok := inv.Input.SingleValue()
	if !ok {
		return types.Value{}, false, errors.SingletonRequired(inv.Node, what, len(inv.Input))
	}
	return v, true, nil
}

// iterate runs a lazy criteria/projection argument once per input item
// with $this/$index bound, yielding each item's result to fn.
func iterate(inv *registry.Invocation, argIndex int, fn func(item types.Value, result types.Collection) error) error {
	for i, item := range inv.Input {
		itemCtx := inv.Ctx.WithIterator(types.Singleton(item), int64(i))
		result, err := inv.EvalArg(argIndex, types.Singleton(item), itemCtx)
		if err != nil {
			return err
		}
		if err := fn(item, result); err != nil {
			return err
		}
	}
	return nil
}

// Descriptor shorthands used across the operation files.

func lazyArg(name string) registry.ArgDescriptor {
	return registry.ArgDescriptor{Name: name, Type: "expression", Mode: registry.ArgLazy}
}

func lazyOptArg(name string) registry.ArgDescriptor {
	return registry.ArgDescriptor{Name: name, Type: "expression", Mode: registry.ArgLazy, Optional: true}
}

func typeArg(name string) registry.ArgDescriptor {
	return registry.ArgDescriptor{Name: name, Type: "TypeSpecifier", Mode: registry.ArgTypeOnly}
}

func eagerArgDesc(name, typ string) registry.ArgDescriptor {
	return registry.ArgDescriptor{Name: name, Type: typ}
}

func eagerOptArg(name, typ string) registry.ArgDescriptor {
	return registry.ArgDescriptor{Name: name, Type: typ, Optional: true}
}
