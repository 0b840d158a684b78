package engine

import (
	"sync"
	"time"

	"fhirpath/errors"
	"fhirpath/pkg/ast"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/runtime"
	"fhirpath/pkg/types"
)

// TraceEntry is one trace() capture.
type TraceEntry struct {
	Name      string
	Values    types.Collection
	Timestamp time.Time
	Depth     int
}

// TraceSink receives trace() captures as they happen.
type TraceSink func(entry TraceEntry)

// Engine evaluates parsed expressions. An Engine is safe to reuse
// across expressions; each Evaluate call runs on its own state.
type Engine struct {
	reg      *registry.Registry
	maxDepth int
	sink     TraceSink
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry selects a non-default registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) { e.reg = reg }
}

// WithMaxDepth caps evaluation recursion.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) { e.maxDepth = depth }
}

// WithTraceSink receives trace() captures.
func WithTraceSink(sink TraceSink) Option {
	return func(e *Engine) { e.sink = sink }
}

const defaultMaxDepth = 512

var installOnce sync.Once

// New creates an engine, installing the built-in operations into the
// default registry on first use.
func New(opts ...Option) *Engine {
	installOnce.Do(func() {
		Install(registry.Default())
	})
	e := &Engine{reg: registry.Default(), maxDepth: defaultMaxDepth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the engine's registry for extension registration.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Evaluate walks the AST over the root input and returns the result
// collection. The context carries caller variables and the model
// provider; nil means an empty context.
func (e *Engine) Evaluate(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, error) {
	if ctx == nil {
		ctx = runtime.NewContext(input)
	}
	r := &run{eng: e}
	return r.Eval(node, input, ctx)
}

// EvaluateWithTraces additionally returns the trace() captures made
// during the walk.
func (e *Engine) EvaluateWithTraces(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, []TraceEntry, error) {
	if ctx == nil {
		ctx = runtime.NewContext(input)
	}
	r := &run{eng: e}
	out, err := r.Eval(node, input, ctx)
	return out, r.traces, err
}

// run is the per-evaluation state: recursion depth and trace capture.
// It implements registry.Evaluator so lazy functions can drive the
// walk from inside.
type run struct {
	eng    *Engine
	depth  int
	traces []TraceEntry
}

// Eval evaluates one node against an input collection.
func (r *run) Eval(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, error) {
	if node == nil {
		return types.EmptyCollection, nil
	}
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > r.eng.maxDepth {
		return nil, errors.NewAt(errors.CodeRecursionLimit, node,
			"expression nesting exceeds %d levels", r.eng.maxDepth)
	}

	switch node.Kind {
	case ast.KindLiteral:
		return r.evalLiteral(node)
	case ast.KindQuantity:
		return types.Singleton(types.NewQuantity(types.Quantity{
			Value:     node.Num,
			Precision: literalPrecision(node),
			Unit:      node.Unit,
			Calendar:  node.Calendar,
		})), nil
	case ast.KindIdentifier:
		return r.evalIdentifier(node, input, ctx), nil
	case ast.KindTypeOrIdentifier:
		return r.evalTypeOrIdentifier(node, input, ctx), nil
	case ast.KindVariable:
		return r.evalVariable(node, ctx)
	case ast.KindBinary:
		return r.evalBinary(node, input, ctx)
	case ast.KindUnary:
		return r.evalUnary(node, input, ctx)
	case ast.KindFunction:
		return r.evalFunction(node, input, ctx)
	case ast.KindIndex:
		return r.evalIndex(node, input, ctx)
	case ast.KindCollection:
		return r.evalCollection(node, input, ctx)
	case ast.KindMembershipTest:
		return r.evalTypeTest(node, input, ctx, false)
	case ast.KindTypeCast:
		return r.evalTypeTest(node, input, ctx, true)
	case ast.KindError:
		return nil, errors.NewAt(errors.CodeInvalidSyntax, node,
			"cannot evaluate an expression with syntax errors")
	case ast.KindCursor:
		return types.EmptyCollection, nil
	default:
		return nil, errors.NewAt(errors.CodeInvalidSyntax, node,
			"unknown node kind %s", node.Kind)
	}
}

func literalPrecision(node *ast.Node) int {
	if node.IsInteger {
		return 0
	}
	return node.Precision
}

func (r *run) evalLiteral(node *ast.Node) (types.Collection, error) {
	switch node.LitKind {
	case ast.LitBoolean:
		return types.BooleanCollection(node.Bool), nil
	case ast.LitNumber:
		if node.IsInteger {
			return types.Singleton(types.NewInteger(int64(node.Num))), nil
		}
		return types.Singleton(types.NewDecimalWithPrecision(node.Num, node.Precision)), nil
	case ast.LitString:
		return types.Singleton(types.NewString(node.Text)), nil
	case ast.LitDate:
		d, err := types.ParseDate(node.Text)
		if err != nil {
			return nil, errors.NewAt(errors.CodeInvalidSyntax, node, "%v", err)
		}
		return types.Singleton(types.Value{Data: d}), nil
	case ast.LitDateTime:
		dt, err := types.ParseDateTime(node.Text)
		if err != nil {
			return nil, errors.NewAt(errors.CodeInvalidSyntax, node, "%v", err)
		}
		return types.Singleton(types.Value{Data: dt}), nil
	case ast.LitTime:
		t, err := types.ParseTime(node.Text)
		if err != nil {
			return nil, errors.NewAt(errors.CodeInvalidSyntax, node, "%v", err)
		}
		return types.Singleton(types.Value{Data: t}), nil
	default:
		return types.EmptyCollection, nil
	}
}

// evalIdentifier collects the named property from every object in the
// input, flattening arrays and threading primitive-element siblings.
func (r *run) evalIdentifier(node *ast.Node, input types.Collection, ctx *runtime.Context) types.Collection {
	return navigate(input, node.Name, ctx)
}

// evalTypeOrIdentifier resolves the uppercase-initial ambiguity: a
// name matching the item's runtime type acts as a type filter (the
// `Patient.name` root step); otherwise it navigates as a property.
func (r *run) evalTypeOrIdentifier(node *ast.Node, input types.Collection, ctx *runtime.Context) types.Collection {
	var matched types.Collection
	for _, item := range input {
		if itemIsType(item, node.Name, ctx) {
			matched = append(matched, item)
		}
	}
	if len(matched) > 0 {
		return matched
	}
	return navigate(input, node.Name, ctx)
}

func (r *run) evalVariable(node *ast.Node, ctx *runtime.Context) (types.Collection, error) {
	if node.Env {
		v, ok := ctx.LookupVariable(node.Name)
		if !ok {
			return nil, errors.NewAt(errors.CodeUnknownVariable, node,
				"undefined environment variable %%%s", node.Name)
		}
		return v, nil
	}
	switch node.Name {
	case "this":
		return ctx.This(), nil
	case "index":
		idx, ok := ctx.Index()
		if !ok {
			return nil, errors.NewAt(errors.CodeUnknownVariable, node,
				"$index is only defined inside iteration functions")
		}
		return types.Singleton(types.NewInteger(idx)), nil
	case "total":
		total, ok := ctx.Total()
		if !ok {
			return nil, errors.NewAt(errors.CodeUnknownVariable, node,
				"$total is only defined inside aggregate()")
		}
		return total, nil
	default:
		return nil, errors.NewAt(errors.CodeUnknownVariable, node,
			"unknown special variable $%s", node.Name)
	}
}

func (r *run) evalBinary(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, error) {
	switch node.Op {
	case ".":
		// The right side runs with the left's output as input and the
		// same context reference, which is what makes defineVariable
		// visible down the chain.
		left, err := r.Eval(node.Left, input, ctx)
		if err != nil {
			return nil, err
		}
		return r.Eval(node.Right, left, ctx)

	case "and", "or":
		return r.evalShortCircuit(node, input, ctx)
	}

	left, err := r.Eval(node.Left, input, ctx)
	if err != nil {
		return nil, err
	}
	right, err := r.Eval(node.Right, input, ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := r.eng.reg.Operator(node.Op)
	if !ok || entry.Apply == nil {
		return nil, errors.NewAt(errors.CodeUnknownOperator, node,
			"unknown operator %q", node.Op)
	}
	out, err := entry.Apply(ctx, left, right)
	if err != nil {
		return nil, withRange(err, node)
	}
	return out, nil
}

// evalShortCircuit implements `and`/`or` without evaluating the right
// side when the left already decides the result.
func (r *run) evalShortCircuit(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, error) {
	left, err := r.Eval(node.Left, input, ctx)
	if err != nil {
		return nil, err
	}
	lt, err := ternaryOperand(left, node.Left)
	if err != nil {
		return nil, err
	}
	if node.Op == "and" && lt == types.TernaryFalse {
		return types.BooleanCollection(false), nil
	}
	if node.Op == "or" && lt == types.TernaryTrue {
		return types.BooleanCollection(true), nil
	}
	right, err := r.Eval(node.Right, input, ctx)
	if err != nil {
		return nil, err
	}
	rt, err := ternaryOperand(right, node.Right)
	if err != nil {
		return nil, err
	}
	if node.Op == "and" {
		return lt.And(rt).ToCollection(), nil
	}
	return lt.Or(rt).ToCollection(), nil
}

func (r *run) evalUnary(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, error) {
	operand, err := r.Eval(node.Left, input, ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := r.eng.reg.UnaryOperator(node.Op)
	if !ok || entry.ApplyUnary == nil {
		return nil, errors.NewAt(errors.CodeUnknownOperator, node,
			"unknown unary operator %q", node.Op)
	}
	out, err := entry.ApplyUnary(ctx, operand)
	if err != nil {
		return nil, withRange(err, node)
	}
	return out, nil
}

func (r *run) evalIndex(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, error) {
	coll, err := r.Eval(node.Left, input, ctx)
	if err != nil {
		return nil, err
	}
	idxColl, err := r.Eval(node.Right, input, ctx)
	if err != nil {
		return nil, err
	}
	if idxColl.IsEmpty() {
		return types.EmptyCollection, nil
	}
	v, ok := idxColl.SingleValue()
	if !ok {
		return nil, errors.SingletonRequired(node.Right, "indexer", len(idxColl))
	}
	idx, ok := v.AsInteger()
	if !ok {
		return nil, errors.NewAt(errors.CodeInvalidOperandType, node.Right,
			"indexer requires an integer, got %s", v.TypeName())
	}
	if idx < 0 || int(idx) >= len(coll) {
		return types.EmptyCollection, nil
	}
	return types.Singleton(coll[idx]), nil
}

func (r *run) evalCollection(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, error) {
	var out types.Collection
	for _, el := range node.Args {
		v, err := r.Eval(el, input, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	return out, nil
}

// evalTypeTest covers the operator forms of `is` and `as`.
func (r *run) evalTypeTest(node *ast.Node, input types.Collection, ctx *runtime.Context, cast bool) (types.Collection, error) {
	operand, err := r.Eval(node.Left, input, ctx)
	if err != nil {
		return nil, err
	}
	if operand.IsEmpty() {
		return types.EmptyCollection, nil
	}
	if len(operand) > 1 {
		what := "is"
		if cast {
			what = "as"
		}
		return nil, errors.SingletonRequired(node, what+" operator", len(operand))
	}
	if cast {
		return castValue(operand[0], node.TypeName, ctx), nil
	}
	return types.BooleanCollection(itemIsType(operand[0], node.TypeName, ctx)), nil
}

// ternaryOperand lifts a boolean operand collection into three-valued
// logic; multi-item operands are a singleton error.
func ternaryOperand(c types.Collection, node *ast.Node) (types.Ternary, error) {
	value, defined, notSingle := c.EffectiveBoolean()
	if notSingle {
		return types.TernaryUnknown, errors.SingletonRequired(node, "boolean operator", len(c))
	}
	if !defined {
		return types.TernaryUnknown, nil
	}
	return types.TernaryOf(value), nil
}

// withRange pins an unranged evaluation error to the node that raised
// it.
func withRange(err error, node *ast.Node) error {
	if ee, ok := errors.AsEvalError(err); ok {
		empty := ast.Range{}
		if ee.Range == empty {
			ee.Range = node.Rng
		}
	}
	return err
}

func (r *run) trace(entry TraceEntry) {
	entry.Depth = r.depth
	r.traces = append(r.traces, entry)
	if r.eng.sink != nil {
		r.eng.sink(entry)
	}
}
