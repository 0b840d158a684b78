package engine

import (
	"time"

	"fhirpath/pkg/ast"
	"fhirpath/pkg/model"
	"fhirpath/pkg/parser"
	"fhirpath/pkg/runtime"
	"fhirpath/pkg/types"
)

// EvalOption configures one evaluation.
type EvalOption func(*evalConfig)

type evalConfig struct {
	variables map[string]types.Collection
	provider  model.Provider
}

// WithVariable binds an environment variable for the evaluation. The
// value is boxed with NewValue rules.
func WithVariable(name string, value interface{}) EvalOption {
	return func(c *evalConfig) {
		if c.variables == nil {
			c.variables = make(map[string]types.Collection)
		}
		switch v := value.(type) {
		case types.Collection:
			c.variables[name] = v
		case []interface{}:
			var coll types.Collection
			for _, item := range v {
				coll = append(coll, types.NewValue(item))
			}
			c.variables[name] = coll
		default:
			c.variables[name] = types.Singleton(types.NewValue(value))
		}
	}
}

// WithModelProvider injects the model oracle for type-aware
// navigation and the is/as/ofType operators.
func WithModelProvider(p model.Provider) EvalOption {
	return func(c *evalConfig) { c.provider = p }
}

// rootCollection boxes a decoded JSON resource (or a slice of them)
// into the evaluation input.
func rootCollection(resource interface{}) types.Collection {
	switch v := resource.(type) {
	case nil:
		return types.EmptyCollection
	case types.Collection:
		return v
	case []interface{}:
		var coll types.Collection
		for _, item := range v {
			coll = append(coll, types.NewValue(item))
		}
		return coll
	default:
		return types.Singleton(types.NewValue(resource))
	}
}

func buildContext(root types.Collection, cfg *evalConfig) *runtime.Context {
	ctx := runtime.NewContext(root)
	if cfg.provider != nil {
		ctx.WithModel(cfg.provider)
	}
	for name, value := range cfg.variables {
		ctx.Vars.Set(name, value)
	}
	return ctx
}

// Evaluate parses and evaluates an expression against a resource in
// one step.
func Evaluate(expression string, resource interface{}, opts ...EvalOption) (types.Collection, error) {
	expr, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return expr.Evaluate(resource, opts...)
}

// Expression is a parsed, reusable evaluator for one FHIRPath
// expression. It is safe for concurrent use: every Evaluate call runs
// on an independent context.
type Expression struct {
	source string
	node   *ast.Node
	eng    *Engine
}

// Compile parses an expression once for repeated evaluation.
func Compile(expression string) (*Expression, error) {
	return CompileWith(New(), expression)
}

// CompileWith compiles against a specific engine (custom registry,
// trace sink or depth limit).
func CompileWith(eng *Engine, expression string) (*Expression, error) {
	node, err := parser.Parse(expression)
	if err != nil {
		return nil, err
	}
	return &Expression{source: expression, node: node, eng: eng}, nil
}

// Source returns the original expression text.
func (e *Expression) Source() string {
	return e.source
}

// AST returns the parsed tree.
func (e *Expression) AST() *ast.Node {
	return e.node
}

// Evaluate runs the compiled expression against a resource.
func (e *Expression) Evaluate(resource interface{}, opts ...EvalOption) (types.Collection, error) {
	cfg := &evalConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	root := rootCollection(resource)
	return e.eng.Evaluate(e.node, root, buildContext(root, cfg))
}

// InspectResult is the debug surface: the result plus timing, the AST,
// diagnostics and trace captures.
type InspectResult struct {
	Result   types.Collection
	Duration time.Duration
	AST      *ast.Node
	Errors   []*parser.Diagnostic
	Warnings []*parser.Diagnostic
	Traces   []TraceEntry
	// Err is the evaluation error, re-exposed after being recorded.
	Err error
}

// Inspect evaluates with full diagnostics and trace capture. Parse
// errors are reported in the result rather than failing the call;
// evaluation errors are recorded and also returned.
func Inspect(expression string, resource interface{}, opts ...EvalOption) (*InspectResult, error) {
	cfg := &evalConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	res := &InspectResult{}
	start := time.Now()
	parsed, err := parser.ParseWithOptions(expression, parser.Options{
		Mode:         parser.ModeLSP,
		CursorOffset: -1,
	})
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}
	res.AST = parsed.AST
	for _, d := range parsed.Errors {
		if d.Severity == parser.SeverityWarning {
			res.Warnings = append(res.Warnings, d)
		} else {
			res.Errors = append(res.Errors, d)
		}
	}
	if parsed.HasErrors() {
		res.Duration = time.Since(start)
		return res, nil
	}

	eng := New()
	root := rootCollection(resource)
	out, traces, evalErr := eng.EvaluateWithTraces(parsed.AST, root, buildContext(root, cfg))
	res.Duration = time.Since(start)
	res.Result = out
	res.Traces = traces
	res.Err = evalErr
	return res, evalErr
}
