// Package engine evaluates parsed FHIRPath expressions.
//
// The evaluator is a tree walk over ast.Node values producing
// types.Collection results. Operator and function semantics live in
// the operations files (functions_*.go, operators.go) and are
// registered into the shared registry at startup, so the parser, the
// evaluator and user extensions all consult one catalog.
//
// The package exposes the public entry points:
//
//	engine.Evaluate(expr, resource)        one-shot evaluation
//	engine.Compile(expr)                   reusable compiled expression
//	engine.Inspect(expr, resource)         result + AST + diagnostics + traces
//
// Evaluations are self-contained: a compiled Expression is safe for
// concurrent use because every call runs on an independent context.
package engine
