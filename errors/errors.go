// Package errors defines the structured evaluation errors the engine
// raises. Every error carries an enumerated code, a severity and the
// source range of the expression fragment that failed.
package errors

import (
	"fmt"

	"fhirpath/pkg/ast"
)

// Code identifies the failure class.
type Code string

const (
	CodeWrongArgumentCount  Code = "wrong-argument-count"
	CodeSingletonRequired   Code = "singleton-required"
	CodeStringOpOnNonString Code = "string-operation-on-non-string"
	CodeInvalidOperandType  Code = "invalid-operand-type"
	CodeIncompatibleUnits   Code = "incompatible-units"
	CodeUnknownFunction     Code = "unknown-function"
	CodeUnknownOperator     Code = "unknown-operator"
	CodeUnknownVariable     Code = "unknown-variable"
	CodeVariableRedefined   Code = "variable-redefined"
	CodeRecursionLimit      Code = "recursion-limit"
	CodeInvalidSyntax       Code = "invalid-syntax"
	CodeExtension           Code = "extension-error"
)

// Severity grades an error.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// EvalError is a structured evaluation error.
type EvalError struct {
	Code     Code
	Message  string
	Severity Severity
	Range    ast.Range
	Cause    error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Range.End.Offset > 0 || e.Range.Start.Line > 0 {
		return fmt.Sprintf("[%s] %s at line %d, column %d",
			e.Code, e.Message, e.Range.Start.Line, e.Range.Start.Column)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *EvalError) Unwrap() error {
	return e.Cause
}

// Is matches on code so errors.Is works with sentinel comparisons.
func (e *EvalError) Is(target error) bool {
	if other, ok := target.(*EvalError); ok {
		return e.Code == other.Code
	}
	return false
}

// WithRange attaches the source range of the failing node.
func (e *EvalError) WithRange(rng ast.Range) *EvalError {
	e.Range = rng
	return e
}

// WithSeverity overrides the default error severity.
func (e *EvalError) WithSeverity(s Severity) *EvalError {
	e.Severity = s
	return e
}

// Wrap records the underlying cause.
func (e *EvalError) Wrap(err error) *EvalError {
	e.Cause = err
	return e
}

// New creates an evaluation error.
func New(code Code, format string, args ...interface{}) *EvalError {
	return &EvalError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	}
}

// NewAt creates an evaluation error pinned to a node's range.
func NewAt(code Code, node *ast.Node, format string, args ...interface{}) *EvalError {
	e := New(code, format, args...)
	if node != nil {
		e.Range = node.Rng
	}
	return e
}

// WrongArgumentCount reports an arity violation, formatting exact and
// ranged arities.
func WrongArgumentCount(node *ast.Node, name string, min, max, got int) *EvalError {
	want := fmt.Sprintf("%d", min)
	if max > min {
		want = fmt.Sprintf("%d to %d", min, max)
	}
	return NewAt(CodeWrongArgumentCount, node,
		"function %s expects %s argument(s), got %d", name, want, got)
}

// SingletonRequired reports a multi-item collection where one value is
// required.
func SingletonRequired(node *ast.Node, what string, size int) *EvalError {
	return NewAt(CodeSingletonRequired, node,
		"%s requires a single value, got %d items", what, size)
}

// AsEvalError converts err when it is an EvalError.
func AsEvalError(err error) (*EvalError, bool) {
	e, ok := err.(*EvalError)
	return e, ok
}
