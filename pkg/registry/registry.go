// Package registry is the catalog of FHIRPath operators and
// functions. It is the single source of truth shared by the parser
// (precedence, associativity, keyword status) and the evaluator (which
// evaluator to invoke and how arguments are passed). The default
// registry is populated at startup and is effectively read-only
// afterwards; extension registration refuses built-in collisions.
package registry

import (
	"fmt"
	"sync"

	"fhirpath/pkg/ast"
	"fhirpath/pkg/runtime"
	"fhirpath/pkg/types"
)

// Associativity breaks ties between operators of equal precedence.
type Associativity int

const (
	AssocLeft Associativity = iota
	AssocRight
)

// ArgMode says how the evaluator hands an argument to a function.
type ArgMode int

const (
	// ArgEager arguments are evaluated before the call.
	ArgEager ArgMode = iota
	// ArgLazy arguments arrive as unevaluated AST; the function drives
	// the evaluator itself with per-iteration bindings.
	ArgLazy
	// ArgTypeOnly arguments arrive as a bare type name string.
	ArgTypeOnly
)

// Signature is one typed overload of an operator, metadata consumed by
// static analyzers.
type Signature struct {
	Left   string
	Right  string
	Result string
}

// OperatorFunc applies a binary operator to fully evaluated operands.
type OperatorFunc func(ctx *runtime.Context, left, right types.Collection) (types.Collection, error)

// UnaryFunc applies a unary operator.
type UnaryFunc func(ctx *runtime.Context, operand types.Collection) (types.Collection, error)

// OperatorEntry describes one operator.
type OperatorEntry struct {
	Symbol     string
	Keyword    bool // lexed as an identifier, e.g. "and", "div"
	Category   string
	Precedence int
	Assoc      Associativity
	Unary      bool
	Signatures []Signature
	Apply      OperatorFunc
	ApplyUnary UnaryFunc
}

// ArgDescriptor describes one declared function argument.
type ArgDescriptor struct {
	Name     string
	Optional bool
	Type     string // expected type, or "expression" for lazy args
	Mode     ArgMode
}

// Evaluator is the callback a lazy function uses to evaluate its
// expression arguments with a focus and context of its choosing.
type Evaluator interface {
	Eval(node *ast.Node, input types.Collection, ctx *runtime.Context) (types.Collection, error)
}

// Arg is one actual argument as prepared by the evaluator according to
// the descriptor's mode.
type Arg struct {
	Mode     ArgMode
	Value    types.Collection // ArgEager
	Node     *ast.Node        // ArgLazy
	TypeName string           // ArgTypeOnly
}

// Invocation bundles everything a function evaluator needs.
type Invocation struct {
	Evaluator Evaluator
	Ctx       *runtime.Context
	Input     types.Collection
	Node      *ast.Node // the call node, for diagnostic ranges
	Args      []Arg
}

// EvalArg evaluates the i-th (lazy) argument against the given focus
// and context.
func (inv *Invocation) EvalArg(i int, focus types.Collection, ctx *runtime.Context) (types.Collection, error) {
	return inv.Evaluator.Eval(inv.Args[i].Node, focus, ctx)
}

// FunctionFunc is the concrete semantics of a function.
type FunctionFunc func(inv *Invocation) (types.Collection, error)

// FunctionEntry describes one function.
type FunctionEntry struct {
	Name string
	Args []ArgDescriptor
	// InputType constrains the focus type ("" for any); violations are
	// evaluation errors.
	InputType string
	// PropagateEmpty short-circuits the call to empty on empty input.
	PropagateEmpty bool
	Builtin        bool
	Call           FunctionFunc
}

// MinArity counts the required arguments.
func (f *FunctionEntry) MinArity() int {
	n := 0
	for _, a := range f.Args {
		if !a.Optional {
			n++
		}
	}
	return n
}

// MaxArity counts all declared arguments.
func (f *FunctionEntry) MaxArity() int {
	return len(f.Args)
}

// Registry holds the operator and function tables.
type Registry struct {
	mu        sync.RWMutex
	operators map[string]*OperatorEntry
	unary     map[string]*OperatorEntry
	functions map[string]*FunctionEntry
}

// New creates a registry pre-populated with the language's operator
// metadata. Operator and built-in function evaluators are bound by the
// engine package at startup.
func New() *Registry {
	r := &Registry{
		operators: make(map[string]*OperatorEntry),
		unary:     make(map[string]*OperatorEntry),
		functions: make(map[string]*FunctionEntry),
	}
	r.registerCoreOperators()
	return r
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New()
	})
	return defaultReg
}

// Operator returns the binary operator entry for a symbol or keyword.
func (r *Registry) Operator(symbol string) (*OperatorEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.operators[symbol]
	return e, ok
}

// UnaryOperator returns the unary operator entry for a symbol.
func (r *Registry) UnaryOperator(symbol string) (*OperatorEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.unary[symbol]
	return e, ok
}

// Function returns the function entry for a name.
func (r *Registry) Function(name string) (*FunctionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.functions[name]
	return e, ok
}

// Precedence returns an operator's binding power; 0 for unknown
// symbols.
func (r *Registry) Precedence(symbol string) int {
	if e, ok := r.Operator(symbol); ok {
		return e.Precedence
	}
	return 0
}

// Associativity returns an operator's associativity.
func (r *Registry) Associativity(symbol string) Associativity {
	if e, ok := r.Operator(symbol); ok {
		return e.Assoc
	}
	return AssocLeft
}

// IsBinaryOperator reports whether the symbol names a binary operator.
func (r *Registry) IsBinaryOperator(symbol string) bool {
	_, ok := r.Operator(symbol)
	return ok
}

// IsKeywordOperator reports whether the word is an identifier-shaped
// operator such as "and" or "div".
func (r *Registry) IsKeywordOperator(word string) bool {
	e, ok := r.Operator(word)
	return ok && e.Keyword
}

// IsUnaryOperator reports whether the symbol names a unary operator
// ("not" is reserved for the function form; only arithmetic signs are
// unary symbols in FHIRPath).
func (r *Registry) IsUnaryOperator(symbol string) bool {
	_, ok := r.UnaryOperator(symbol)
	return ok
}

// RegisterOperator installs an extension operator. Replacing a core
// operator is refused.
func (r *Registry) RegisterOperator(entry *OperatorEntry) error {
	if entry.Symbol == "" {
		return fmt.Errorf("operator symbol must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	table := r.operators
	if entry.Unary {
		table = r.unary
	}
	if _, exists := table[entry.Symbol]; exists {
		return fmt.Errorf("operator %q is already registered", entry.Symbol)
	}
	if entry.Precedence <= 0 {
		return fmt.Errorf("operator %q needs a positive precedence", entry.Symbol)
	}
	table[entry.Symbol] = entry
	return nil
}

// CanRegister reports whether a function name is free.
func (r *Registry) CanRegister(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.functions[name]
	return !exists
}

// RegisterFunction installs an extension function. Names colliding
// with a built-in (or a previous extension) are refused.
func (r *Registry) RegisterFunction(entry *FunctionEntry) error {
	if entry.Name == "" {
		return fmt.Errorf("function name must not be empty")
	}
	if entry.Call == nil {
		return fmt.Errorf("function %q has no evaluator", entry.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.functions[entry.Name]; exists {
		if existing.Builtin {
			return fmt.Errorf("function %q is a built-in and cannot be replaced", entry.Name)
		}
		return fmt.Errorf("function %q is already registered", entry.Name)
	}
	r.functions[entry.Name] = entry
	return nil
}

// RegisterBuiltin installs a built-in function, panicking on duplicate
// registration; it runs only from engine init.
func (r *Registry) RegisterBuiltin(entry *FunctionEntry) {
	entry.Builtin = true
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[entry.Name]; exists {
		panic(fmt.Sprintf("registry: duplicate built-in %q", entry.Name))
	}
	r.functions[entry.Name] = entry
}

// BindOperator attaches the evaluator for a core binary operator; it
// runs only from engine init.
func (r *Registry) BindOperator(symbol string, fn OperatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.operators[symbol]
	if !ok {
		panic(fmt.Sprintf("registry: unknown operator %q", symbol))
	}
	e.Apply = fn
}

// BindUnaryOperator attaches the evaluator for a core unary operator.
func (r *Registry) BindUnaryOperator(symbol string, fn UnaryFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.unary[symbol]
	if !ok {
		panic(fmt.Sprintf("registry: unknown unary operator %q", symbol))
	}
	e.ApplyUnary = fn
}

// FunctionNames returns every registered function name, for completion
// providers.
func (r *Registry) FunctionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	return names
}

// OperatorSymbols returns every binary operator symbol.
func (r *Registry) OperatorSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols := make([]string, 0, len(r.operators))
	for s := range r.operators {
		symbols = append(symbols, s)
	}
	return symbols
}
