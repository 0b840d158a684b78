package parser

import (
	"fhirpath/pkg/ast"
	"fhirpath/pkg/lexer"
)

// Mode selects the parser's output profile.
type Mode int

const (
	// ModeSimple fails on the first error and produces a lean AST;
	// the production evaluation path.
	ModeSimple Mode = iota
	// ModeLSP collects diagnostics, recovers, assigns stable ids,
	// attaches parents and builds the lookup indexes.
	ModeLSP
)

// Options configures a parse.
type Options struct {
	Mode Mode
	// PreserveTrivia keeps whitespace/comment tokens in Result.Trivia.
	// Implied by ModeLSP; only in ModeLSP are the tokens also attached
	// to nodes as leading or trailing trivia.
	PreserveTrivia bool
	// ErrorRecovery synchronizes and continues after an error.
	// Implied by ModeLSP.
	ErrorRecovery bool
	// MaxErrors caps collected diagnostics; 0 means the default cap.
	MaxErrors int
	// CursorOffset is a byte offset for IDE completion; negative
	// disables cursor handling.
	CursorOffset int
}

// DefaultOptions returns simple-mode options.
func DefaultOptions() Options {
	return Options{CursorOffset: -1}
}

// LSPOptions returns options for editor tooling.
func LSPOptions() Options {
	return Options{Mode: ModeLSP, PreserveTrivia: true, ErrorRecovery: true, CursorOffset: -1}
}

const defaultMaxErrors = 50

// Indexes are the LSP-mode lookup tables over the AST.
type Indexes struct {
	ByID         map[int]*ast.Node
	ByKind       map[ast.Kind][]*ast.Node
	ByIdentifier map[string][]*ast.Node
}

// Result is the output of a parse.
type Result struct {
	AST    *ast.Node
	Errors []*Diagnostic
	// Indexes is populated in LSP mode.
	Indexes *Indexes
	// Cursor is the placeholder node when a cursor offset was supplied
	// and reached.
	Cursor *ast.Node
	// Trivia holds the whitespace/comment channel when preserved.
	Trivia []lexer.Token
}

// HasErrors reports whether any error-severity diagnostics were
// collected.
func (r *Result) HasErrors() bool {
	for _, d := range r.Errors {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
