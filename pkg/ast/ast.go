package ast

import (
	"fmt"

	"fhirpath/pkg/lexer"
)

// Kind identifies the syntactic category of a node. The AST is a
// closed tagged variant: one struct, one kind tag, shared fields. The
// evaluator switches on Kind, which keeps the hot loop free of
// interface dispatch and makes exhaustiveness checks trivial.
type Kind int

const (
	KindInvalid Kind = iota
	KindLiteral
	KindIdentifier       // lowercase-initial name
	KindTypeOrIdentifier // uppercase-initial name, resolved at evaluation
	KindVariable         // $this/$index/$total or %name
	KindBinary
	KindUnary
	KindFunction
	KindIndex
	KindMembershipTest // expr is TypeName
	KindTypeCast       // expr as TypeName
	KindCollection     // {a, b, c}
	KindQuantity       // 4 days, 98.6 'F'
	KindError          // error-recovery placeholder
	KindCursor         // IDE caret placeholder
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindLiteral:
		return "Literal"
	case KindIdentifier:
		return "Identifier"
	case KindTypeOrIdentifier:
		return "TypeOrIdentifier"
	case KindVariable:
		return "Variable"
	case KindBinary:
		return "Binary"
	case KindUnary:
		return "Unary"
	case KindFunction:
		return "Function"
	case KindIndex:
		return "Index"
	case KindMembershipTest:
		return "MembershipTest"
	case KindTypeCast:
		return "TypeCast"
	case KindCollection:
		return "Collection"
	case KindQuantity:
		return "Quantity"
	case KindError:
		return "Error"
	case KindCursor:
		return "Cursor"
	default:
		return "Unknown"
	}
}

// LiteralKind classifies a KindLiteral node's value.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitBoolean
	LitNumber
	LitString
	LitDate
	LitDateTime
	LitTime
)

func (k LiteralKind) String() string {
	switch k {
	case LitNull:
		return "null"
	case LitBoolean:
		return "boolean"
	case LitNumber:
		return "number"
	case LitString:
		return "string"
	case LitDate:
		return "date"
	case LitDateTime:
		return "datetime"
	case LitTime:
		return "time"
	default:
		return "unknown"
	}
}

// CursorContext tags what a KindCursor placeholder replaced, so
// completion providers know what to offer.
type CursorContext int

const (
	CursorOperator CursorContext = iota
	CursorIdentifier
	CursorArgument
	CursorIndex
	CursorType
)

func (c CursorContext) String() string {
	switch c {
	case CursorOperator:
		return "operator"
	case CursorIdentifier:
		return "identifier"
	case CursorArgument:
		return "argument"
	case CursorIndex:
		return "index"
	case CursorType:
		return "type"
	default:
		return "unknown"
	}
}

// Position is a point in the source expression.
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range spans from the first byte of a node's leftmost token to one
// past the last byte of its rightmost token.
type Range struct {
	Start Position
	End   Position
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Contains reports whether the byte offset falls inside the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start.Offset && offset < r.End.Offset
}

// Hull returns the smallest range covering both operands.
func Hull(a, b Range) Range {
	out := a
	if b.Start.Offset < out.Start.Offset {
		out.Start = b.Start
	}
	if b.End.Offset > out.End.Offset {
		out.End = b.End
	}
	return out
}

// Node is a single AST node. Field use by kind:
//
//	Literal         LitKind, Text (decoded string/date lexeme), Num,
//	                Precision, IsInteger, Bool
//	Identifier      Name
//	TypeOrIdentifier Name
//	Variable        Name ("this"/"index"/"total" or env name), Env
//	Binary          Op, Left, Right
//	Unary           Op, Left
//	Function        Target (callee identifier node), Args
//	Index           Left (expression), Right (index expression)
//	MembershipTest  Left, TypeName
//	TypeCast        Left, TypeName
//	Collection      Args (elements)
//	Quantity        Num, Precision, Unit, Calendar
//	Error           Message
//	Cursor          CursorCtx
//
// Nodes are built bottom-up by the parser and are immutable after the
// parse; the evaluator never writes through them.
type Node struct {
	Kind Kind
	Rng  Range

	LitKind   LiteralKind
	Text      string
	Num       float64
	Precision int // decimal digits after the point; -1 when unknown
	IsInteger bool
	Bool      bool

	Name string
	Env  bool

	Op          string
	Left, Right *Node

	Target *Node
	Args   []*Node

	TypeName string
	Unit     string
	Calendar bool

	Message   string
	CursorCtx CursorContext

	// LSP-mode extras. Zero/nil in simple mode.
	ID       int
	Parent   *Node
	Src      string
	Leading  []lexer.Token
	Trailing []lexer.Token
}

// Range returns the node's source range.
func (n *Node) Range() Range {
	return n.Rng
}

// Children returns the node's direct children in source order.
func (n *Node) Children() []*Node {
	var out []*Node
	if n.Target != nil {
		out = append(out, n.Target)
	}
	if n.Left != nil {
		out = append(out, n.Left)
	}
	if n.Right != nil {
		out = append(out, n.Right)
	}
	out = append(out, n.Args...)
	return out
}

// Walk visits n and every descendant depth-first, stopping early when
// fn returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}

func (n *Node) String() string {
	switch n.Kind {
	case KindLiteral:
		switch n.LitKind {
		case LitString:
			return fmt.Sprintf("Literal(%q)", n.Text)
		case LitBoolean:
			return fmt.Sprintf("Literal(%v)", n.Bool)
		case LitNumber:
			return fmt.Sprintf("Literal(%s)", FormatNumber(n.Num, n.Precision, n.IsInteger))
		default:
			return fmt.Sprintf("Literal(%s %s)", n.LitKind, n.Text)
		}
	case KindIdentifier, KindTypeOrIdentifier:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Name)
	case KindVariable:
		if n.Env {
			return fmt.Sprintf("Variable(%%%s)", n.Name)
		}
		return fmt.Sprintf("Variable($%s)", n.Name)
	case KindBinary:
		return fmt.Sprintf("Binary(%s)", n.Op)
	case KindUnary:
		return fmt.Sprintf("Unary(%s)", n.Op)
	case KindFunction:
		name := ""
		if n.Target != nil {
			name = n.Target.Name
		}
		return fmt.Sprintf("Function(%s/%d)", name, len(n.Args))
	case KindIndex:
		return "Index"
	case KindMembershipTest:
		return fmt.Sprintf("Is(%s)", n.TypeName)
	case KindTypeCast:
		return fmt.Sprintf("As(%s)", n.TypeName)
	case KindCollection:
		return fmt.Sprintf("Collection(%d)", len(n.Args))
	case KindQuantity:
		return fmt.Sprintf("Quantity(%s %s)", FormatNumber(n.Num, n.Precision, n.IsInteger), n.Unit)
	case KindError:
		return fmt.Sprintf("Error(%s)", n.Message)
	case KindCursor:
		return fmt.Sprintf("Cursor(%s)", n.CursorCtx)
	default:
		return "Invalid"
	}
}
