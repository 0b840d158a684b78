// Package parser turns a FHIRPath expression into an AST using
// registry-driven precedence climbing. It offers a fail-fast simple
// mode for production evaluation and an LSP mode that recovers from
// errors, assigns stable node ids and builds lookup indexes for
// editor tooling.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fhirpath/pkg/ast"
	"fhirpath/pkg/lexer"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
	"fhirpath/pkg/ucum"
)

// errBudget aborts the parse once the diagnostic cap is reached.
var errBudget = errors.New("parser: too many errors")

// Parser consumes a token stream produced by the lexer.
type Parser struct {
	input   string
	tokens  []lexer.Token
	pos     int
	opts    Options
	reg     *registry.Registry
	diags   []*Diagnostic
	cursor  *ast.Node
	trivia  []lexer.Token
	aborted bool
}

// Parse parses an expression in simple mode.
func Parse(input string) (*ast.Node, error) {
	res, err := ParseWithOptions(input, DefaultOptions())
	if err != nil {
		return nil, err
	}
	return res.AST, nil
}

// ParseWithOptions parses an expression with full control over mode,
// trivia, recovery, the diagnostic cap and the cursor offset.
func ParseWithOptions(input string, opts Options) (*Result, error) {
	return ParseWithRegistry(input, opts, registry.Default())
}

// ParseWithRegistry parses against a specific registry, which callers
// with extension operators use.
func ParseWithRegistry(input string, opts Options, reg *registry.Registry) (*Result, error) {
	if opts.Mode == ModeLSP {
		opts.PreserveTrivia = true
		opts.ErrorRecovery = true
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaultMaxErrors
	}

	all := lexer.Tokenize(input, lexer.Options{
		TrackPosition:  true,
		PreserveTrivia: opts.PreserveTrivia,
		CursorOffset:   opts.CursorOffset,
	})
	var trivia []lexer.Token
	tokens := all
	if opts.PreserveTrivia {
		tokens = lexer.FilterTrivia(all)
		for _, t := range all {
			if t.IsTrivia() {
				trivia = append(trivia, t)
			}
		}
	}

	p := &Parser{input: input, tokens: tokens, opts: opts, reg: reg, trivia: trivia}

	node, err := p.parseExpression(0)
	if err != nil {
		if !p.opts.ErrorRecovery {
			p.reportErr(err)
			return &Result{Errors: p.diags}, err
		}
		node = p.handleTopError(node, err)
	}
	// Trailing input after a complete expression.
	for !p.aborted && p.peek().Type != lexer.TokenEOF {
		d := diagnosticAt(CodeUnexpectedToken,
			fmt.Sprintf("unexpected token %q", p.peek().Value), p.peek())
		if !p.report(d) {
			break
		}
		if !p.opts.ErrorRecovery {
			return &Result{AST: node, Errors: p.diags}, d
		}
		p.advance()
		p.synchronize()
	}

	res := &Result{AST: node, Errors: p.diags, Cursor: p.cursor, Trivia: trivia}
	if opts.Mode == ModeLSP {
		res.Indexes = buildIndexes(node, p.input)
		attachTrivia(node, trivia)
	}
	return res, nil
}

// handleTopError applies recovery to an error that escaped to the top
// level of a recovering parse.
func (p *Parser) handleTopError(partial *ast.Node, err error) *ast.Node {
	if errors.Is(err, errBudget) {
		return p.errorNode()
	}
	p.reportErr(err)
	p.synchronize()
	node := p.errorNode()
	if partial != nil {
		node.Left = partial
	}
	return node
}

func (p *Parser) peek() lexer.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return lexer.Token{Type: lexer.TokenEOF, Pos: len(p.input), End: len(p.input)}
}

func (p *Parser) peekNext() lexer.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return lexer.Token{Type: lexer.TokenEOF, Pos: len(p.input), End: len(p.input)}
}

func (p *Parser) advance() lexer.Token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) prev() lexer.Token {
	if p.pos > 0 {
		return p.tokens[p.pos-1]
	}
	return p.peek()
}

// report records a diagnostic; false means the budget is exhausted.
func (p *Parser) report(d *Diagnostic) bool {
	if len(p.diags) >= p.opts.MaxErrors {
		p.aborted = true
		return false
	}
	p.diags = append(p.diags, d)
	return true
}

func (p *Parser) reportErr(err error) {
	var d *Diagnostic
	if errors.As(err, &d) {
		p.report(d)
		return
	}
	p.report(diagnosticAt(CodeInvalidSyntax, err.Error(), p.peek()))
}

// synchronize skips tokens until a boundary that lets parsing resume:
// comma, closing bracket/brace/paren or end of input.
func (p *Parser) synchronize() {
	for {
		switch p.peek().Type {
		case lexer.TokenComma, lexer.TokenRParen, lexer.TokenRBrace,
			lexer.TokenRBracket, lexer.TokenEOF:
			return
		}
		p.advance()
	}
}

func (p *Parser) errorNode() *ast.Node {
	tok := p.prev()
	return &ast.Node{
		Kind:    ast.KindError,
		Message: "syntax error",
		Rng:     tokenRange(tok),
	}
}

// parseExpression climbs binary operators at or above minPrec.
func (p *Parser) parseExpression(minPrec int) (*ast.Node, error) {
	if p.aborted {
		return nil, errBudget
	}
	left, err := p.parseUnary()
	if err != nil {
		return left, err
	}

	for {
		tok := p.peek()

		if tok.Type == lexer.TokenCursor {
			// Caret where an operator would go.
			p.advance()
			left = &ast.Node{
				Kind:      ast.KindCursor,
				CursorCtx: ast.CursorOperator,
				Left:      left,
				Rng:       ast.Hull(left.Rng, tokenRange(tok)),
			}
			p.cursor = left
			continue
		}

		sym, ok := p.binaryOperatorSymbol(tok)
		if !ok {
			return left, nil
		}
		prec := p.reg.Precedence(sym)
		if prec < minPrec {
			return left, nil
		}
		p.advance()

		if sym == "is" || sym == "as" {
			left, err = p.parseTypeOperator(sym, left)
			if err != nil {
				return left, err
			}
			continue
		}

		next := prec + 1
		if p.reg.Associativity(sym) == registry.AssocRight {
			next = prec
		}
		right, err := p.parseExpression(next)
		if err != nil {
			return right, err
		}
		left = &ast.Node{
			Kind:  ast.KindBinary,
			Op:    sym,
			Left:  left,
			Right: right,
			Rng:   ast.Hull(left.Rng, right.Rng),
		}
	}
}

// binaryOperatorSymbol maps a token onto a registered binary operator
// symbol. Keyword operators are plain identifiers; the registry
// decides their status.
func (p *Parser) binaryOperatorSymbol(tok lexer.Token) (string, bool) {
	switch {
	case tok.IsOperatorSymbol():
		return tok.Value, p.reg.IsBinaryOperator(tok.Value)
	case tok.Type == lexer.TokenIdentifier:
		if p.reg.IsKeywordOperator(tok.Value) {
			return tok.Value, true
		}
	}
	return "", false
}

// parseTypeOperator parses the right side of `is`/`as`: a (possibly
// qualified) type name or a cursor placeholder.
func (p *Parser) parseTypeOperator(op string, left *ast.Node) (*ast.Node, error) {
	if p.peek().Type == lexer.TokenCursor {
		tok := p.advance()
		node := &ast.Node{
			Kind:      ast.KindCursor,
			CursorCtx: ast.CursorType,
			Left:      left,
			Rng:       ast.Hull(left.Rng, tokenRange(tok)),
		}
		p.cursor = node
		return node, nil
	}
	name, rng, err := p.parseTypeName()
	if err != nil {
		return left, err
	}
	kind := ast.KindMembershipTest
	if op == "as" {
		kind = ast.KindTypeCast
	}
	return &ast.Node{
		Kind:     kind,
		Left:     left,
		TypeName: name,
		Rng:      ast.Hull(left.Rng, rng),
	}, nil
}

// parseTypeName consumes identifier ('.' identifier)* and returns the
// dotted name.
func (p *Parser) parseTypeName() (string, ast.Range, error) {
	tok := p.peek()
	if tok.Type != lexer.TokenIdentifier && tok.Type != lexer.TokenDelimitedIdentifier {
		return "", ast.Range{}, diagnosticAt(CodeExpectedType,
			fmt.Sprintf("expected type name, got %q", tok.Value), tok)
	}
	p.advance()
	name := p.identifierText(tok)
	rng := tokenRange(tok)
	for p.peek().Type == lexer.TokenDot &&
		(p.peekNext().Type == lexer.TokenIdentifier || p.peekNext().Type == lexer.TokenDelimitedIdentifier) {
		p.advance()
		part := p.advance()
		name += "." + p.identifierText(part)
		rng = ast.Hull(rng, tokenRange(part))
	}
	return name, rng, nil
}

// parseUnary handles prefix signs; everything else flows into the
// postfix chain.
func (p *Parser) parseUnary() (*ast.Node, error) {
	tok := p.peek()
	if tok.Type == lexer.TokenPlus || tok.Type == lexer.TokenMinus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return operand, err
		}
		return &ast.Node{
			Kind: ast.KindUnary,
			Op:   tok.Value,
			Left: operand,
			Rng:  ast.Hull(tokenRange(tok), operand.Rng),
		}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary and attaches the unconditional postfix
// forms: indexers, call parentheses after identifiers, and dot
// invocations.
func (p *Parser) parsePostfix() (*ast.Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return node, err
	}
	for {
		switch p.peek().Type {
		case lexer.TokenLBracket:
			node, err = p.parseIndex(node)
		case lexer.TokenLParen:
			// A call only forms after an identifier or type name.
			if node.Kind != ast.KindIdentifier && node.Kind != ast.KindTypeOrIdentifier {
				return node, nil
			}
			node, err = p.parseCall(node)
		case lexer.TokenDot:
			p.advance()
			node, err = p.parseInvocation(node)
		default:
			return node, nil
		}
		if err != nil {
			return node, err
		}
	}
}

// parseInvocation parses the member access or method call to the right
// of a dot. Environment variables are accepted so `.%resource` parses.
func (p *Parser) parseInvocation(left *ast.Node) (*ast.Node, error) {
	tok := p.peek()
	var right *ast.Node
	switch tok.Type {
	case lexer.TokenIdentifier, lexer.TokenDelimitedIdentifier:
		p.advance()
		right = p.identifierNode(tok)
		if p.peek().Type == lexer.TokenLParen {
			var err error
			right, err = p.parseCall(right)
			if err != nil {
				return right, err
			}
		}
	case lexer.TokenSpecialVariable:
		p.advance()
		right = &ast.Node{
			Kind: ast.KindVariable,
			Name: strings.TrimPrefix(tok.Value, "$"),
			Rng:  tokenRange(tok),
		}
	case lexer.TokenEnvVariable:
		p.advance()
		right = p.envVariableNode(tok)
	case lexer.TokenCursor:
		p.advance()
		right = &ast.Node{
			Kind:      ast.KindCursor,
			CursorCtx: ast.CursorIdentifier,
			Rng:       tokenRange(tok),
		}
		p.cursor = right
	default:
		return left, diagnosticAt(CodeExpectedIdentifier,
			fmt.Sprintf("expected identifier after '.', got %q", tok.Value), tok)
	}
	return &ast.Node{
		Kind:  ast.KindBinary,
		Op:    ".",
		Left:  left,
		Right: right,
		Rng:   ast.Hull(left.Rng, right.Rng),
	}, nil
}

// parseIndex parses `[expression]`.
func (p *Parser) parseIndex(left *ast.Node) (*ast.Node, error) {
	p.advance() // '['
	var idx *ast.Node
	if p.peek().Type == lexer.TokenCursor {
		tok := p.advance()
		idx = &ast.Node{Kind: ast.KindCursor, CursorCtx: ast.CursorIndex, Rng: tokenRange(tok)}
		p.cursor = idx
	} else {
		var err error
		idx, err = p.parseExpression(0)
		if err != nil {
			if !p.opts.ErrorRecovery {
				return idx, err
			}
			p.reportErr(err)
			p.synchronize()
			idx = p.errorNode()
		}
	}
	if p.peek().Type != lexer.TokenRBracket {
		return left, diagnosticAt(CodeUnclosedDelimiter,
			"expected ']' to close indexer", p.peek())
	}
	closeTok := p.advance()
	return &ast.Node{
		Kind:  ast.KindIndex,
		Left:  left,
		Right: idx,
		Rng:   ast.Hull(left.Rng, tokenRange(closeTok)),
	}, nil
}

// parseCall parses the parenthesized argument list after an identifier
// and wraps it in a Function node.
func (p *Parser) parseCall(target *ast.Node) (*ast.Node, error) {
	p.advance() // '('
	var args []*ast.Node
	if p.peek().Type != lexer.TokenRParen {
		for {
			if p.peek().Type == lexer.TokenCursor {
				tok := p.advance()
				arg := &ast.Node{Kind: ast.KindCursor, CursorCtx: ast.CursorArgument, Rng: tokenRange(tok)}
				p.cursor = arg
				args = append(args, arg)
			} else {
				arg, err := p.parseExpression(0)
				if err != nil {
					if !p.opts.ErrorRecovery {
						return target, err
					}
					p.reportErr(err)
					p.synchronize()
					arg = p.errorNode()
				}
				args = append(args, arg)
			}
			if p.peek().Type == lexer.TokenComma {
				p.advance()
				continue
			}
			break
		}
	}
	if p.peek().Type != lexer.TokenRParen {
		return target, diagnosticAt(CodeUnclosedDelimiter,
			"expected ')' to close argument list", p.peek())
	}
	closeTok := p.advance()
	return &ast.Node{
		Kind:   ast.KindFunction,
		Target: target,
		Args:   args,
		Rng:    ast.Hull(target.Rng, tokenRange(closeTok)),
	}, nil
}

// parsePrimary parses literals, variables, groups, collection literals
// and identifiers.
func (p *Parser) parsePrimary() (*ast.Node, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenNumber:
		return p.parseNumberOrQuantity()

	case lexer.TokenString:
		p.advance()
		text, err := unescape(trimQuotes(tok.Value))
		if err != nil {
			return nil, diagnosticAt(CodeInvalidLiteral, err.Error(), tok)
		}
		return &ast.Node{
			Kind: ast.KindLiteral, LitKind: ast.LitString, Text: text,
			Rng: tokenRange(tok),
		}, nil

	case lexer.TokenDateTime:
		p.advance()
		body := strings.TrimPrefix(tok.Value, "@")
		litKind := ast.LitDate
		if strings.ContainsRune(body, 'T') {
			litKind = ast.LitDateTime
			if _, err := types.ParseDateTime(body); err != nil {
				return nil, diagnosticAt(CodeInvalidLiteral, err.Error(), tok)
			}
		} else if _, err := types.ParseDate(body); err != nil {
			return nil, diagnosticAt(CodeInvalidLiteral, err.Error(), tok)
		}
		return &ast.Node{
			Kind: ast.KindLiteral, LitKind: litKind, Text: body,
			Rng: tokenRange(tok),
		}, nil

	case lexer.TokenTime:
		p.advance()
		body := strings.TrimPrefix(tok.Value, "@")
		if _, err := types.ParseTime(body); err != nil {
			return nil, diagnosticAt(CodeInvalidLiteral, err.Error(), tok)
		}
		return &ast.Node{
			Kind: ast.KindLiteral, LitKind: ast.LitTime, Text: body,
			Rng: tokenRange(tok),
		}, nil

	case lexer.TokenIdentifier:
		p.advance()
		switch tok.Value {
		case "true", "false":
			return &ast.Node{
				Kind: ast.KindLiteral, LitKind: ast.LitBoolean,
				Bool: tok.Value == "true", Rng: tokenRange(tok),
			}, nil
		}
		return p.identifierNode(tok), nil

	case lexer.TokenDelimitedIdentifier:
		p.advance()
		return p.identifierNode(tok), nil

	case lexer.TokenSpecialVariable:
		p.advance()
		return &ast.Node{
			Kind: ast.KindVariable,
			Name: strings.TrimPrefix(tok.Value, "$"),
			Rng:  tokenRange(tok),
		}, nil

	case lexer.TokenEnvVariable:
		p.advance()
		return p.envVariableNode(tok), nil

	case lexer.TokenLParen:
		p.advance()
		inner, err := p.parseExpression(0)
		if err != nil {
			return inner, err
		}
		if p.peek().Type != lexer.TokenRParen {
			return inner, diagnosticAt(CodeUnclosedDelimiter,
				"expected ')' to close group", p.peek())
		}
		p.advance()
		return inner, nil

	case lexer.TokenLBrace:
		return p.parseCollectionLiteral()

	case lexer.TokenCursor:
		p.advance()
		node := &ast.Node{
			Kind:      ast.KindCursor,
			CursorCtx: ast.CursorIdentifier,
			Rng:       tokenRange(tok),
		}
		p.cursor = node
		return node, nil

	case lexer.TokenError:
		p.advance()
		return nil, diagnosticAt(CodeInvalidLiteral, tok.Message, tok)

	case lexer.TokenEOF:
		return nil, diagnosticAt(CodeUnexpectedToken, "unexpected end of expression", tok)

	default:
		return nil, diagnosticAt(CodeUnexpectedToken,
			fmt.Sprintf("unexpected token %q", tok.Value), tok)
	}
}

// parseNumberOrQuantity parses a numeric literal and promotes it to a
// quantity when a unit string or calendar-unit word follows directly.
func (p *Parser) parseNumberOrQuantity() (*ast.Node, error) {
	tok := p.advance()
	value, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, diagnosticAt(CodeInvalidLiteral,
			fmt.Sprintf("malformed number %q", tok.Value), tok)
	}
	isInt := !strings.ContainsRune(tok.Value, '.')
	precision := 0
	if !isInt {
		precision = len(tok.Value) - strings.IndexByte(tok.Value, '.') - 1
	}

	next := p.peek()
	if next.Type == lexer.TokenString {
		p.advance()
		unit, err := unescape(trimQuotes(next.Value))
		if err != nil {
			return nil, diagnosticAt(CodeInvalidLiteral, err.Error(), next)
		}
		return &ast.Node{
			Kind: ast.KindQuantity, Num: value, Precision: precision,
			IsInteger: isInt, Unit: unit,
			Rng: ast.Hull(tokenRange(tok), tokenRange(next)),
		}, nil
	}
	if next.Type == lexer.TokenIdentifier && ucum.IsCalendarUnit(next.Value) {
		p.advance()
		return &ast.Node{
			Kind: ast.KindQuantity, Num: value, Precision: precision,
			IsInteger: isInt, Unit: ucum.Singularize(next.Value), Calendar: true,
			Rng: ast.Hull(tokenRange(tok), tokenRange(next)),
		}, nil
	}

	return &ast.Node{
		Kind: ast.KindLiteral, LitKind: ast.LitNumber,
		Num: value, Precision: precision, IsInteger: isInt,
		Rng: tokenRange(tok),
	}, nil
}

// parseCollectionLiteral parses `{a, b, c}`; `{}` is the empty
// collection.
func (p *Parser) parseCollectionLiteral() (*ast.Node, error) {
	open := p.advance() // '{'
	var elems []*ast.Node
	if p.peek().Type != lexer.TokenRBrace {
		for {
			el, err := p.parseExpression(0)
			if err != nil {
				if !p.opts.ErrorRecovery {
					return el, err
				}
				p.reportErr(err)
				p.synchronize()
				el = p.errorNode()
			}
			elems = append(elems, el)
			if p.peek().Type == lexer.TokenComma {
				p.advance()
				continue
			}
			break
		}
	}
	if p.peek().Type != lexer.TokenRBrace {
		return nil, diagnosticAt(CodeUnclosedDelimiter,
			"expected '}' to close collection", p.peek())
	}
	closeTok := p.advance()
	return &ast.Node{
		Kind: ast.KindCollection,
		Args: elems,
		Rng:  ast.Hull(tokenRange(open), tokenRange(closeTok)),
	}, nil
}

// identifierNode classifies an identifier token: uppercase-initial
// names stay ambiguous between type references and path steps until
// evaluation.
func (p *Parser) identifierNode(tok lexer.Token) *ast.Node {
	name := p.identifierText(tok)
	kind := ast.KindIdentifier
	if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
		kind = ast.KindTypeOrIdentifier
	}
	return &ast.Node{Kind: kind, Name: name, Rng: tokenRange(tok)}
}

func (p *Parser) identifierText(tok lexer.Token) string {
	if tok.Type == lexer.TokenDelimitedIdentifier {
		text, err := unescape(trimBackticks(tok.Value))
		if err != nil {
			return trimBackticks(tok.Value)
		}
		return text
	}
	return tok.Value
}

func (p *Parser) envVariableNode(tok lexer.Token) *ast.Node {
	body := strings.TrimPrefix(tok.Value, "%")
	var name string
	switch {
	case strings.HasPrefix(body, "`"):
		if text, err := unescape(trimBackticks(body)); err == nil {
			name = text
		} else {
			name = trimBackticks(body)
		}
	case strings.HasPrefix(body, "'"):
		if text, err := unescape(trimQuotes(body)); err == nil {
			name = text
		} else {
			name = trimQuotes(body)
		}
	default:
		name = body
	}
	return &ast.Node{
		Kind: ast.KindVariable,
		Name: name,
		Env:  true,
		Rng:  tokenRange(tok),
	}
}

func trimQuotes(s string) string {
	s = strings.TrimPrefix(s, "'")
	return strings.TrimSuffix(s, "'")
}

func trimBackticks(s string) string {
	s = strings.TrimPrefix(s, "`")
	return strings.TrimSuffix(s, "`")
}

// unescape decodes FHIRPath string escapes including \uXXXX.
func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling escape at end of string")
		}
		switch s[i] {
		case '\'':
			b.WriteByte('\'')
		case '"':
			b.WriteByte('"')
		case '`':
			b.WriteByte('`')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("truncated unicode escape")
			}
			code, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("malformed unicode escape \\u%s", s[i+1:i+5])
			}
			b.WriteRune(rune(code))
			i += 4
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}
