package repl

import (
	"sort"
	"strings"

	"fhirpath/pkg/ast"
	"fhirpath/pkg/parser"
)

// completer implements readline.AutoCompleter on top of the parser's
// cursor placeholders: the line is re-parsed with the caret offset and
// the placeholder's context decides what to offer.
type completer struct {
	repl *REPL
}

func newCompleter(r *REPL) *completer {
	return &completer{repl: r}
}

// Do returns candidate suffixes for the word ending at pos.
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	start := wordStart(line, pos)
	prefix := string(line[start:pos])

	candidates := c.candidatesAt(text, start)
	var out [][]rune
	for _, cand := range candidates {
		if strings.HasPrefix(cand, prefix) {
			out = append(out, []rune(cand[len(prefix):]))
		}
	}
	return out, len(prefix)
}

// candidatesAt decides what fits at the caret: after a dot it is
// element names and functions, in type position it is type names,
// where an operator would go it is operator symbols, otherwise
// top-level names.
func (c *completer) candidatesAt(text string, wordStart int) []string {
	res, err := parser.ParseWithOptions(text, parser.Options{
		Mode:         parser.ModeLSP,
		CursorOffset: wordStart,
	})
	var set map[string]bool
	if err == nil && res.Cursor != nil {
		switch res.Cursor.CursorCtx {
		case ast.CursorType:
			set = c.typeNames()
		case ast.CursorIdentifier:
			set = c.elementNames()
			for _, name := range c.repl.eng.Registry().FunctionNames() {
				set[name+"("] = true
			}
		case ast.CursorOperator:
			set = map[string]bool{}
			for _, sym := range c.repl.eng.Registry().OperatorSymbols() {
				set[sym] = true
			}
		default:
			set = c.allNames()
		}
	} else {
		set = c.allNames()
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *completer) allNames() map[string]bool {
	set := c.elementNames()
	for _, name := range c.repl.eng.Registry().FunctionNames() {
		set[name+"("] = true
	}
	for name := range c.typeNames() {
		set[name] = true
	}
	return set
}

// elementNames collects the property names of the loaded resource so
// path steps complete against real data.
func (c *completer) elementNames() map[string]bool {
	set := make(map[string]bool)
	obj, ok := c.repl.resource.(map[string]interface{})
	if !ok {
		return set
	}
	collectKeys(obj, set, 0)
	return set
}

func collectKeys(obj map[string]interface{}, set map[string]bool, depth int) {
	if depth > 2 {
		return
	}
	for key, value := range obj {
		if strings.HasPrefix(key, "_") {
			continue
		}
		set[key] = true
		switch v := value.(type) {
		case map[string]interface{}:
			collectKeys(v, set, depth+1)
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					collectKeys(m, set, depth+1)
				}
			}
		}
	}
}

func (c *completer) typeNames() map[string]bool {
	set := make(map[string]bool)
	for _, name := range []string{
		"Boolean", "Integer", "Decimal", "String",
		"Date", "DateTime", "Time", "Quantity",
	} {
		set[name] = true
	}
	if obj, ok := c.repl.resource.(map[string]interface{}); ok {
		if rt, ok := obj["resourceType"].(string); ok {
			set[rt] = true
		}
	}
	return set
}

func wordStart(line []rune, pos int) int {
	start := pos
	for start > 0 {
		r := line[start-1]
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' {
			start--
			continue
		}
		break
	}
	return start
}
