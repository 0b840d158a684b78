package parser

import (
	"fhirpath/pkg/ast"
	"fhirpath/pkg/lexer"
)

// buildIndexes walks the tree assigning stable pre-order ids, linking
// parents, recording raw source slices and building the LSP lookup
// tables.
func buildIndexes(root *ast.Node, input string) *Indexes {
	idx := &Indexes{
		ByID:         make(map[int]*ast.Node),
		ByKind:       make(map[ast.Kind][]*ast.Node),
		ByIdentifier: make(map[string][]*ast.Node),
	}
	nextID := 1
	var visit func(n, parent *ast.Node)
	visit = func(n, parent *ast.Node) {
		if n == nil {
			return
		}
		n.ID = nextID
		nextID++
		n.Parent = parent
		if n.Rng.Start.Offset >= 0 && n.Rng.End.Offset <= len(input) &&
			n.Rng.Start.Offset <= n.Rng.End.Offset {
			n.Src = input[n.Rng.Start.Offset:n.Rng.End.Offset]
		}
		idx.ByID[n.ID] = n
		idx.ByKind[n.Kind] = append(idx.ByKind[n.Kind], n)
		if n.Kind == ast.KindIdentifier || n.Kind == ast.KindTypeOrIdentifier {
			idx.ByIdentifier[n.Name] = append(idx.ByIdentifier[n.Name], n)
		}
		for _, c := range n.Children() {
			visit(c, n)
		}
	}
	visit(root, nil)
	return idx
}

// attachTrivia distributes the trivia channel over the tree: each
// contiguous trivia run becomes the Leading trivia of the innermost
// node starting right after it, or the Trailing trivia of the
// innermost node ending right before it.
func attachTrivia(root *ast.Node, trivia []lexer.Token) {
	if root == nil || len(trivia) == 0 {
		return
	}
	starts := make(map[int]*ast.Node)
	ends := make(map[int]*ast.Node)
	ast.Walk(root, func(n *ast.Node) bool {
		// Visit order is parent-first; later (inner) nodes win.
		starts[n.Rng.Start.Offset] = n
		ends[n.Rng.End.Offset] = n
		return true
	})
	for i := 0; i < len(trivia); {
		j := i
		for j+1 < len(trivia) && trivia[j+1].Pos == trivia[j].End {
			j++
		}
		run := trivia[i : j+1]
		if n, ok := starts[run[len(run)-1].End]; ok {
			n.Leading = append(n.Leading, run...)
		} else if n, ok := ends[run[0].Pos]; ok {
			n.Trailing = append(n.Trailing, run...)
		}
		i = j + 1
	}
}

// NodeAt returns the innermost node whose range contains the byte
// offset.
func NodeAt(root *ast.Node, offset int) *ast.Node {
	var found *ast.Node
	ast.Walk(root, func(n *ast.Node) bool {
		if !n.Rng.Contains(offset) && !(n.Rng.Start.Offset == offset && n.Rng.End.Offset == offset) {
			return false
		}
		found = n
		return true
	})
	return found
}
