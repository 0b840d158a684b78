// Package runtime holds the evaluation context: the variable scopes,
// iterator bindings and the model-provider handle threaded through a
// tree walk.
package runtime

import (
	"fmt"

	"fhirpath/pkg/model"
	"fhirpath/pkg/types"
)

// Scope is one layer of the variable map. Layers form a chain;
// iterator bodies shadow with a child layer while the dot operator
// shares the same layer by reference, which is what lets
// defineVariable propagate down a chain.
type Scope struct {
	values map[string]types.Collection
	parent *Scope
}

// NewScope creates a root scope.
func NewScope() *Scope {
	return &Scope{values: make(map[string]types.Collection)}
}

// Child creates a shadowing layer over s.
func (s *Scope) Child() *Scope {
	return &Scope{values: make(map[string]types.Collection), parent: s}
}

// Lookup resolves a variable through the layer chain.
func (s *Scope) Lookup(name string) (types.Collection, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.values[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Define adds a variable to this layer. Redefining a name already
// visible from here is an error per the defineVariable contract.
func (s *Scope) Define(name string, value types.Collection) error {
	if _, exists := s.Lookup(name); exists {
		return fmt.Errorf("variable %%%s is already defined", name)
	}
	s.values[name] = value
	return nil
}

// Set adds or replaces a variable in this layer without the
// redefinition check; used for caller-supplied environment variables.
func (s *Scope) Set(name string, value types.Collection) {
	s.values[name] = value
}

// Names returns every visible variable name, inner layers first.
func (s *Scope) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for cur := s; cur != nil; cur = cur.parent {
		for name := range cur.values {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// Context is the state threaded through one evaluation. Contexts are
// copied by value when scope changes; the Vars layer is shared by
// reference so that definitions made on the left of a dot are visible
// on the right.
type Context struct {
	// Root is the original input the evaluation started from
	// (%context and %resource resolve to it).
	Root types.Collection
	// Vars is the current variable layer, shared across a dot chain.
	Vars *Scope
	// Model is the optional model provider.
	Model model.Provider

	// Iterator bindings for $this/$index/$total inside lazy function
	// bodies. hasIterator gates $index resolution so a bare $index
	// outside an iterator is an unknown variable.
	this        types.Collection
	index       int64
	total       types.Collection
	hasIterator bool
	hasTotal    bool
}

// NewContext creates an evaluation context over the root input.
func NewContext(root types.Collection) *Context {
	return &Context{Root: root, Vars: NewScope()}
}

// WithModel attaches a model provider.
func (c *Context) WithModel(p model.Provider) *Context {
	c.Model = p
	return c
}

// WithIterator returns a child context with $this/$index bound and a
// fresh shadowing variable layer, leaving the receiver untouched.
func (c *Context) WithIterator(this types.Collection, index int64) *Context {
	child := *c
	child.Vars = c.Vars.Child()
	child.this = this
	child.index = index
	child.hasIterator = true
	child.hasTotal = false
	return &child
}

// WithTotal extends an iterator context with the $total binding used
// by aggregate().
func (c *Context) WithTotal(total types.Collection) *Context {
	child := *c
	child.total = total
	child.hasTotal = true
	return &child
}

// This resolves $this. Outside an iterator it is the root input.
func (c *Context) This() types.Collection {
	if c.hasIterator {
		return c.this
	}
	return c.Root
}

// Index resolves $index; ok is false outside an iterator body.
func (c *Context) Index() (int64, bool) {
	return c.index, c.hasIterator
}

// Total resolves $total; ok is false outside aggregate().
func (c *Context) Total() (types.Collection, bool) {
	return c.total, c.hasTotal
}

// LookupVariable resolves an environment variable, including the
// standard %context, %resource, %rootResource and %ucum names.
func (c *Context) LookupVariable(name string) (types.Collection, bool) {
	if v, ok := c.Vars.Lookup(name); ok {
		return v, true
	}
	switch name {
	case "context", "resource", "rootResource":
		return c.Root, true
	case "ucum":
		return types.Singleton(types.NewString(UCUMSystem)), true
	}
	return nil, false
}

// DefineVariable adds a definition to the shared layer so it stays
// visible for the rest of the dot chain.
func (c *Context) DefineVariable(name string, value types.Collection) error {
	return c.Vars.Define(name, value)
}

// UCUMSystem is the value of the %ucum environment variable.
const UCUMSystem = "http://unitsofmeasure.org"
