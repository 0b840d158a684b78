// Package model defines the contract between the engine and an
// external type model. The core asks three questions: does a type
// exist, what is the type of an element, and is one type assignable to
// another. Without a provider the engine falls back to runtime tags
// for primitives and resourceType equality for objects.
package model

// TypeInfo describes a named type in the model.
type TypeInfo struct {
	Name      string
	Base      string // parent type name, "" for roots
	Singleton bool
	Primitive bool
}

// Provider is the model oracle injected into an evaluation.
type Provider interface {
	// GetType resolves a type name, returning nil when unknown.
	GetType(typeName string) *TypeInfo

	// GetElementType resolves the type of parentType.elementName,
	// returning nil when the element does not exist.
	GetElementType(parentType, elementName string) *TypeInfo

	// OfType returns the matching subtype when actualType is or
	// contains targetType (covering choice/union types and
	// inheritance), nil otherwise.
	OfType(actualType, targetType string) *TypeInfo
}

// MapProvider is a Provider backed by in-memory tables, sufficient for
// tests and for embedding small models without code generation.
type MapProvider struct {
	// Types maps a type name to its definition.
	Types map[string]TypeInfo
	// Elements maps "Parent.element" to the element's type name.
	Elements map[string]string
}

// NewMapProvider creates an empty map-backed provider.
func NewMapProvider() *MapProvider {
	return &MapProvider{
		Types:    make(map[string]TypeInfo),
		Elements: make(map[string]string),
	}
}

// AddType registers a type definition.
func (p *MapProvider) AddType(info TypeInfo) *MapProvider {
	p.Types[info.Name] = info
	return p
}

// AddElement registers an element type for Parent.element.
func (p *MapProvider) AddElement(parent, element, typeName string) *MapProvider {
	p.Elements[parent+"."+element] = typeName
	return p
}

// GetType implements Provider.
func (p *MapProvider) GetType(typeName string) *TypeInfo {
	if info, ok := p.Types[typeName]; ok {
		return &info
	}
	return nil
}

// GetElementType implements Provider.
func (p *MapProvider) GetElementType(parentType, elementName string) *TypeInfo {
	name, ok := p.Elements[parentType+"."+elementName]
	if !ok {
		return nil
	}
	if info := p.GetType(name); info != nil {
		return info
	}
	return &TypeInfo{Name: name}
}

// OfType implements Provider by walking the Base chain.
func (p *MapProvider) OfType(actualType, targetType string) *TypeInfo {
	name := actualType
	for name != "" {
		if name == targetType {
			if info := p.GetType(name); info != nil {
				return info
			}
			return &TypeInfo{Name: name}
		}
		info := p.GetType(name)
		if info == nil {
			return nil
		}
		name = info.Base
	}
	return nil
}
