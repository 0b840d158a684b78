package engine

import (
	"strings"

	"fhirpath/pkg/runtime"
	"fhirpath/pkg/types"
)

// navigate collects the named property from each object in the input.
// Arrays flatten one level, null elements are skipped, and the FHIR
// primitive-element sibling (the "_name" companion) rides along as
// metadata on the boxed value. When a model provider is present the
// results are annotated with element type info.
func navigate(input types.Collection, name string, ctx *runtime.Context) types.Collection {
	var out types.Collection
	for _, item := range input {
		obj, ok := item.Data.(map[string]interface{})
		if !ok {
			continue
		}
		raw, exists := obj[name]
		if !exists || raw == nil {
			continue
		}
		sibling := obj["_"+name]

		var tag *types.TypeTag
		if ctx.Model != nil {
			parentType := item.TypeName()
			if parentType != "" {
				if info := ctx.Model.GetElementType(parentType, name); info != nil {
					tag = &types.TypeTag{Name: info.Name, Singleton: info.Singleton}
				}
			}
		}

		if arr, isArr := raw.([]interface{}); isArr {
			sibArr, _ := sibling.([]interface{})
			for i, el := range arr {
				if el == nil {
					continue
				}
				v := types.NewValue(el)
				if i < len(sibArr) {
					if sib, ok := sibArr[i].(map[string]interface{}); ok {
						v = v.WithElement(sib)
					}
				}
				out = append(out, annotate(v, tag))
			}
			continue
		}

		v := types.NewValue(raw)
		if sib, ok := sibling.(map[string]interface{}); ok {
			v = v.WithElement(sib)
		}
		out = append(out, annotate(v, tag))
	}
	return out
}

func annotate(v types.Value, tag *types.TypeTag) types.Value {
	if tag != nil && v.Tag == nil {
		v.Tag = tag
	}
	return v
}

// childValues returns the immediate element values of each object,
// skipping resourceType and the underscore-prefixed primitive-element
// siblings (which travel as metadata instead).
func childValues(input types.Collection) types.Collection {
	var out types.Collection
	for _, item := range input {
		obj, ok := item.Data.(map[string]interface{})
		if !ok {
			continue
		}
		for name, raw := range obj {
			if name == "resourceType" || strings.HasPrefix(name, "_") || raw == nil {
				continue
			}
			sibling := obj["_"+name]
			if arr, isArr := raw.([]interface{}); isArr {
				sibArr, _ := sibling.([]interface{})
				for i, el := range arr {
					if el == nil {
						continue
					}
					v := types.NewValue(el)
					if i < len(sibArr) {
						if sib, ok := sibArr[i].(map[string]interface{}); ok {
							v = v.WithElement(sib)
						}
					}
					out = append(out, v)
				}
				continue
			}
			v := types.NewValue(raw)
			if sib, ok := sibling.(map[string]interface{}); ok {
				v = v.WithElement(sib)
			}
			out = append(out, v)
		}
	}
	return out
}

// normalizeTypeName strips a namespace qualifier: System.Integer and
// FHIR.Patient test as Integer and Patient.
func normalizeTypeName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// itemIsType tests a boxed value against a type name, consulting the
// model provider when available and falling back to primitive tags and
// resourceType equality.
func itemIsType(v types.Value, typeName string, ctx *runtime.Context) bool {
	target := normalizeTypeName(typeName)
	actual := v.TypeName()

	if ctx != nil && ctx.Model != nil && actual != "" {
		if info := ctx.Model.OfType(actual, target); info != nil {
			return true
		}
		// The model may not know primitives; keep checking tags below.
	}

	switch v.Data.(type) {
	case bool:
		return target == "Boolean"
	case int64:
		return target == "Integer"
	case types.Decimal:
		return target == "Decimal"
	case string:
		return target == "String"
	case types.Date:
		return target == "Date"
	case types.DateTime:
		return target == "DateTime"
	case types.Time:
		return target == "Time"
	case types.Quantity:
		return target == "Quantity"
	case map[string]interface{}:
		if actual != "" && actual == target {
			return true
		}
		if target == "Quantity" {
			return quantityShape(v)
		}
		return false
	default:
		return false
	}
}

// quantityShape recognizes an object node carrying FHIR Quantity
// elements when no model provider is available to say so.
func quantityShape(v types.Value) bool {
	obj, ok := v.Data.(map[string]interface{})
	if !ok {
		return false
	}
	value, hasValue := obj["value"]
	if !hasValue {
		return false
	}
	if _, isNum := value.(float64); !isNum {
		if _, isInt := value.(int64); !isInt {
			return false
		}
	}
	for _, key := range []string{"unit", "code", "system", "comparator"} {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

// castValue implements `as` and ofType() projection: a matching value
// passes through, objects shaped like quantities convert to the
// quantity datum, everything else is empty.
func castValue(v types.Value, typeName string, ctx *runtime.Context) types.Collection {
	if !itemIsType(v, typeName, ctx) {
		return types.EmptyCollection
	}
	if normalizeTypeName(typeName) == "Quantity" && v.IsObject() {
		if q, ok := quantityFromObject(v); ok {
			return types.Singleton(types.NewQuantity(q).WithTag("Quantity", true))
		}
	}
	return types.Singleton(v)
}

// quantityFromObject lifts a FHIR Quantity object into the quantity
// datum, preferring the UCUM code over the display unit.
func quantityFromObject(v types.Value) (types.Quantity, bool) {
	obj, ok := v.Data.(map[string]interface{})
	if !ok {
		return types.Quantity{}, false
	}
	var value float64
	switch n := obj["value"].(type) {
	case float64:
		value = n
	case int64:
		value = float64(n)
	default:
		return types.Quantity{}, false
	}
	unit := ""
	if code, ok := obj["code"].(string); ok {
		unit = code
	} else if u, ok := obj["unit"].(string); ok {
		unit = u
	}
	return types.Quantity{Value: value, Precision: -1, Unit: unit}, true
}
