// Package shared centralizes the display formatting of evaluation
// results for the REPL and the CLI.
package shared

import (
	"encoding/json"
	"fmt"
	"strings"

	"fhirpath/pkg/types"
)

// FormatValueForDisplay formats a single boxed value for display.
// Strings are quoted, quantities keep their unit form, object nodes
// render as compact JSON.
func FormatValueForDisplay(v types.Value) string {
	switch d := v.Data.(type) {
	case string:
		return "'" + d + "'"
	case map[string]interface{}:
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprintf("%v", d)
		}
		return string(data)
	case types.Date, types.DateTime, types.Time:
		return "@" + v.String()
	case nil:
		return "{}"
	default:
		return v.String()
	}
}

// FormatCollection formats a result collection: empty renders as { },
// a singleton as its value, anything longer as a bracketed list.
func FormatCollection(c types.Collection) string {
	switch len(c) {
	case 0:
		return "{ }"
	case 1:
		return FormatValueForDisplay(c[0])
	default:
		parts := make([]string, len(c))
		for i, v := range c {
			parts[i] = FormatValueForDisplay(v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

// FormatJSON renders a collection as a JSON array of unboxed values,
// the shape batch mode emits.
func FormatJSON(c types.Collection) (string, error) {
	raw := make([]interface{}, len(c))
	for i, v := range c {
		raw[i] = jsonValue(v)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func jsonValue(v types.Value) interface{} {
	switch d := v.Data.(type) {
	case types.Date, types.DateTime, types.Time:
		return v.String()
	case types.Quantity:
		out := map[string]interface{}{"value": d.Value}
		if d.Unit != "" {
			out["unit"] = d.Unit
		}
		return out
	default:
		return types.Unbox(v)
	}
}
