package engine

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"fhirpath/errors"
	"fhirpath/pkg/registry"
	"fhirpath/pkg/types"
)

func registerStringFunctions(reg *registry.Registry) {
	// stringFn registers a function over a singleton String focus.
	stringFn := func(name string, args []registry.ArgDescriptor, fn func(inv *registry.Invocation, s string) (types.Collection, error)) {
		reg.RegisterBuiltin(&registry.FunctionEntry{
			Name:           name,
			Args:           args,
			InputType:      "String",
			PropagateEmpty: true,
			Call: func(inv *registry.Invocation) (types.Collection, error) {
				v, ok, err := singletonInput(inv, name+"()")
				if err != nil || !ok {
					return types.EmptyCollection, err
				}
				s, _ := v.AsString()
				return fn(inv, s)
			},
		})
	}

	stringFn("indexOf", []registry.ArgDescriptor{eagerArgDesc("substring", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			sub, ok, err := stringArg(inv, 0, "indexOf() substring")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			return types.Singleton(types.NewInteger(int64(strings.Index(s, sub)))), nil
		})

	stringFn("substring", []registry.ArgDescriptor{
		eagerArgDesc("start", "Integer"), eagerOptArg("length", "Integer"),
	}, func(inv *registry.Invocation, s string) (types.Collection, error) {
		start, ok, err := integerArg(inv, 0, "substring() start")
		if err != nil || !ok {
			return types.EmptyCollection, err
		}
		runes := []rune(s)
		if start < 0 || int(start) >= len(runes) {
			return types.EmptyCollection, nil
		}
		end := len(runes)
		if len(inv.Args) > 1 {
			length, ok, err := integerArg(inv, 1, "substring() length")
			if err != nil {
				return nil, err
			}
			if ok {
				if length <= 0 {
					return types.EmptyCollection, nil
				}
				if int(start+length) < end {
					end = int(start + length)
				}
			}
		}
		return types.Singleton(types.NewString(string(runes[start:end]))), nil
	})

	stringFn("startsWith", []registry.ArgDescriptor{eagerArgDesc("prefix", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			prefix, ok, err := stringArg(inv, 0, "startsWith() prefix")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			return types.BooleanCollection(strings.HasPrefix(s, prefix)), nil
		})

	stringFn("endsWith", []registry.ArgDescriptor{eagerArgDesc("suffix", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			suffix, ok, err := stringArg(inv, 0, "endsWith() suffix")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			return types.BooleanCollection(strings.HasSuffix(s, suffix)), nil
		})

	stringFn("contains", []registry.ArgDescriptor{eagerArgDesc("substring", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			sub, ok, err := stringArg(inv, 0, "contains() substring")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			return types.BooleanCollection(strings.Contains(s, sub)), nil
		})

	stringFn("upper", nil, func(_ *registry.Invocation, s string) (types.Collection, error) {
		return types.Singleton(types.NewString(strings.ToUpper(s))), nil
	})

	stringFn("lower", nil, func(_ *registry.Invocation, s string) (types.Collection, error) {
		return types.Singleton(types.NewString(strings.ToLower(s))), nil
	})

	stringFn("replace", []registry.ArgDescriptor{
		eagerArgDesc("pattern", "String"), eagerArgDesc("substitution", "String"),
	}, func(inv *registry.Invocation, s string) (types.Collection, error) {
		pattern, ok1, err := stringArg(inv, 0, "replace() pattern")
		if err != nil {
			return nil, err
		}
		substitution, ok2, err := stringArg(inv, 1, "replace() substitution")
		if err != nil {
			return nil, err
		}
		if !ok1 || !ok2 {
			return types.EmptyCollection, nil
		}
		return types.Singleton(types.NewString(strings.ReplaceAll(s, pattern, substitution))), nil
	})

	stringFn("matches", []registry.ArgDescriptor{eagerArgDesc("regex", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			pattern, ok, err := stringArg(inv, 0, "matches() regex")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
					"invalid regular expression %q", pattern)
			}
			return types.BooleanCollection(re.MatchString(s)), nil
		})

	stringFn("replaceMatches", []registry.ArgDescriptor{
		eagerArgDesc("regex", "String"), eagerArgDesc("substitution", "String"),
	}, func(inv *registry.Invocation, s string) (types.Collection, error) {
		pattern, ok1, err := stringArg(inv, 0, "replaceMatches() regex")
		if err != nil {
			return nil, err
		}
		substitution, ok2, err := stringArg(inv, 1, "replaceMatches() substitution")
		if err != nil {
			return nil, err
		}
		if !ok1 || !ok2 {
			return types.EmptyCollection, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
				"invalid regular expression %q", pattern)
		}
		return types.Singleton(types.NewString(re.ReplaceAllString(s, substitution))), nil
	})

	stringFn("length", nil, func(_ *registry.Invocation, s string) (types.Collection, error) {
		return types.Singleton(types.NewInteger(int64(len([]rune(s))))), nil
	})

	stringFn("toChars", nil, func(_ *registry.Invocation, s string) (types.Collection, error) {
		var out types.Collection
		for _, r := range s {
			out = append(out, types.NewString(string(r)))
		}
		return out, nil
	})

	stringFn("split", []registry.ArgDescriptor{eagerArgDesc("separator", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			sep, ok, err := stringArg(inv, 0, "split() separator")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			var out types.Collection
			for _, part := range strings.Split(s, sep) {
				out = append(out, types.NewString(part))
			}
			return out, nil
		})

	stringFn("trim", nil, func(_ *registry.Invocation, s string) (types.Collection, error) {
		return types.Singleton(types.NewString(strings.TrimSpace(s))), nil
	})

	stringFn("encode", []registry.ArgDescriptor{eagerArgDesc("format", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			format, ok, err := stringArg(inv, 0, "encode() format")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			switch format {
			case "base64":
				return types.Singleton(types.NewString(base64.StdEncoding.EncodeToString([]byte(s)))), nil
			case "urlbase64":
				return types.Singleton(types.NewString(base64.URLEncoding.EncodeToString([]byte(s)))), nil
			case "hex":
				return types.Singleton(types.NewString(hex.EncodeToString([]byte(s)))), nil
			default:
				return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
					"unsupported encoding %q", format)
			}
		})

	stringFn("decode", []registry.ArgDescriptor{eagerArgDesc("format", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			format, ok, err := stringArg(inv, 0, "decode() format")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			var decoded []byte
			var decodeErr error
			switch format {
			case "base64":
				decoded, decodeErr = base64.StdEncoding.DecodeString(s)
			case "urlbase64":
				decoded, decodeErr = base64.URLEncoding.DecodeString(s)
			case "hex":
				decoded, decodeErr = hex.DecodeString(s)
			default:
				return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
					"unsupported encoding %q", format)
			}
			if decodeErr != nil {
				return types.EmptyCollection, nil
			}
			return types.Singleton(types.NewString(string(decoded))), nil
		})

	stringFn("escape", []registry.ArgDescriptor{eagerArgDesc("target", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			target, ok, err := stringArg(inv, 0, "escape() target")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			switch target {
			case "html":
				return types.Singleton(types.NewString(html.EscapeString(s))), nil
			case "json":
				data, err := json.Marshal(s)
				if err != nil {
					return types.EmptyCollection, nil
				}
				return types.Singleton(types.NewString(string(data[1 : len(data)-1]))), nil
			default:
				return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
					"unsupported escape target %q", target)
			}
		})

	stringFn("unescape", []registry.ArgDescriptor{eagerArgDesc("target", "String")},
		func(inv *registry.Invocation, s string) (types.Collection, error) {
			target, ok, err := stringArg(inv, 0, "unescape() target")
			if err != nil || !ok {
				return types.EmptyCollection, err
			}
			switch target {
			case "html":
				return types.Singleton(types.NewString(html.UnescapeString(s))), nil
			case "json":
				var out string
				if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
					return types.EmptyCollection, nil
				}
				return types.Singleton(types.NewString(out)), nil
			default:
				return nil, errors.NewAt(errors.CodeInvalidOperandType, inv.Node,
					"unsupported escape target %q", target)
			}
		})

	// join works on a collection of strings, not a singleton.
	reg.RegisterBuiltin(&registry.FunctionEntry{
		Name: "join",
		Args: []registry.ArgDescriptor{eagerOptArg("separator", "String")},
		Call: func(inv *registry.Invocation) (types.Collection, error) {
			sep := ""
			if len(inv.Args) > 0 {
				s, ok, err := stringArg(inv, 0, "join() separator")
				if err != nil {
					return nil, err
				}
				if ok {
					sep = s
				}
			}
			parts := make([]string, 0, len(inv.Input))
			for _, item := range inv.Input {
				s, ok := item.AsString()
				if !ok {
					return nil, errors.NewAt(errors.CodeStringOpOnNonString, inv.Node,
						"join() requires String items, got %s", item.TypeName())
				}
				parts = append(parts, s)
			}
			return types.Singleton(types.NewString(strings.Join(parts, sep))), nil
		},
	})
}
