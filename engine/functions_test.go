package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExistenceFunctions(t *testing.T) {
	res := resource(t, patientJSON)

	t.Run("empty and exists", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "{}.empty()", nil))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "name.empty()", res))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "name.exists()", res))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "name.exists(use = 'official')", res))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "name.exists(use = 'maiden')", res))
	})

	t.Run("all is vacuously true on empty", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "{}.all(true)", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "name.all(given.exists())", res))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "name.all(use = 'official')", res))
	})

	t.Run("boolean aggregates", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "(true | false).anyTrue()", nil))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "(true | false).allTrue()", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "(false).allFalse()", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "(true | false).anyFalse()", nil))
	})

	t.Run("subsetOf and supersetOf", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "(1 | 2).subsetOf(1 | 2 | 3)", nil))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "(1 | 4).subsetOf(1 | 2 | 3)", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "(1 | 2 | 3).supersetOf(1 | 2)", nil))
	})

	t.Run("distinct and isDistinct", func(t *testing.T) {
		assert.Equal(t, []interface{}{int64(3)}, evalStrings(t, "{1, 2, 2, 3, 1}.distinct().count()", nil))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "{1, 1}.isDistinct()", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "(1 | 2).isDistinct()", nil))
	})
}

func TestSubsettingFunctions(t *testing.T) {
	t.Run("first last tail", func(t *testing.T) {
		assert.Equal(t, []interface{}{int64(1)}, evalStrings(t, "(1 | 2 | 3).first()", nil))
		assert.Equal(t, []interface{}{int64(3)}, evalStrings(t, "(1 | 2 | 3).last()", nil))
		assert.Equal(t, []interface{}{int64(2), int64(3)}, evalStrings(t, "(1 | 2 | 3).tail()", nil))
		assert.Empty(t, evalStrings(t, "{}.first()", nil))
	})

	t.Run("skip and take", func(t *testing.T) {
		assert.Equal(t, []interface{}{int64(3)}, evalStrings(t, "(1 | 2 | 3).skip(2)", nil))
		assert.Equal(t, []interface{}{int64(1), int64(2)}, evalStrings(t, "(1 | 2 | 3).take(2)", nil))
		assert.Empty(t, evalStrings(t, "(1 | 2).skip(5)", nil))
		assert.Empty(t, evalStrings(t, "(1 | 2).take(0)", nil))
	})

	t.Run("single", func(t *testing.T) {
		assert.Equal(t, []interface{}{int64(1)}, evalStrings(t, "(1).single()", nil))
		assert.Empty(t, evalStrings(t, "{}.single()", nil))
		_, err := Evaluate("(1 | 2).single()", nil)
		require.Error(t, err)
	})

	t.Run("intersect deduplicates", func(t *testing.T) {
		got := evalStrings(t, "{1, 2, 2, 3}.intersect(2 | 3 | 4)", nil)
		assert.Equal(t, []interface{}{int64(2), int64(3)}, got)
	})

	t.Run("exclude preserves duplicates", func(t *testing.T) {
		got := evalStrings(t, "{1, 2, 1, 3}.exclude(3)", nil)
		assert.Equal(t, []interface{}{int64(1), int64(2), int64(1)}, got)
	})
}

func TestProjectionFunctions(t *testing.T) {
	res := resource(t, patientJSON)

	t.Run("select flattens one level", func(t *testing.T) {
		got := evalStrings(t, "name.select(given)", res)
		assert.Equal(t, []interface{}{"Peter", "James", "Jim"}, got)
	})

	t.Run("select sees iterator variables", func(t *testing.T) {
		got := evalStrings(t, "(10 | 20).select($index)", nil)
		assert.Equal(t, []interface{}{int64(0), int64(1)}, got)
		got = evalStrings(t, "(10 | 20).select($this + 1)", nil)
		assert.Equal(t, []interface{}{int64(11), int64(21)}, got)
	})

	t.Run("repeat expands until fixpoint", func(t *testing.T) {
		tree := resource(t, `{"item":[{"name":"a","item":[{"name":"b"}]},{"name":"c"}]}`)
		got := evalStrings(t, "repeat(item).name", tree)
		assert.ElementsMatch(t, []interface{}{"a", "b", "c"}, got)
	})

	t.Run("repeat deduplicates to terminate", func(t *testing.T) {
		got := evalStrings(t, "(1 | 2).repeat($this)", nil)
		assert.ElementsMatch(t, []interface{}{int64(1), int64(2)}, got)
	})

	t.Run("aggregate", func(t *testing.T) {
		got := evalStrings(t, "(1 | 2 | 3 | 4).aggregate($this + $total, 0)", nil)
		assert.Equal(t, []interface{}{int64(10)}, got)
	})

	t.Run("aggregate without init starts empty", func(t *testing.T) {
		got := evalStrings(t, "(1 | 2 | 3).aggregate(iif($total.empty(), $this, iif($this < $total, $this, $total)))", nil)
		assert.Equal(t, []interface{}{int64(1)}, got)
	})
}

func TestStringFunctions(t *testing.T) {
	str := resource(t, `{"s": "Hello, World"}`)

	cases := []struct {
		expr string
		want []interface{}
	}{
		{"s.length()", []interface{}{int64(12)}},
		{"s.upper()", []interface{}{"HELLO, WORLD"}},
		{"s.lower()", []interface{}{"hello, world"}},
		{"s.startsWith('Hello')", []interface{}{true}},
		{"s.endsWith('World')", []interface{}{true}},
		{"s.contains('o, W')", []interface{}{true}},
		{"s.indexOf('World')", []interface{}{int64(7)}},
		{"s.indexOf('xyz')", []interface{}{int64(-1)}},
		{"s.substring(7)", []interface{}{"World"}},
		{"s.substring(0, 5)", []interface{}{"Hello"}},
		{"s.substring(40)", nil},
		{"s.replace('World', 'there')", []interface{}{"Hello, there"}},
		{"s.matches('^Hello')", []interface{}{true}},
		{"s.replaceMatches('W.rld', 'Earth')", []interface{}{"Hello, Earth"}},
		{"s.split(', ').count()", []interface{}{int64(2)}},
		{"'  x  '.trim()", []interface{}{"x"}},
		{"s.toChars().first()", []interface{}{"H"}},
		{"('a' | 'b' | 'c').join('-')", []interface{}{"a-b-c"}},
		{"('a' | 'b').join()", []interface{}{"ab"}},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got := evalStrings(t, tc.expr, str)
			if tc.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tc.want, got)
			}
		})
	}

	t.Run("encode and decode round-trip", func(t *testing.T) {
		assert.Equal(t, []interface{}{"aGVsbG8="}, evalStrings(t, "'hello'.encode('base64')", nil))
		assert.Equal(t, []interface{}{"hello"}, evalStrings(t, "'aGVsbG8='.decode('base64')", nil))
		assert.Equal(t, []interface{}{"68656c6c6f"}, evalStrings(t, "'hello'.encode('hex')", nil))
		assert.Empty(t, evalStrings(t, "'not base64!'.decode('base64')", nil))
		_, err := Evaluate("'x'.encode('rot13')", nil)
		require.Error(t, err)
	})

	t.Run("escape and unescape", func(t *testing.T) {
		assert.Equal(t, []interface{}{"&lt;b&gt;"}, evalStrings(t, "'<b>'.escape('html')", nil))
		assert.Equal(t, []interface{}{"<b>"}, evalStrings(t, "'&lt;b&gt;'.unescape('html')", nil))
		got := evalStrings(t, `'a"b'.escape('json')`, nil)
		assert.Equal(t, []interface{}{`a\"b`}, got)
	})

	t.Run("string function on non-string errors", func(t *testing.T) {
		_, err := Evaluate("(1).upper()", nil)
		require.Error(t, err)
	})

	t.Run("empty focus propagates", func(t *testing.T) {
		assert.Empty(t, evalStrings(t, "{}.upper()", nil))
	})

	t.Run("invalid regex errors", func(t *testing.T) {
		_, err := Evaluate("'a'.matches('[')", nil)
		require.Error(t, err)
	})
}

func TestMathFunctions(t *testing.T) {
	cases := []struct {
		expr string
		want []interface{}
	}{
		{"(-5).abs()", []interface{}{int64(5)}},
		{"(-5.5).abs()", []interface{}{5.5}},
		{"(2.4).ceiling()", []interface{}{int64(3)}},
		{"(2.6).floor()", []interface{}{int64(2)}},
		{"(2.7).truncate()", []interface{}{int64(2)}},
		{"(2.5).round()", []interface{}{3.0}},
		{"(3.14159).round(2)", []interface{}{3.14}},
		{"(2).power(10)", []interface{}{int64(1024)}},
		{"(-1).sqrt()", nil},
		{"(4).sqrt()", []interface{}{2.0}},
		{"(0).ln()", nil},
		{"(100).log(10)", []interface{}{2.0}},
		{"(1).exp()", []interface{}{2.718281828459045}},
		{"(-1).power(0.5)", nil},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got := evalStrings(t, tc.expr, nil)
			if tc.want == nil {
				assert.Empty(t, got)
			} else {
				require.Len(t, got, 1)
				switch want := tc.want[0].(type) {
				case float64:
					assert.InDelta(t, want, got[0].(float64), 1e-9)
				default:
					assert.Equal(t, tc.want, got)
				}
			}
		})
	}
}

func TestNavigationFunctions(t *testing.T) {
	res := resource(t, `{
		"resourceType": "Patient",
		"id": "p1",
		"name": [{"family": "Chalmers", "given": ["Peter"]}],
		"active": true
	}`)

	t.Run("children returns immediate values", func(t *testing.T) {
		got := evalStrings(t, "children().count()", res)
		// id, one name object, active; resourceType is skipped.
		assert.Equal(t, []interface{}{int64(3)}, got)
	})

	t.Run("descendants excludes the input", func(t *testing.T) {
		got := evalStrings(t, "descendants().count()", res)
		// children (3) + name's family and given (2).
		assert.Equal(t, []interface{}{int64(5)}, got)
	})
}

func TestConversionFunctions(t *testing.T) {
	cases := []struct {
		expr string
		want []interface{}
	}{
		{"'true'.toBoolean()", []interface{}{true}},
		{"'no'.toBoolean()", []interface{}{false}},
		{"'maybe'.toBoolean()", nil},
		{"'maybe'.convertsToBoolean()", []interface{}{false}},
		{"'42'.toInteger()", []interface{}{int64(42)}},
		{"true.toInteger()", []interface{}{int64(1)}},
		{"'3.14'.toDecimal()", []interface{}{3.14}},
		{"42.toString()", []interface{}{"42"}},
		{"'2012-04-15'.convertsToDate()", []interface{}{true}},
		{"'abc'.convertsToDate()", []interface{}{false}},
		{"'4 days'.toQuantity().value", nil},
		{"{}.toInteger()", nil},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got := evalStrings(t, tc.expr, nil)
			if tc.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tc.want, got)
			}
		})
	}

	t.Run("toQuantity converts into a requested unit", func(t *testing.T) {
		got, err := Evaluate("(1 'kg').toQuantity('g')", nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		q, ok := got[0].AsQuantity()
		require.True(t, ok)
		assert.Equal(t, 1000.0, q.Value)
		assert.Equal(t, "g", q.Unit)

		// Incommensurable target is a quiet empty.
		got, err = Evaluate("(1 'kg').toQuantity('m')", nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("toQuantity parses calendar strings", func(t *testing.T) {
		got, err := Evaluate("'4 days'.toQuantity()", nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		q, ok := got[0].AsQuantity()
		require.True(t, ok)
		assert.Equal(t, 4.0, q.Value)
		assert.Equal(t, "day", q.Unit)
	})
}

func TestThreeValuedLogic(t *testing.T) {
	cases := []struct {
		expr string
		want []interface{}
	}{
		{"true and {}", nil},
		{"false and {}", []interface{}{false}},
		{"true or {}", []interface{}{true}},
		{"{} or {}", nil},
		{"{} implies true", []interface{}{true}},
		{"false implies {}", []interface{}{true}},
		{"true implies {}", nil},
		{"{} xor true", nil},
		{"true xor false", []interface{}{true}},
		{"(1 = 1) and (2 = 2)", []interface{}{true}},
		{"{}.not()", nil},
		{"false.not()", []interface{}{true}},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got := evalStrings(t, tc.expr, nil)
			if tc.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tc.want, got)
			}
		})
	}

	t.Run("short-circuit skips the right side", func(t *testing.T) {
		// 'a' mod 2 would error if evaluated.
		assert.Equal(t, []interface{}{false}, evalStrings(t, "false and ('a' mod 2 = 1)", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "true or ('a' mod 2 = 1)", nil))
	})
}
