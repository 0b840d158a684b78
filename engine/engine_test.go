package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fhirpath/errors"
	"fhirpath/pkg/ast"
	"fhirpath/pkg/types"
)

func resource(t *testing.T, src string) interface{} {
	t.Helper()
	var out interface{}
	require.NoError(t, json.Unmarshal([]byte(src), &out))
	return out
}

func unboxAll(c types.Collection) []interface{} {
	out := make([]interface{}, len(c))
	for i, v := range c {
		out[i] = types.Unbox(v)
	}
	return out
}

func evalStrings(t *testing.T, expr string, res interface{}) []interface{} {
	t.Helper()
	result, err := Evaluate(expr, res)
	require.NoError(t, err, "evaluate %q", expr)
	return unboxAll(result)
}

const patientJSON = `{
	"resourceType": "Patient",
	"birthDate": "1990-05-15",
	"name": [
		{"use": "official", "family": "Chalmers", "given": ["Peter", "James"]},
		{"use": "nickname", "given": ["Jim"]}
	]
}`

func TestEvaluate_Navigation(t *testing.T) {
	t.Run("nested path flattens arrays", func(t *testing.T) {
		res := resource(t, `{"name":[{"given":["John","James"]},{"given":["Johnny"]}]}`)
		got := evalStrings(t, "name.given", res)
		assert.Equal(t, []interface{}{"John", "James", "Johnny"}, got)
	})

	t.Run("where filters by criteria", func(t *testing.T) {
		res := resource(t, patientJSON)
		got := evalStrings(t, "name.where(use = 'official').given", res)
		assert.Equal(t, []interface{}{"Peter", "James"}, got)
	})

	t.Run("resource type step", func(t *testing.T) {
		res := resource(t, patientJSON)
		got := evalStrings(t, "Patient.name.family", res)
		assert.Equal(t, []interface{}{"Chalmers"}, got)

		assert.Empty(t, evalStrings(t, "Observation.name", res))
	})

	t.Run("missing property is quietly empty", func(t *testing.T) {
		res := resource(t, patientJSON)
		assert.Empty(t, evalStrings(t, "name.missing.deeper", res))
	})

	t.Run("indexer", func(t *testing.T) {
		res := resource(t, patientJSON)
		assert.Equal(t, []interface{}{"Jim"}, evalStrings(t, "name[1].given", res))
		assert.Empty(t, evalStrings(t, "name[5]", res))
		assert.Empty(t, evalStrings(t, "name[-1]", res))
	})
}

func TestEvaluate_Arithmetic(t *testing.T) {
	t.Run("precedence", func(t *testing.T) {
		assert.Equal(t, []interface{}{int64(14)}, evalStrings(t, "2 + 3 * 4", nil))
		assert.Equal(t, []interface{}{int64(20)}, evalStrings(t, "(2 + 3) * 4", nil))
	})

	t.Run("division always yields decimal", func(t *testing.T) {
		assert.Equal(t, []interface{}{2.5}, evalStrings(t, "5 / 2", nil))
	})

	t.Run("div and mod", func(t *testing.T) {
		assert.Equal(t, []interface{}{int64(2)}, evalStrings(t, "7 div 3", nil))
		assert.Equal(t, []interface{}{int64(1)}, evalStrings(t, "7 mod 3", nil))
	})

	t.Run("division by zero is empty", func(t *testing.T) {
		assert.Empty(t, evalStrings(t, "5 / 0", nil))
		assert.Empty(t, evalStrings(t, "5 div 0", nil))
		assert.Empty(t, evalStrings(t, "5 mod 0", nil))
	})

	t.Run("string concatenation", func(t *testing.T) {
		assert.Equal(t, []interface{}{"ab"}, evalStrings(t, "'a' + 'b'", nil))
		assert.Equal(t, []interface{}{"ab"}, evalStrings(t, "'a' & 'b'", nil))
		// & treats empty as the empty string; + propagates empty.
		assert.Equal(t, []interface{}{"a"}, evalStrings(t, "'a' & {}", nil))
		assert.Empty(t, evalStrings(t, "'a' + {}", nil))
	})

	t.Run("unary minus", func(t *testing.T) {
		assert.Equal(t, []interface{}{int64(-5)}, evalStrings(t, "-5", nil))
		assert.Equal(t, []interface{}{int64(2)}, evalStrings(t, "-3 + 5", nil))
	})

	t.Run("mod on non-numeric operand errors", func(t *testing.T) {
		_, err := Evaluate("'a' mod 2", nil)
		require.Error(t, err)
	})
}

func TestEvaluate_EqualityAndEquivalence(t *testing.T) {
	t.Run("string equality is case sensitive", func(t *testing.T) {
		assert.Equal(t, []interface{}{false}, evalStrings(t, "'abc' = 'ABC'", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "'abc' ~ 'ABC'", nil))
	})

	t.Run("empty rules", func(t *testing.T) {
		assert.Empty(t, evalStrings(t, "{} = {}", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "{} ~ {}", nil))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "1 ~ {}", nil))
	})

	t.Run("comparison empty propagation", func(t *testing.T) {
		assert.Empty(t, evalStrings(t, "{} < 1", nil))
		assert.Empty(t, evalStrings(t, "1 < {}", nil))
	})
}

func TestEvaluate_Collections(t *testing.T) {
	t.Run("union deduplicates", func(t *testing.T) {
		got := evalStrings(t, "(1 | 2 | 3) | (2 | 3 | 4)", nil)
		assert.Equal(t, []interface{}{int64(1), int64(2), int64(3), int64(4)}, got)
	})

	t.Run("union idempotence", func(t *testing.T) {
		got := evalStrings(t, "(1 | 2 | 3) | (1 | 2 | 3)", nil)
		assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, got)
		got = evalStrings(t, "(1 | 2) | {}", nil)
		assert.Equal(t, []interface{}{int64(1), int64(2)}, got)
	})

	t.Run("combine keeps duplicates", func(t *testing.T) {
		got := evalStrings(t, "(1 | 2 | 3).combine(2 | 3)", nil)
		assert.Equal(t, []interface{}{int64(1), int64(2), int64(3), int64(2), int64(3)}, got)
	})

	t.Run("membership", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "'5' in ('5' | '6')", nil))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "3 in ({})", nil))
		assert.Empty(t, evalStrings(t, "{} in (1)", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "('5' | '6') contains '5'", nil))
	})

	t.Run("collection literal concatenates", func(t *testing.T) {
		got := evalStrings(t, "{1, 2, 2}.count()", nil)
		assert.Equal(t, []interface{}{int64(3)}, got)
	})
}

func TestEvaluate_DefineVariable(t *testing.T) {
	t.Run("definition travels down the dot chain", func(t *testing.T) {
		res := resource(t, `{"a":{"b":10}}`)
		got := evalStrings(t, "a.defineVariable('x', 10).b.select(%x)", res)
		assert.Equal(t, []interface{}{int64(10)}, got)
	})

	t.Run("value defaults to the input", func(t *testing.T) {
		res := resource(t, `{"a":"hello"}`)
		got := evalStrings(t, "a.defineVariable('v').select(%v)", res)
		assert.Equal(t, []interface{}{"hello"}, got)
	})

	t.Run("redefinition errors", func(t *testing.T) {
		_, err := Evaluate("defineVariable('x', 1).defineVariable('x', 2)", nil)
		require.Error(t, err)
	})

	t.Run("caller variables resolve", func(t *testing.T) {
		got, err := Evaluate("%threshold + 1", nil, WithVariable("threshold", 10))
		require.NoError(t, err)
		assert.Equal(t, []interface{}{int64(11)}, unboxAll(got))
	})

	t.Run("unknown environment variable errors", func(t *testing.T) {
		_, err := Evaluate("%nope", nil)
		require.Error(t, err)
	})
}

func TestEvaluate_TypeOperators(t *testing.T) {
	observationJSON := `{
		"resourceType": "Observation",
		"value": {"value": 98.6, "unit": "F"}
	}`

	t.Run("ofType Quantity matches the quantity shape", func(t *testing.T) {
		res := resource(t, observationJSON)
		result, err := Evaluate("Observation.value.ofType(Quantity)", res)
		require.NoError(t, err)
		require.Len(t, result, 1)
		q, ok := result[0].AsQuantity()
		require.True(t, ok)
		assert.Equal(t, 98.6, q.Value)
		assert.Equal(t, "F", q.Unit)
	})

	t.Run("ofType Boolean on the same value is empty", func(t *testing.T) {
		res := resource(t, observationJSON)
		assert.Empty(t, evalStrings(t, "Observation.value.ofType(Boolean)", res))
	})

	t.Run("is and as on primitives", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "5 is Integer", nil))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "5 is String", nil))
		assert.Equal(t, []interface{}{int64(5)}, evalStrings(t, "5 as Integer", nil))
		assert.Empty(t, evalStrings(t, "5 as String", nil))
		assert.Empty(t, evalStrings(t, "{} is Integer", nil))
	})

	t.Run("namespace qualifiers normalize", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "5 is System.Integer", nil))
	})
}

func TestEvaluate_Iif(t *testing.T) {
	assert.Equal(t, []interface{}{int64(1)}, evalStrings(t, "iif(true, 1, 2)", nil))
	assert.Equal(t, []interface{}{int64(2)}, evalStrings(t, "iif(false, 1, 2)", nil))
	assert.Empty(t, evalStrings(t, "iif({}, 1)", nil))
	assert.Empty(t, evalStrings(t, "iif(false, 1)", nil))

	t.Run("untaken branch is never evaluated", func(t *testing.T) {
		// The else branch would error on evaluation.
		got := evalStrings(t, "iif(true, 1, 'a' mod 2)", nil)
		assert.Equal(t, []interface{}{int64(1)}, got)
	})
}

func TestEvaluate_DateArithmetic(t *testing.T) {
	t.Run("age check against calendar years", func(t *testing.T) {
		res := resource(t, patientJSON)
		got := evalStrings(t, "today() - birthDate.toDateTime() >= 18 years", res)
		assert.Equal(t, []interface{}{true}, got)
	})

	t.Run("date plus calendar quantity", func(t *testing.T) {
		got, err := Evaluate("@2012-04-15 + 1 month", nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		d, ok := got[0].Data.(types.Date)
		require.True(t, ok)
		assert.Equal(t, 5, d.Month)
	})

	t.Run("incommensurable comparison is empty", func(t *testing.T) {
		assert.Empty(t, evalStrings(t, "4 'kg' > 2 'm'", nil))
	})

	t.Run("incommensurable arithmetic errors", func(t *testing.T) {
		_, err := Evaluate("4 'kg' + 2 'm'", nil)
		require.Error(t, err)
	})

	t.Run("quantity comparison converts units", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "1 'kg' > 900 'g'", nil))
	})
}

func TestEvaluate_FailureSemantics(t *testing.T) {
	t.Run("singleton required for comparison", func(t *testing.T) {
		res := resource(t, patientJSON)
		_, err := Evaluate("name.given < 'x'", res)
		require.Error(t, err)
	})

	t.Run("wrong arity", func(t *testing.T) {
		_, err := Evaluate("substring()", resource(t, `"abc"`))
		require.Error(t, err)
	})

	t.Run("unknown function", func(t *testing.T) {
		_, err := Evaluate("nothingHere()", nil)
		require.Error(t, err)
	})

	t.Run("evaluation errors carry a range", func(t *testing.T) {
		_, err := Evaluate("1 + ('a' mod 2)", nil)
		require.Error(t, err)
		ee, ok := errors.AsEvalError(err)
		require.True(t, ok)
		assert.NotEqual(t, ast.Range{}, ee.Range)
	})
}

func TestEvaluate_Compile(t *testing.T) {
	expr, err := Compile("name.given.count()")
	require.NoError(t, err)
	assert.Equal(t, "name.given.count()", expr.Source())
	require.NotNil(t, expr.AST())

	res := resource(t, patientJSON)
	got, err := expr.Evaluate(res)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(3)}, unboxAll(got))

	// Reuse on another resource.
	got, err = expr.Evaluate(resource(t, `{"name":[{"given":["X"]}]}`))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1)}, unboxAll(got))
}

func TestInspect(t *testing.T) {
	t.Run("captures traces and timing", func(t *testing.T) {
		res := resource(t, patientJSON)
		result, err := Inspect("name.trace('names').given.count()", res)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{int64(3)}, unboxAll(result.Result))
		require.Len(t, result.Traces, 1)
		assert.Equal(t, "names", result.Traces[0].Name)
		assert.Len(t, result.Traces[0].Values, 2)
		assert.NotNil(t, result.AST)
		assert.Greater(t, result.Duration.Nanoseconds(), int64(0))
	})

	t.Run("trace with projection logs the projection", func(t *testing.T) {
		res := resource(t, patientJSON)
		result, err := Inspect("name.trace('uses', use).count()", res)
		require.NoError(t, err)
		require.Len(t, result.Traces, 1)
		assert.Equal(t, []interface{}{"official", "nickname"}, unboxAll(result.Traces[0].Values))
	})

	t.Run("parse errors are reported not thrown", func(t *testing.T) {
		result, err := Inspect("1 + ", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, result.Errors)
	})

	t.Run("eval errors are recorded and re-exposed", func(t *testing.T) {
		result, err := Inspect("'a' mod 2", nil)
		require.Error(t, err)
		assert.Equal(t, err, result.Err)
	})
}
