package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEmptyPropagation sweeps the singleton operators against an empty
// operand on either side; the documented exceptions (logical
// operators, equivalence, union, string concatenation) keep their own
// semantics.
func TestEmptyPropagation(t *testing.T) {
	propagating := []string{"+", "-", "*", "/", "div", "mod", "=", "!=", "<", "<=", ">", ">=", "in"}
	for _, op := range propagating {
		t.Run(op, func(t *testing.T) {
			got := evalStrings(t, fmt.Sprintf("{} %s 1", op), nil)
			assert.Empty(t, got, "{} %s 1", op)
			if op != "in" {
				got = evalStrings(t, fmt.Sprintf("1 %s {}", op), nil)
				assert.Empty(t, got, "1 %s {}", op)
			}
		})
	}

	t.Run("exceptions keep defined results", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "{} ~ {}", nil))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "{} !~ {}", nil))
		assert.Equal(t, []interface{}{int64(1)}, evalStrings(t, "{} | 1", nil))
		assert.Equal(t, []interface{}{"x"}, evalStrings(t, "{} & 'x'", nil))
		assert.Equal(t, []interface{}{false}, evalStrings(t, "false and {}", nil))
		assert.Equal(t, []interface{}{true}, evalStrings(t, "true or {}", nil))
	})
}

func TestComparisonOperators(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 2", true},
		{"2 >= 3", false},
		{"'abc' < 'abd'", true},
		{"@2012-04-15 < @2012-05-15", true},
		{"@T10:30 < @T11:00", true},
		{"1.5 > 1", true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			assert.Equal(t, []interface{}{tc.want}, evalStrings(t, tc.expr, nil))
		})
	}

	t.Run("mixed types error", func(t *testing.T) {
		_, err := Evaluate("1 < 'a'", nil)
		require.Error(t, err)
	})

	t.Run("mixed precision dates are empty", func(t *testing.T) {
		assert.Empty(t, evalStrings(t, "@2012 < @2012-05", nil))
	})

	t.Run("number compares against dimensionless quantity", func(t *testing.T) {
		assert.Equal(t, []interface{}{true}, evalStrings(t, "5 > 4 '1'", nil))
	})
}

func TestUnaryOperators(t *testing.T) {
	assert.Equal(t, []interface{}{int64(-5)}, evalStrings(t, "-5", nil))
	assert.Equal(t, []interface{}{int64(5)}, evalStrings(t, "+5", nil))
	assert.Equal(t, []interface{}{-2.5}, evalStrings(t, "-2.5", nil))
	assert.Empty(t, evalStrings(t, "-{}", nil))

	t.Run("negated quantity", func(t *testing.T) {
		got, err := Evaluate("-(4 'mg')", nil)
		require.NoError(t, err)
		q, ok := got[0].AsQuantity()
		require.True(t, ok)
		assert.Equal(t, -4.0, q.Value)
	})

	t.Run("unary on non-number errors", func(t *testing.T) {
		_, err := Evaluate("-'a'", nil)
		require.Error(t, err)
		_, err = Evaluate("+'a'", nil)
		require.Error(t, err)
	})
}

func TestExtensionOperator(t *testing.T) {
	// The default registry knows the core binary operators and has no
	// `**` extension registered.
	eng := New()
	reg := eng.Registry()
	require.True(t, reg.IsBinaryOperator("+"))
	assert.False(t, reg.IsBinaryOperator("**"))
}
