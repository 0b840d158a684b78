package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBoolean(t *testing.T) {
	trueWords := []string{"true", "T", "yes", "Y", "1", "1.0"}
	for _, w := range trueWords {
		b, ok := ToBoolean(NewString(w))
		require.True(t, ok, "%q", w)
		assert.True(t, b, "%q", w)
	}
	falseWords := []string{"false", "F", "no", "N", "0", "0.0"}
	for _, w := range falseWords {
		b, ok := ToBoolean(NewString(w))
		require.True(t, ok, "%q", w)
		assert.False(t, b, "%q", w)
	}
	_, ok := ToBoolean(NewString("maybe"))
	assert.False(t, ok)

	b, ok := ToBoolean(NewInteger(1))
	require.True(t, ok)
	assert.True(t, b)
	_, ok = ToBoolean(NewInteger(7))
	assert.False(t, ok)
}

func TestToInteger(t *testing.T) {
	i, ok := ToInteger(NewString("42"))
	require.True(t, ok)
	assert.Equal(t, int64(42), i)

	_, ok = ToInteger(NewString("4.2"))
	assert.False(t, ok)

	_, ok = ToInteger(NewDecimal(4.2))
	assert.False(t, ok, "decimals do not convert to integer")

	i, ok = ToInteger(NewBoolean(true))
	require.True(t, ok)
	assert.Equal(t, int64(1), i)
}

func TestToDecimal(t *testing.T) {
	d, ok := ToDecimal(NewString("3.14"))
	require.True(t, ok)
	assert.Equal(t, 3.14, d.Value)
	assert.Equal(t, 2, d.Precision)

	d, ok = ToDecimal(NewInteger(3))
	require.True(t, ok)
	assert.Equal(t, 3.0, d.Value)

	_, ok = ToDecimal(NewString("NaN"))
	assert.False(t, ok)
}

func TestToQuantityValue(t *testing.T) {
	q, ok := ToQuantityValue(NewString("4.5 'mg'"))
	require.True(t, ok)
	assert.Equal(t, "mg", q.Unit)

	q, ok = ToQuantityValue(NewInteger(5))
	require.True(t, ok)
	assert.Equal(t, "1", q.Unit)

	_, ok = ToQuantityValue(NewString("not a quantity"))
	assert.False(t, ok)
}

func TestToStringValue(t *testing.T) {
	s, ok := ToStringValue(NewInteger(42))
	require.True(t, ok)
	assert.Equal(t, "42", s)

	s, ok = ToStringValue(NewBoolean(true))
	require.True(t, ok)
	assert.Equal(t, "true", s)

	_, ok = ToStringValue(NewObject(map[string]interface{}{"a": 1}))
	assert.False(t, ok)
}

func TestTemporalConversions(t *testing.T) {
	t.Run("string to date", func(t *testing.T) {
		d, ok := ToDateValue(NewString("2012-04-15"))
		require.True(t, ok)
		assert.Equal(t, PrecDay, d.Precision)
	})

	t.Run("date widens to datetime", func(t *testing.T) {
		d, _ := ParseDate("2012-04-15")
		dt, ok := ToDateTimeValue(Value{Data: d})
		require.True(t, ok)
		assert.Equal(t, 2012, dt.Year)
	})

	t.Run("datetime narrows to date", func(t *testing.T) {
		dt, _ := ParseDateTime("2012-04-15T10:00:00Z")
		d, ok := ToDateValue(Value{Data: dt})
		require.True(t, ok)
		assert.Equal(t, PrecDay, d.Precision)
		assert.Equal(t, 15, d.Day)
	})

	t.Run("bad strings do not convert", func(t *testing.T) {
		_, ok := ToDateValue(NewString("not a date"))
		assert.False(t, ok)
		_, ok = ToTimeValue(NewString("99:99"))
		assert.False(t, ok)
	})
}

func TestTernaryTables(t *testing.T) {
	T, F, U := TernaryTrue, TernaryFalse, TernaryUnknown

	t.Run("and", func(t *testing.T) {
		assert.Equal(t, U, T.And(U))
		assert.Equal(t, F, F.And(U))
		assert.Equal(t, F, U.And(F))
		assert.Equal(t, T, T.And(T))
	})

	t.Run("or", func(t *testing.T) {
		assert.Equal(t, T, T.Or(U))
		assert.Equal(t, U, U.Or(U))
		assert.Equal(t, U, F.Or(U))
	})

	t.Run("xor", func(t *testing.T) {
		assert.Equal(t, U, T.Xor(U))
		assert.Equal(t, T, T.Xor(F))
		assert.Equal(t, F, T.Xor(T))
	})

	t.Run("implies", func(t *testing.T) {
		assert.Equal(t, T, U.Implies(T))
		assert.Equal(t, T, F.Implies(U))
		assert.Equal(t, U, U.Implies(F))
		assert.Equal(t, U, T.Implies(U))
	})

	t.Run("not", func(t *testing.T) {
		assert.Equal(t, F, T.Not())
		assert.Equal(t, U, U.Not())
	})
}
