package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_Compare(t *testing.T) {
	t.Run("equal units short-circuit", func(t *testing.T) {
		a := Quantity{Value: 5, Unit: "widgets"}
		b := Quantity{Value: 3, Unit: "widgets"}
		cmp, ok := CompareQuantities(a, b)
		require.True(t, ok)
		assert.Equal(t, 1, cmp)
	})

	t.Run("convertible units compare after conversion", func(t *testing.T) {
		a := Quantity{Value: 1, Unit: "kg"}
		b := Quantity{Value: 1000, Unit: "g"}
		cmp, ok := CompareQuantities(a, b)
		require.True(t, ok)
		assert.Equal(t, 0, cmp)
	})

	t.Run("incommensurable units are undefined", func(t *testing.T) {
		a := Quantity{Value: 1, Unit: "kg"}
		b := Quantity{Value: 1, Unit: "m"}
		_, ok := CompareQuantities(a, b)
		assert.False(t, ok)
	})

	t.Run("calendar vs UCUM time units", func(t *testing.T) {
		a := Quantity{Value: 2, Unit: "year", Calendar: true}
		b := Quantity{Value: 1, Unit: "a"}
		cmp, ok := CompareQuantities(a, b)
		require.True(t, ok)
		assert.Equal(t, 1, cmp)
	})
}

func TestQuantity_Arithmetic(t *testing.T) {
	t.Run("addition in left unit", func(t *testing.T) {
		sum, err := AddQuantities(Quantity{Value: 1, Unit: "kg"}, Quantity{Value: 500, Unit: "g"})
		require.NoError(t, err)
		assert.InDelta(t, 1.5, sum.Value, 1e-9)
		assert.Equal(t, "kg", sum.Unit)
	})

	t.Run("incommensurable addition errors", func(t *testing.T) {
		_, err := AddQuantities(Quantity{Value: 1, Unit: "kg"}, Quantity{Value: 1, Unit: "s"})
		assert.Error(t, err)
	})

	t.Run("subtraction", func(t *testing.T) {
		diff, err := SubtractQuantities(Quantity{Value: 2, Unit: "h"}, Quantity{Value: 30, Unit: "min"})
		require.NoError(t, err)
		assert.InDelta(t, 1.5, diff.Value, 1e-9)
	})

	t.Run("division by zero is empty", func(t *testing.T) {
		_, ok := DivideQuantity(Quantity{Value: 4, Unit: "mg"}, 0)
		assert.False(t, ok)
	})

	t.Run("plural calendar units align with singular", func(t *testing.T) {
		sum, err := AddQuantities(
			Quantity{Value: 1, Unit: "day", Calendar: true},
			Quantity{Value: 2, Unit: "days", Calendar: true},
		)
		require.NoError(t, err)
		assert.Equal(t, 3.0, sum.Value)
	})
}

func TestParseQuantityString(t *testing.T) {
	t.Run("quoted unit", func(t *testing.T) {
		q, ok := ParseQuantityString("4.5 'mg'")
		require.True(t, ok)
		assert.Equal(t, 4.5, q.Value)
		assert.Equal(t, "mg", q.Unit)
		assert.Equal(t, 1, q.Precision)
	})

	t.Run("calendar unit", func(t *testing.T) {
		q, ok := ParseQuantityString("10 days")
		require.True(t, ok)
		assert.Equal(t, "day", q.Unit)
		assert.True(t, q.Calendar)
	})

	t.Run("bare number is dimensionless", func(t *testing.T) {
		q, ok := ParseQuantityString("5")
		require.True(t, ok)
		assert.Equal(t, "1", q.Unit)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, ok := ParseQuantityString("abc")
		assert.False(t, ok)
		_, ok = ParseQuantityString("5 unknownunit")
		assert.False(t, ok)
	})
}

func TestEquivalentQuantities(t *testing.T) {
	assert.True(t, EquivalentQuantities(
		Quantity{Value: 1.01, Precision: 2, Unit: "g"},
		Quantity{Value: 1.0, Precision: 1, Unit: "g"},
	))
	assert.False(t, EquivalentQuantities(
		Quantity{Value: 1.06, Precision: 2, Unit: "g"},
		Quantity{Value: 1.0, Precision: 1, Unit: "g"},
	))
}
