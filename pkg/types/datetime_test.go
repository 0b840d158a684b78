package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Run("full date", func(t *testing.T) {
		d, err := ParseDate("2012-04-15")
		require.NoError(t, err)
		assert.Equal(t, 2012, d.Year)
		assert.Equal(t, 4, d.Month)
		assert.Equal(t, 15, d.Day)
		assert.Equal(t, PrecDay, d.Precision)
		assert.Equal(t, "2012-04-15", d.String())
	})

	t.Run("partial dates", func(t *testing.T) {
		d, err := ParseDate("2012")
		require.NoError(t, err)
		assert.Equal(t, PrecYear, d.Precision)

		d, err = ParseDate("2012-04")
		require.NoError(t, err)
		assert.Equal(t, PrecMonth, d.Precision)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, s := range []string{"12", "2012-13", "2012-00", "2012-01-32", "2012-1-1", "x"} {
			_, err := ParseDate(s)
			assert.Error(t, err, "%q", s)
		}
	})
}

func TestParseDateTime(t *testing.T) {
	t.Run("with time and zone", func(t *testing.T) {
		dt, err := ParseDateTime("2012-04-15T10:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, 10, dt.Hour)
		require.NotNil(t, dt.Offset)
		assert.Equal(t, 0, *dt.Offset)
		assert.Equal(t, PrecSecond, dt.Precision)
		assert.Equal(t, "2012-04-15T10:30:00Z", dt.String())
	})

	t.Run("with negative offset", func(t *testing.T) {
		dt, err := ParseDateTime("2012-04-15T10:30:00-05:00")
		require.NoError(t, err)
		require.NotNil(t, dt.Offset)
		assert.Equal(t, -300, *dt.Offset)
	})

	t.Run("milliseconds", func(t *testing.T) {
		dt, err := ParseDateTime("2012-04-15T10:30:00.250Z")
		require.NoError(t, err)
		assert.Equal(t, 250, dt.Millisecond)
		assert.Equal(t, PrecMillisecond, dt.Precision)
	})

	t.Run("date-only", func(t *testing.T) {
		dt, err := ParseDateTime("2012-04-15")
		require.NoError(t, err)
		assert.Equal(t, PrecDay, dt.Precision)
	})
}

func TestParseTime(t *testing.T) {
	tm, err := ParseTime("T14:30:15")
	require.NoError(t, err)
	assert.Equal(t, 14, tm.Hour)
	assert.Equal(t, PrecSecond, tm.Precision)
	assert.Equal(t, "T14:30:15", tm.String())

	_, err = ParseTime("T25:00")
	assert.Error(t, err)
}

func TestCompareDates(t *testing.T) {
	t.Run("ordering", func(t *testing.T) {
		a, _ := ParseDate("2012-04-15")
		b, _ := ParseDate("2012-05-01")
		cmp, ok := CompareDates(a, b)
		require.True(t, ok)
		assert.Equal(t, -1, cmp)
	})

	t.Run("differing precision with equal prefix is undefined", func(t *testing.T) {
		a, _ := ParseDate("2012")
		b, _ := ParseDate("2012-04")
		_, ok := CompareDates(a, b)
		assert.False(t, ok)
	})

	t.Run("differing precision with unequal prefix orders", func(t *testing.T) {
		a, _ := ParseDate("2011")
		b, _ := ParseDate("2012-04")
		cmp, ok := CompareDates(a, b)
		require.True(t, ok)
		assert.Equal(t, -1, cmp)
	})
}

func TestCompareDateTimes_Zones(t *testing.T) {
	a, _ := ParseDateTime("2012-04-15T10:00:00+02:00")
	b, _ := ParseDateTime("2012-04-15T08:00:00Z")
	cmp, ok := CompareDateTimes(a, b)
	require.True(t, ok)
	assert.Equal(t, 0, cmp, "same instant in different zones")
}

func TestSubtractDateTimes(t *testing.T) {
	a, _ := ParseDateTime("2012-04-16T00:00:00Z")
	b, _ := ParseDateTime("2012-04-15T00:00:00Z")
	q := SubtractDateTimes(a, b)
	assert.Equal(t, 86400.0, q.Value)
	assert.Equal(t, "s", q.Unit)
}
