package luafn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fhirpath/engine"
	"fhirpath/pkg/types"
)

func TestRegister(t *testing.T) {
	eng := engine.New()

	t.Run("scalar function", func(t *testing.T) {
		err := Register(eng.Registry(), "double", "function(input, n) return input * n end", 1)
		require.NoError(t, err)

		got, evalErr := engine.Evaluate("(21).double(2)", nil)
		require.NoError(t, evalErr)
		require.Len(t, got, 1)
		v, _ := got[0].AsInteger()
		assert.Equal(t, int64(42), v)
	})

	t.Run("table result fans out", func(t *testing.T) {
		err := Register(eng.Registry(), "pair", "function(input) return {input, input} end", 0)
		require.NoError(t, err)

		got, evalErr := engine.Evaluate("(5).pair()", nil)
		require.NoError(t, evalErr)
		assert.Len(t, got, 2)
	})

	t.Run("string manipulation", func(t *testing.T) {
		err := Register(eng.Registry(), "shout", "function(input) return string.upper(input) .. '!' end", 0)
		require.NoError(t, err)

		got, evalErr := engine.Evaluate("'hi'.shout()", nil)
		require.NoError(t, evalErr)
		s, _ := got[0].AsString()
		assert.Equal(t, "HI!", s)
	})

	t.Run("nil result is empty", func(t *testing.T) {
		err := Register(eng.Registry(), "nothing", "function(input) return nil end", 0)
		require.NoError(t, err)

		got, evalErr := engine.Evaluate("(1).nothing()", nil)
		require.NoError(t, evalErr)
		assert.Empty(t, got)
	})

	t.Run("built-in names are protected", func(t *testing.T) {
		err := Register(eng.Registry(), "where", "function(input) return input end", 1)
		require.Error(t, err)
	})

	t.Run("invalid chunks are rejected at registration", func(t *testing.T) {
		err := Register(eng.Registry(), "broken", "function(input", 0)
		require.Error(t, err)
		err = Register(eng.Registry(), "notafunc", "42", 0)
		require.Error(t, err)
	})

	t.Run("lua runtime errors surface as evaluation errors", func(t *testing.T) {
		err := Register(eng.Registry(), "explode", "function(input) error('boom') end", 0)
		require.NoError(t, err)
		_, evalErr := engine.Evaluate("(1).explode()", nil)
		require.Error(t, evalErr)
	})
}

func TestConversionRoundTrip(t *testing.T) {
	eng := engine.New()
	err := Register(eng.Registry(), "identity", "function(input) return input end", 0)
	require.NoError(t, err)

	t.Run("object nodes survive", func(t *testing.T) {
		obj := map[string]interface{}{"key": "value"}
		got, evalErr := engine.Evaluate("identity()", obj)
		require.NoError(t, evalErr)
		require.Len(t, got, 1)
		out, ok := got[0].Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "value", out["key"])
	})

	t.Run("booleans and numbers survive", func(t *testing.T) {
		got, evalErr := engine.Evaluate("true.identity()", nil)
		require.NoError(t, evalErr)
		b, _ := got[0].AsBoolean()
		assert.True(t, b)

		got, evalErr = engine.Evaluate("(2.5).identity()", nil)
		require.NoError(t, evalErr)
		require.Len(t, got, 1)
		assert.Equal(t, 2.5, types.Unbox(got[0]))
	})
}
