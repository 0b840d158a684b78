package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fhirpath/pkg/runtime"
	"fhirpath/pkg/types"
)

func TestRegistry_Consistency(t *testing.T) {
	reg := New()

	t.Run("every binary operator has a precedence and associativity", func(t *testing.T) {
		for _, sym := range reg.OperatorSymbols() {
			assert.True(t, reg.IsBinaryOperator(sym))
			assert.Greater(t, reg.Precedence(sym), 0, "operator %q", sym)
			assoc := reg.Associativity(sym)
			assert.True(t, assoc == AssocLeft || assoc == AssocRight)
		}
	})

	t.Run("precedence ordering matches the language", func(t *testing.T) {
		order := [][]string{
			{"implies"},
			{"or", "xor"},
			{"and"},
			{"in", "contains"},
			{"=", "!=", "~", "!~", "<", "<=", ">", ">="},
			{"is", "as"},
			{"|"},
			{"+", "-", "&"},
			{"*", "/", "div", "mod"},
		}
		prev := 0
		for _, group := range order {
			prec := reg.Precedence(group[0])
			assert.Greater(t, prec, prev, "group %v", group)
			for _, sym := range group {
				assert.Equal(t, prec, reg.Precedence(sym), "symbol %q", sym)
			}
			prev = prec
		}
	})

	t.Run("keyword operators", func(t *testing.T) {
		for _, word := range []string{"and", "or", "xor", "implies", "in", "contains", "is", "as", "div", "mod"} {
			assert.True(t, reg.IsKeywordOperator(word), "%q", word)
		}
		assert.False(t, reg.IsKeywordOperator("+"))
		assert.False(t, reg.IsKeywordOperator("where"))
	})

	t.Run("unary operators", func(t *testing.T) {
		assert.True(t, reg.IsUnaryOperator("-"))
		assert.True(t, reg.IsUnaryOperator("+"))
		assert.False(t, reg.IsUnaryOperator("*"))
	})
}

func TestRegistry_Extension(t *testing.T) {
	noop := func(inv *Invocation) (types.Collection, error) {
		return inv.Input, nil
	}

	t.Run("registering a new function succeeds", func(t *testing.T) {
		reg := New()
		require.True(t, reg.CanRegister("myFunc"))
		err := reg.RegisterFunction(&FunctionEntry{Name: "myFunc", Call: noop})
		require.NoError(t, err)
		entry, ok := reg.Function("myFunc")
		require.True(t, ok)
		assert.False(t, entry.Builtin)
	})

	t.Run("built-in collision is refused", func(t *testing.T) {
		reg := New()
		reg.RegisterBuiltin(&FunctionEntry{Name: "count", Call: noop})
		assert.False(t, reg.CanRegister("count"))
		err := reg.RegisterFunction(&FunctionEntry{Name: "count", Call: noop})
		require.Error(t, err)
	})

	t.Run("duplicate extension is refused", func(t *testing.T) {
		reg := New()
		require.NoError(t, reg.RegisterFunction(&FunctionEntry{Name: "f", Call: noop}))
		assert.Error(t, reg.RegisterFunction(&FunctionEntry{Name: "f", Call: noop}))
	})

	t.Run("function without evaluator is refused", func(t *testing.T) {
		reg := New()
		assert.Error(t, reg.RegisterFunction(&FunctionEntry{Name: "g"}))
	})

	t.Run("extension operator", func(t *testing.T) {
		reg := New()
		err := reg.RegisterOperator(&OperatorEntry{
			Symbol:     "**",
			Category:   "arithmetic",
			Precedence: PrecMultiplicative + 1,
			Apply: func(_ *runtime.Context, left, right types.Collection) (types.Collection, error) {
				return left, nil
			},
		})
		require.NoError(t, err)
		assert.True(t, reg.IsBinaryOperator("**"))

		// Core operators cannot be replaced.
		assert.Error(t, reg.RegisterOperator(&OperatorEntry{Symbol: "+", Precedence: 8}))
	})
}

func TestFunctionEntry_Arity(t *testing.T) {
	entry := &FunctionEntry{
		Name: "substring",
		Args: []ArgDescriptor{
			{Name: "start"},
			{Name: "length", Optional: true},
		},
	}
	assert.Equal(t, 1, entry.MinArity())
	assert.Equal(t, 2, entry.MaxArity())
}
