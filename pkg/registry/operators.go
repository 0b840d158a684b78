package registry

// Precedence levels, low binds looser. The dot and postfix forms sit
// above every binary operator and are handled structurally by the
// parser; PrecDot is exported for printers and analyzers.
const (
	PrecImplies        = 1
	PrecOr             = 2 // or, xor
	PrecAnd            = 3
	PrecMembership     = 4 // in, contains
	PrecEquality       = 5 // = != ~ !~ < <= > >=
	PrecType           = 6 // is, as
	PrecUnion          = 7
	PrecAdditive       = 8 // + - &
	PrecMultiplicative = 9 // * / div mod
	PrecUnary          = 10
	PrecDot            = 12
)

// registerCoreOperators fills the operator metadata table. Evaluators
// are bound by the engine at startup; the parser needs only the
// metadata.
func (r *Registry) registerCoreOperators() {
	binary := func(symbol string, keyword bool, category string, prec int, sigs ...Signature) {
		r.operators[symbol] = &OperatorEntry{
			Symbol:     symbol,
			Keyword:    keyword,
			Category:   category,
			Precedence: prec,
			Assoc:      AssocLeft,
			Signatures: sigs,
		}
	}

	binary("implies", true, "logical", PrecImplies,
		Signature{"Boolean", "Boolean", "Boolean"})
	binary("or", true, "logical", PrecOr,
		Signature{"Boolean", "Boolean", "Boolean"})
	binary("xor", true, "logical", PrecOr,
		Signature{"Boolean", "Boolean", "Boolean"})
	binary("and", true, "logical", PrecAnd,
		Signature{"Boolean", "Boolean", "Boolean"})

	binary("in", true, "membership", PrecMembership,
		Signature{"Any", "Any", "Boolean"})
	binary("contains", true, "membership", PrecMembership,
		Signature{"Any", "Any", "Boolean"})

	binary("=", false, "equality", PrecEquality,
		Signature{"Any", "Any", "Boolean"})
	binary("!=", false, "equality", PrecEquality,
		Signature{"Any", "Any", "Boolean"})
	binary("~", false, "equality", PrecEquality,
		Signature{"Any", "Any", "Boolean"})
	binary("!~", false, "equality", PrecEquality,
		Signature{"Any", "Any", "Boolean"})
	binary("<", false, "comparison", PrecEquality,
		Signature{"Integer", "Integer", "Boolean"},
		Signature{"Decimal", "Decimal", "Boolean"},
		Signature{"String", "String", "Boolean"},
		Signature{"Quantity", "Quantity", "Boolean"})
	binary("<=", false, "comparison", PrecEquality)
	binary(">", false, "comparison", PrecEquality)
	binary(">=", false, "comparison", PrecEquality)

	binary("is", true, "type", PrecType,
		Signature{"Any", "TypeSpecifier", "Boolean"})
	binary("as", true, "type", PrecType,
		Signature{"Any", "TypeSpecifier", "Any"})

	binary("|", false, "collection", PrecUnion,
		Signature{"Any", "Any", "Any"})

	binary("+", false, "arithmetic", PrecAdditive,
		Signature{"Integer", "Integer", "Integer"},
		Signature{"Decimal", "Decimal", "Decimal"},
		Signature{"String", "String", "String"},
		Signature{"Quantity", "Quantity", "Quantity"})
	binary("-", false, "arithmetic", PrecAdditive)
	binary("&", false, "string", PrecAdditive,
		Signature{"String", "String", "String"})

	binary("*", false, "arithmetic", PrecMultiplicative)
	binary("/", false, "arithmetic", PrecMultiplicative)
	binary("div", true, "arithmetic", PrecMultiplicative)
	binary("mod", true, "arithmetic", PrecMultiplicative)

	r.unary["+"] = &OperatorEntry{
		Symbol: "+", Category: "arithmetic", Precedence: PrecUnary, Unary: true,
	}
	r.unary["-"] = &OperatorEntry{
		Symbol: "-", Category: "arithmetic", Precedence: PrecUnary, Unary: true,
	}
}
