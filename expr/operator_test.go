package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupBinaryOperator(t *testing.T) {
	tt := []struct {
		symbol string
		want   BinaryOperator
	}{
		{"=", OpEq},
		{"==", OpEq},
		{"<>", OpNotEq},
		{"!=", OpNotEq},
		{"<=>", OpIsNotDistinctFrom},
		{"is  distinct\tfrom", OpIsDistinctFrom},
		{"//", OpIntDivide},
		{"xor", OpBitwiseXor},
		{"~~", OpLike},
		{"!~~*", OpNotILike},
		{"not like", OpNotLike},
		{"regexp", OpRegexMatch},
		{"NOT RLIKE", OpRegexNotMatch},
		{"~*", OpRegexIMatch},
		{"^@", OpStartsWith},
		{"#>>", OpHashLongArrow},
	}
	for _, tc := range tt {
		t.Run(tc.symbol, func(t *testing.T) {
			op, ok := LookupBinaryOperator(tc.symbol)
			require.True(t, ok)
			assert.Equal(t, tc.want, op)
		})
	}

	_, ok := LookupBinaryOperator("===")
	require.False(t, ok)
}

func TestLookupUnaryOperator(t *testing.T) {
	for symbol, want := range map[string]UnaryOperator{
		"!":             OpNot,
		"not":           OpNot,
		"ISNULL":        OpIsNull,
		"notnull":       OpIsNotNull,
		"is not  false": OpIsNotFalse,
		"-":             OpNegate,
	} {
		op, ok := LookupUnaryOperator(symbol)
		require.True(t, ok, symbol)
		assert.Equal(t, want, op, symbol)
	}

	q, ok := LookupQuantifier("some")
	require.True(t, ok)
	assert.Equal(t, QuantifierAny, q)
	_, ok = LookupQuantifier("EVERY")
	assert.False(t, ok)
}

func TestOperatorClasses(t *testing.T) {
	assert.True(t, OpGtEq.IsComparison())
	assert.False(t, OpIsDistinctFrom.IsComparison())
	assert.False(t, OpEq.IsOrdering())
	assert.True(t, OpModulo.IsArithmetic())
	assert.False(t, OpBitwiseAnd.IsArithmetic())
	assert.True(t, OpRegexNotIMatch.IsPatternMatch())
	assert.False(t, OpStartsWith.IsPatternMatch())
	assert.True(t, OpLongArrow.IsAccessor())
	assert.True(t, OpIsNotFalse.IsPostfix())
	assert.False(t, OpNegate.IsPostfix())
}

func TestNodeString(t *testing.T) {
	tt := []struct {
		node Node
		want string
	}{
		{Binary(OpEq, Str("it's"), Int(1)), "('it''s' = 1)"},
		{Unary(OpIsNull, Col("x")), "(x IS NULL)"},
		{Unary(OpNot, Col("x")), "(NOT x)"},
		{Unary(OpNegate, Col("x")), "(-x)"},
		{Col("order id"), `"order id"`},
		{&Between{Expr: Col("x"), Low: Int(1), High: Int(2), Negated: true}, "(x NOT BETWEEN 1 AND 2)"},
		{&InList{Expr: Col("x"), List: []Node{Int(1), Null()}}, "(x IN (1, NULL))"},
		{&InList{Expr: Col("x"), List: []Node{&Values{Column: ints(1, nil)}}}, "(x IN (VALUES (1, NULL)))"},
		{Call("coalesce", Col("a"), Float(0)), "COALESCE(a, 0.0)"},
		{&ArraySubscript{Expr: Col("x"), Index: Int(1)}, "x[1]"},
		{&StructAccess{Expr: Col("p"), Field: "name", AsText: true}, "(p ->> 'name')"},
		{&PathAccess{Expr: Col("d"), Path: []PathStep{{Field: "a"}, {Index: 2}}}, "(d #> '{a,2}')"},
		{&Quantified{Quantifier: QuantifierAny, Op: OpLt, Left: Col("x"), Right: &Values{Column: ints(1, 2)}}, "(x < ANY(VALUES (1, 2)))"},
	}
	for _, tc := range tt {
		assert.Equal(t, tc.want, tc.node.String())
	}
}
