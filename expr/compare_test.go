package expr

import (
	"fmt"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqleval/vectorized"
)

func TestComparisons(t *testing.T) {
	batch := batchOf(t, "a", ints(1, 2, 3, nil), "b", ints(2, 2, 2, 2))
	tt := []struct {
		op   BinaryOperator
		want []interface{}
	}{
		{OpEq, []interface{}{false, true, false, nil}},
		{OpNotEq, []interface{}{true, false, true, nil}},
		{OpLt, []interface{}{true, false, false, nil}},
		{OpLtEq, []interface{}{true, true, false, nil}},
		{OpGt, []interface{}{false, false, true, nil}},
		{OpGtEq, []interface{}{false, true, true, nil}},
	}
	for _, tc := range tt {
		t.Run(tc.op.String(), func(t *testing.T) {
			require.Equal(t, tc.want, evalValues(t, Binary(tc.op, Col("a"), Col("b")), batch))
		})
	}
}

func TestComparisonPromotesNumerics(t *testing.T) {
	require.Equal(t, true, evalScalar(t, Binary(OpLt, Int(1), Float(1.5))))
	require.Equal(t, true, evalScalar(t, Binary(OpEq, Int(2), Float(2.0))))
	require.Nil(t, evalScalar(t, Binary(OpEq, Int(2), Null())))
	require.Nil(t, evalScalar(t, Binary(OpEq, Null(), Null())))
}

func TestComparisonStringsAndBooleans(t *testing.T) {
	require.Equal(t, true, evalScalar(t, Binary(OpLt, Str("apple"), Str("banana"))))
	require.Equal(t, true, evalScalar(t, Binary(OpGt, Bool(true), Bool(false))))
	require.Equal(t, false, evalScalar(t, Binary(OpEq, Str("a"), Str("A"))))
}

func TestComparisonNaN(t *testing.T) {
	batch := batchOf(t, "f", floats(math.NaN(), 1.0, math.Inf(1)))
	require.Equal(t, []interface{}{true, false, false},
		evalValues(t, Binary(OpEq, Col("f"), Float(math.NaN())), batch))
	require.Equal(t, []interface{}{false, true, true},
		evalValues(t, Binary(OpLt, Col("f"), Float(math.NaN())), batch))
}

func TestComparisonTypeMismatch(t *testing.T) {
	for _, node := range []Node{
		Binary(OpEq, Str("1"), Int(1)),
		Binary(OpLt, Bool(true), Int(1)),
		Binary(OpGt, Str("a"), Float(1)),
	} {
		err := evalError(t, node, single(t))
		require.True(t, errors.Is(err, ErrTypeMismatch), node.String())
	}
}

func TestNestedEquality(t *testing.T) {
	pt := vectorized.StructOf(vectorized.NewField("x", vectorized.Int64()), vectorized.NewField("y", vectorized.Int64()))
	batch := batchOf(t,
		"p", vectorized.MustFromValues(pt, []interface{}{1, 2}, []interface{}{1, 3}, nil),
		"l", vectorized.MustFromValues(vectorized.ListOf(vectorized.Int64()), []interface{}{1, 2}, []interface{}{}, []interface{}{1}),
	)
	require.Equal(t, []interface{}{true, false, nil},
		evalValues(t, Binary(OpEq, Col("p"), Lit(pt, []interface{}{1, 2})), batch))

	listLit := Lit(vectorized.ListOf(vectorized.Float64()), []interface{}{1.0, 2.0})
	require.Equal(t, []interface{}{false, true, true},
		evalValues(t, Binary(OpNotEq, Col("l"), listLit), batch))

	err := evalError(t, Binary(OpLt, Col("p"), Col("p")), batch)
	require.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestIsDistinctFromNeverNull(t *testing.T) {
	a := []interface{}{int64(1), int64(1), nil, nil}
	b := []interface{}{int64(1), nil, int64(1), nil}
	batch := batchOf(t, "a", ints(a...), "b", ints(b...))

	distinctValues := evalValues(t, Binary(OpIsDistinctFrom, Col("a"), Col("b")), batch)
	require.Equal(t, []interface{}{false, true, true, false}, distinctValues)

	op, ok := LookupBinaryOperator("<=>")
	require.True(t, ok)
	require.Equal(t, []interface{}{true, false, false, true},
		evalValues(t, Binary(op, Col("a"), Col("b")), batch))

	for _, node := range []Node{
		Binary(OpIsDistinctFrom, Null(), Null()),
		Binary(OpIsDistinctFrom, Null(), Int(1)),
		Binary(OpIsNotDistinctFrom, Str("a"), Null()),
	} {
		require.NotNil(t, evalScalar(t, node), node.String())
	}
}

func TestNotBetweenNegatesBetween(t *testing.T) {
	domain := []interface{}{nil, int64(1), int64(5), int64(10)}
	var xs, los, his []interface{}
	for _, x := range domain {
		for _, lo := range domain {
			for _, hi := range domain {
				xs, los, his = append(xs, x), append(los, lo), append(his, hi)
			}
		}
	}
	batch := batchOf(t, "x", ints(xs...), "lo", ints(los...), "hi", ints(his...))

	in := evalValues(t, &Between{Expr: Col("x"), Low: Col("lo"), High: Col("hi")}, batch)
	out := evalValues(t, &Between{Expr: Col("x"), Low: Col("lo"), High: Col("hi"), Negated: true}, batch)
	for i := range in {
		name := fmt.Sprintf("%v BETWEEN %v AND %v", xs[i], los[i], his[i])
		if in[i] == nil {
			assert.Nil(t, out[i], name)
			continue
		}
		assert.Equal(t, !in[i].(bool), out[i], name)
	}

	// a definite bound decides even when the other is NULL
	require.Equal(t, false, evalScalar(t, &Between{Expr: Int(1), Low: Int(5), High: Null()}))
	require.Equal(t, true, evalScalar(t, &Between{Expr: Int(1), Low: Int(5), High: Null(), Negated: true}))
	require.Equal(t, true, evalScalar(t, &Between{Expr: Int(5), Low: Int(1), High: Int(10)}))
	require.Equal(t, true, evalScalar(t, &Between{Expr: Int(5), Low: Int(5), High: Int(5)}))
}

func TestInList(t *testing.T) {
	tt := []struct {
		name    string
		probe   Node
		list    []Node
		in, out interface{}
	}{
		{"match", Int(1), []Node{Int(1), Int(2)}, true, false},
		{"no match", Int(3), []Node{Int(1), Int(2)}, false, true},
		{"match despite null", Int(1), []Node{Null(), Int(1)}, true, false},
		{"null candidate", Int(3), []Node{Int(1), Null()}, nil, nil},
		{"null probe", Null(), []Node{Int(1)}, nil, nil},
		{"promoted", Int(2), []Node{Float(2.0)}, true, false},
		{"strings", Str("b"), []Node{Str("a"), Str("b")}, true, false},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.in, evalScalar(t, &InList{Expr: tc.probe, List: tc.list}))
			require.Equal(t, tc.out, evalScalar(t, &InList{Expr: tc.probe, List: tc.list, Negated: true}))
		})
	}

	err := evalError(t, &InList{Expr: Int(1), List: []Node{Str("1")}}, single(t))
	require.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestInMaterializedValues(t *testing.T) {
	batch := batchOf(t, "n", ints(1, 2, 3, nil))
	withNull := &Values{Column: ints(1, 3, nil, 1, 1)}
	withoutNull := &Values{Column: floats(1.0, 3.0)}

	require.Equal(t, []interface{}{true, nil, true, nil},
		evalValues(t, &InList{Expr: Col("n"), List: []Node{withNull}}, batch))
	require.Equal(t, []interface{}{false, nil, false, nil},
		evalValues(t, &InList{Expr: Col("n"), List: []Node{withNull}, Negated: true}, batch))
	require.Equal(t, []interface{}{true, false, true, nil},
		evalValues(t, &InList{Expr: Col("n"), List: []Node{withoutNull}}, batch))

	empty := &Values{Column: ints()}
	require.Equal(t, []interface{}{false, false, false, nil},
		evalValues(t, &InList{Expr: Col("n"), List: []Node{empty}}, batch))
}

func TestInRowAlignedColumns(t *testing.T) {
	batch := batchOf(t, "n", ints(1, 2, 3), "a", ints(1, 5, nil), "b", ints(9, 2, 4))
	require.Equal(t, []interface{}{true, true, nil},
		evalValues(t, &InList{Expr: Col("n"), List: []Node{Col("a"), Col("b")}}, batch))
}
