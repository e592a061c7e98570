package expr

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// every combination of {true, false, NULL} x {true, false, NULL}
func truthBatch(t *testing.T) (a, b []interface{}) {
	a = []interface{}{true, true, true, false, false, false, nil, nil, nil}
	b = []interface{}{true, false, nil, true, false, nil, true, false, nil}
	return a, b
}

func TestAndTruthTable(t *testing.T) {
	a, b := truthBatch(t)
	batch := batchOf(t, "a", bools(a...), "b", bools(b...))
	require.Equal(t,
		[]interface{}{true, false, nil, false, false, false, nil, false, nil},
		evalValues(t, Binary(OpAnd, Col("a"), Col("b")), batch))
}

func TestOrTruthTable(t *testing.T) {
	a, b := truthBatch(t)
	batch := batchOf(t, "a", bools(a...), "b", bools(b...))
	require.Equal(t,
		[]interface{}{true, true, true, true, false, nil, true, nil, nil},
		evalValues(t, Binary(OpOr, Col("a"), Col("b")), batch))
}

func TestNot(t *testing.T) {
	batch := batchOf(t, "a", bools(true, false, nil))
	require.Equal(t, []interface{}{false, true, nil}, evalValues(t, Unary(OpNot, Col("a")), batch))
	require.Nil(t, evalScalar(t, Unary(OpNot, Null())))
}

func TestLogicalWithUntypedNull(t *testing.T) {
	require.Nil(t, evalScalar(t, Binary(OpAnd, Null(), Bool(true))))
	require.Equal(t, false, evalScalar(t, Binary(OpAnd, Null(), Bool(false))))
	require.Equal(t, true, evalScalar(t, Binary(OpOr, Bool(true), Null())))
	require.Nil(t, evalScalar(t, Binary(OpOr, Bool(false), Null())))
}

func TestLogicalShortCircuitsRightOperand(t *testing.T) {
	batch := batchOf(t, "n", ints(0, 2, 4), "d", ints(0, 1, 2))
	// d != 0 AND n / d > 1 never divides by zero
	node := Binary(OpAnd,
		Binary(OpNotEq, Col("d"), Int(0)),
		Binary(OpGt, Binary(OpDivide, Col("n"), Col("d")), Int(1)))
	require.Equal(t, []interface{}{false, true, true}, evalValues(t, node, batch))

	// d = 0 OR n / d > 1
	node = Binary(OpOr,
		Binary(OpEq, Col("d"), Int(0)),
		Binary(OpGt, Binary(OpDivide, Col("n"), Col("d")), Int(1)))
	require.Equal(t, []interface{}{true, true, true}, evalValues(t, node, batch))
}

func TestLogicalRequiresBoolean(t *testing.T) {
	batch := batchOf(t, "n", ints(1))
	for _, node := range []Node{
		Binary(OpAnd, Col("n"), Bool(true)),
		Binary(OpOr, Bool(false), Col("n")),
		Unary(OpNot, Col("n")),
		Unary(OpIsTrue, Col("n")),
	} {
		err := evalError(t, node, batch)
		require.True(t, errors.Is(err, ErrTypeMismatch), node.String())
	}
}

func TestIsOperatorsNeverNull(t *testing.T) {
	batch := batchOf(t, "a", bools(true, false, nil))
	tt := []struct {
		op   UnaryOperator
		want []interface{}
	}{
		{OpIsNull, []interface{}{false, false, true}},
		{OpIsNotNull, []interface{}{true, true, false}},
		{OpIsTrue, []interface{}{true, false, false}},
		{OpIsNotTrue, []interface{}{false, true, true}},
		{OpIsFalse, []interface{}{false, true, false}},
		{OpIsNotFalse, []interface{}{true, false, true}},
	}
	for _, tc := range tt {
		t.Run(tc.op.String(), func(t *testing.T) {
			require.Equal(t, tc.want, evalValues(t, Unary(tc.op, Col("a")), batch))
		})
	}
}

func TestIsNullOnAnyType(t *testing.T) {
	batch := batchOf(t, "s", strs("x", nil), "n", ints(nil, 1))
	require.Equal(t, []interface{}{false, true}, evalValues(t, Unary(OpIsNull, Col("s")), batch))
	require.Equal(t, []interface{}{false, true}, evalValues(t, Unary(OpIsNotNull, Col("n")), batch))
	require.Equal(t, true, evalScalar(t, Unary(OpIsNull, Null())))
}
