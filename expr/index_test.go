package expr

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"sqleval/vectorized"
)

func listBatch(t *testing.T) *vectorized.VectorBatch {
	x := vectorized.MustFromValues(vectorized.ListOf(vectorized.Int64()),
		[]interface{}{10, 20, 30},
		[]interface{}{},
		nil,
		[]interface{}{40, nil},
	)
	return batchOf(t, "x", x, "i", ints(2, 1, 1, 2))
}

func TestArraySubscript(t *testing.T) {
	batch := listBatch(t)
	tt := []struct {
		name  string
		index Node
		want  []interface{}
	}{
		{"first", Int(1), []interface{}{int64(10), nil, nil, int64(40)}},
		{"past end", Int(4), []interface{}{nil, nil, nil, nil}},
		{"zero", Int(0), []interface{}{nil, nil, nil, nil}},
		{"negative", Int(-1), []interface{}{nil, nil, nil, nil}},
		{"null index", Null(), []interface{}{nil, nil, nil, nil}},
		{"per row", Col("i"), []interface{}{int64(20), nil, nil, nil}},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			node := &ArraySubscript{Expr: Col("x"), Index: tc.index}
			require.Equal(t, tc.want, evalValues(t, node, batch))
		})
	}

	v, err := Evaluate(&ArraySubscript{Expr: Col("x"), Index: Int(1)}, batch)
	require.NoError(t, err)
	require.Equal(t, vectorized.INT64, v.Type.ID)
}

func TestArraySubscriptErrors(t *testing.T) {
	batch := listBatch(t)
	err := evalError(t, &ArraySubscript{Expr: Col("i"), Index: Int(1)}, batch)
	require.True(t, errors.Is(err, ErrIndexKind))
	require.True(t, errors.Is(err, ErrTypeMismatch))

	err = evalError(t, &ArraySubscript{Expr: Col("x"), Index: Str("1")}, batch)
	require.True(t, errors.Is(err, ErrTypeMismatch))
	require.False(t, errors.Is(err, ErrIndexKind))

	require.Nil(t, evalScalar(t, &ArraySubscript{Expr: Null(), Index: Int(1)}))
}

var personType = vectorized.StructOf(
	vectorized.NewField("name", vectorized.String()),
	vectorized.NewField("age", vectorized.Int64()),
)

func personBatch(t *testing.T) *vectorized.VectorBatch {
	p := vectorized.MustFromValues(personType,
		[]interface{}{"ann", 30},
		nil,
		map[string]interface{}{"name": "bob"},
	)
	return batchOf(t, "p", p)
}

func TestStructAccess(t *testing.T) {
	batch := personBatch(t)
	tt := []struct {
		name string
		node *StructAccess
		want []interface{}
	}{
		{"by name", &StructAccess{Expr: Col("p"), Field: "name"}, []interface{}{"ann", nil, "bob"}},
		{"by ordinal", &StructAccess{Expr: Col("p"), Ordinal: 2}, []interface{}{int64(30), nil, nil}},
		{"numeric name", &StructAccess{Expr: Col("p"), Field: "2"}, []interface{}{int64(30), nil, nil}},
		{"as text", &StructAccess{Expr: Col("p"), Field: "age", AsText: true}, []interface{}{"30", nil, nil}},
		{"missing field", &StructAccess{Expr: Col("p"), Field: "email"}, []interface{}{nil, nil, nil}},
		{"ordinal out of range", &StructAccess{Expr: Col("p"), Ordinal: 3}, []interface{}{nil, nil, nil}},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, evalValues(t, tc.node, batch))
		})
	}

	err := evalError(t, &StructAccess{Expr: Str("x"), Field: "name"}, batch)
	require.True(t, errors.Is(err, ErrIndexKind))
}

func TestArrowOperators(t *testing.T) {
	batch := personBatch(t)
	require.Equal(t, []interface{}{"ann", nil, "bob"},
		evalValues(t, Binary(OpArrow, Col("p"), Str("name")), batch))
	require.Equal(t, []interface{}{int64(30), nil, nil},
		evalValues(t, Binary(OpArrow, Col("p"), Int(2)), batch))
	require.Equal(t, []interface{}{"30", nil, nil},
		evalValues(t, Binary(OpLongArrow, Col("p"), Str("age")), batch))
	require.Equal(t, []interface{}{nil, nil, nil},
		evalValues(t, Binary(OpArrow, Col("p"), Null()), batch))

	err := evalError(t, Binary(OpArrow, Col("p"), Col("p")), batch)
	require.True(t, errors.Is(err, ErrTypeMismatch))

	err = evalError(t, Binary(OpArrow, Int(1), Str("name")), batch)
	require.True(t, errors.Is(err, ErrIndexKind))

	err = evalError(t, Binary(OpArrow, Col("p"), Float(1)), batch)
	require.True(t, errors.Is(err, ErrTypeMismatch))
}

func nestedBatch(t *testing.T) *vectorized.VectorBatch {
	doc := vectorized.StructOf(
		vectorized.NewField("tags", vectorized.ListOf(vectorized.String())),
		vectorized.NewField("inner", vectorized.StructOf(vectorized.NewField("v", vectorized.Int64()))),
	)
	d := vectorized.MustFromValues(doc,
		[]interface{}{[]interface{}{"a", "b"}, []interface{}{1}},
		[]interface{}{[]interface{}{"c"}, nil},
		nil,
	)
	return batchOf(t, "d", d)
}

func TestPathAccess(t *testing.T) {
	batch := nestedBatch(t)
	node := &PathAccess{Expr: Col("d"), Path: []PathStep{{Field: "tags"}, {Index: 2}}}
	require.Equal(t, []interface{}{"b", nil, nil}, evalValues(t, node, batch))

	node = &PathAccess{Expr: Col("d"), Path: []PathStep{{Field: "inner"}, {Field: "v"}}, AsText: true}
	require.Equal(t, []interface{}{"1", nil, nil}, evalValues(t, node, batch))

	node = &PathAccess{Expr: Col("d"), Path: []PathStep{{Field: "tags"}, {Index: 1}, {Field: "x"}}}
	err := evalError(t, node, batch)
	require.True(t, errors.Is(err, ErrIndexKind))
}

func TestHashArrowOperators(t *testing.T) {
	batch := nestedBatch(t)
	require.Equal(t, []interface{}{"a", "c", nil},
		evalValues(t, Binary(OpHashArrow, Col("d"), Str("{tags,1}")), batch))
	require.Equal(t, []interface{}{"1", nil, nil},
		evalValues(t, Binary(OpHashLongArrow, Col("d"), Str("{inner, v}")), batch))

	path := Lit(vectorized.ListOf(vectorized.String()), []interface{}{"inner", "v"})
	require.Equal(t, []interface{}{int64(1), nil, nil},
		evalValues(t, Binary(OpHashArrow, Col("d"), path), batch))

	// an empty path selects the value itself
	v, err := Evaluate(Binary(OpHashArrow, Col("d"), Str("{}")), batch)
	require.NoError(t, err)
	require.Equal(t, vectorized.STRUCT, v.Type.ID)
}
