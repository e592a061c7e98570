package vectorized

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	point := StructOf(NewField("x", Int64()), NewField("y", Int64()))
	fpoint := StructOf(NewField("x", Float64()), NewField("y", Int64()))
	tt := []struct {
		name        string
		left, right *Type
		want        *Type
	}{
		{"null left", Null(), String(), String()},
		{"null right", Boolean(), Null(), Boolean()},
		{"both null", Null(), Null(), Null()},
		{"int int", Int64(), Int64(), Int64()},
		{"int float", Int64(), Float64(), Float64()},
		{"float int", Float64(), Int64(), Float64()},
		{"list elem promotion", ListOf(Int64()), ListOf(Float64()), ListOf(Float64())},
		{"list of null", ListOf(Null()), ListOf(String()), ListOf(String())},
		{"struct member promotion", point, fpoint, fpoint},
		{"string int", String(), Int64(), nil},
		{"bool int", Boolean(), Int64(), nil},
		{"list scalar", ListOf(Int64()), Int64(), nil},
		{"struct names differ", point, StructOf(NewField("a", Int64()), NewField("y", Int64())), nil},
		{"struct arity differs", point, StructOf(NewField("x", Int64())), nil},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(tc.left, tc.right)
			if tc.want == nil {
				require.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}
}

func TestResolveAll(t *testing.T) {
	got, ok := ResolveAll()
	require.True(t, ok)
	assert.Equal(t, NULL, got.ID)

	got, ok = ResolveAll(Null(), Int64(), Float64(), Null())
	require.True(t, ok)
	assert.Equal(t, FLOAT64, got.ID)

	_, ok = ResolveAll(Int64(), Null(), String())
	assert.False(t, ok)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "INT64", Int64().String())
	assert.Equal(t, "LIST<STRING>", ListOf(String()).String())
	assert.Equal(t, "STRUCT<a: BOOLEAN, b: LIST<FLOAT64>>",
		StructOf(NewField("a", Boolean()), NewField("b", ListOf(Float64()))).String())
	assert.Equal(t, 1, StructOf(NewField("a", Int64()), NewField("b", Int64())).FieldIndex("b"))
	assert.Equal(t, -1, StructOf(NewField("a", Int64())).FieldIndex("z"))
}

func TestParseType(t *testing.T) {
	for _, want := range []*Type{
		Null(), Boolean(), Int64(), Float64(), String(),
		ListOf(ListOf(Int64())),
		StructOf(NewField("a", Boolean()), NewField("b", ListOf(StructOf(NewField("c", String()))))),
		StructOf(),
	} {
		got, err := ParseType(want.String())
		require.NoError(t, err, want.String())
		assert.True(t, want.Equal(got), "%s parsed as %s", want, got)
	}

	got, err := ParseType(" list< bigint > ")
	require.NoError(t, err)
	assert.True(t, ListOf(Int64()).Equal(got))

	for _, bad := range []string{"", "DECIMAL", "LIST<INT64", "LIST<>", "STRUCT<a INT64>", "INT64>", "STRUCT<: INT64>"} {
		_, err := ParseType(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatValue(t *testing.T) {
	tt := []struct {
		t     *Type
		value interface{}
		want  string
	}{
		{Int64(), int64(-42), "-42"},
		{Float64(), 1.0, "1.0"},
		{Float64(), 2.5, "2.5"},
		{Float64(), 1e21, "1000000000000000000000.0"},
		{Float64(), math.NaN(), "NaN"},
		{Float64(), math.Inf(-1), "-inf"},
		{Boolean(), true, "true"},
		{String(), "x", "x"},
		{Int64(), nil, "null"},
		{ListOf(Int64()), []interface{}{int64(1), nil}, "[1, null]"},
		{StructOf(NewField("a", Int64()), NewField("b", String())), []interface{}{int64(1), "s"}, "{a: 1, b: s}"},
	}
	for _, tc := range tt {
		assert.Equal(t, tc.want, FormatValue(tc.t, tc.value))
	}
}

func TestCastToString(t *testing.T) {
	v := MustFromValues(Float64(), 1, 0.25, nil)
	s := v.CastToString()
	assert.Equal(t, STRING, s.Type.ID)
	assert.Equal(t, []interface{}{"1.0", "0.25", nil}, s.Values())

	same := MustFromValues(String(), "a")
	assert.Same(t, same, same.CastToString())

	n := NewNullVector(Null(), 2).CastToString()
	assert.Equal(t, []interface{}{nil, nil}, n.Values())
}
