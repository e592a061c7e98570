package vectorized

import (
	"fmt"
)

// Sequence returns the row positions 0..n-1
func Sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// WithNulls returns a shallow copy of v sharing its data but using nulls
func (v *Vector) WithNulls(nulls *NullMask) *Vector {
	out := *v
	out.Nulls = nulls
	out.IsConstant = v.IsConstant && (nulls.NullCount == 0 || nulls.NullCount == nulls.Length)
	return &out
}

// Scatter assembles a vector of type t and the given length from parts.
// Row rows[k][j] receives parts[k] row j; rows no part covers are NULL.
// Parts are cast to t first.
func Scatter(t *Type, length int, parts []*Vector, rows [][]int) (*Vector, error) {
	if len(parts) != len(rows) {
		return nil, fmt.Errorf("scatter: %d parts for %d row sets", len(parts), len(rows))
	}
	out := NewNullVector(t, length)
	if t.ID == NULL {
		return out, nil
	}
	cast := make([]*Vector, len(parts))
	for k, part := range parts {
		if part.Length != len(rows[k]) {
			return nil, fmt.Errorf("scatter: part %d has %d rows, expected %d", k, part.Length, len(rows[k]))
		}
		c, err := part.CastTo(t)
		if err != nil {
			return nil, err
		}
		cast[k] = c
	}

	if t.ID.IsNested() {
		values := make([]interface{}, length)
		for k, part := range cast {
			for j, row := range rows[k] {
				values[row] = part.Value(j)
			}
		}
		return FromValues(t, values)
	}

	for k, part := range cast {
		for j, row := range rows[k] {
			if part.IsNull(j) {
				continue
			}
			out.Nulls.SetNotNull(row)
			switch t.ID {
			case BOOLEAN:
				out.Bools()[row] = part.Bools()[j]
			case INT64:
				out.Int64s()[row] = part.Int64s()[j]
			case FLOAT64:
				out.Float64s()[row] = part.Float64s()[j]
			case STRING:
				out.Strings()[row] = part.Strings()[j]
			}
		}
	}
	return out, nil
}

// Concat appends parts end to end. The result type is the common type of
// all parts; an empty input yields an empty NULL vector.
func Concat(parts ...*Vector) (*Vector, error) {
	types := make([]*Type, len(parts))
	rows := make([][]int, len(parts))
	length := 0
	for i, part := range parts {
		types[i] = part.Type
		rows[i] = make([]int, part.Length)
		for j := range rows[i] {
			rows[i][j] = length + j
		}
		length += part.Length
	}
	t, ok := ResolveAll(types...)
	if !ok {
		return nil, fmt.Errorf("concat: incompatible types %v", types)
	}
	return Scatter(t, length, parts, rows)
}
