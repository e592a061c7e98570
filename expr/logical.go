package expr

import (
	"fmt"

	"sqleval/vectorized"
)

// asBoolean accepts BOOLEAN operands and widens NULL-typed ones to all-NULL BOOLEAN
func asBoolean(op fmt.Stringer, v *vectorized.Vector) (*vectorized.Vector, error) {
	switch v.Type.ID {
	case vectorized.BOOLEAN:
		return v, nil
	case vectorized.NULL:
		return vectorized.NewNullVector(vectorized.Boolean(), v.Length), nil
	}
	return nil, typeMismatchf("%s requires BOOLEAN operands, got %s", op, v.Type)
}

// and3 is three-valued AND: false wins over NULL, NULL wins over true
func and3(left, right *vectorized.Vector) (*vectorized.Vector, error) {
	left, err := asBoolean(OpAnd, left)
	if err != nil {
		return nil, err
	}
	right, err = asBoolean(OpAnd, right)
	if err != nil {
		return nil, err
	}
	result := vectorized.NewVector(vectorized.Boolean(), left.Length)
	l, r, out := left.Bools(), right.Bools(), result.Bools()
	for i := range out {
		lNull, rNull := left.IsNull(i), right.IsNull(i)
		switch {
		case !lNull && !l[i], !rNull && !r[i]:
			out[i] = false
		case lNull || rNull:
			result.SetNull(i)
		default:
			out[i] = true
		}
	}
	return result, nil
}

// or3 is three-valued OR: true wins over NULL, NULL wins over false
func or3(left, right *vectorized.Vector) (*vectorized.Vector, error) {
	left, err := asBoolean(OpOr, left)
	if err != nil {
		return nil, err
	}
	right, err = asBoolean(OpOr, right)
	if err != nil {
		return nil, err
	}
	result := vectorized.NewVector(vectorized.Boolean(), left.Length)
	l, r, out := left.Bools(), right.Bools(), result.Bools()
	for i := range out {
		lNull, rNull := left.IsNull(i), right.IsNull(i)
		switch {
		case !lNull && l[i], !rNull && r[i]:
			out[i] = true
		case lNull || rNull:
			result.SetNull(i)
		default:
			out[i] = false
		}
	}
	return result, nil
}

func not3(operand *vectorized.Vector) (*vectorized.Vector, error) {
	operand, err := asBoolean(OpNot, operand)
	if err != nil {
		return nil, err
	}
	result := vectorized.NewVector(vectorized.Boolean(), operand.Length)
	result.Nulls = operand.Nulls.Clone()
	in, out := operand.Bools(), result.Bools()
	for i := range out {
		out[i] = !in[i]
	}
	return result, nil
}

// isNull implements IS [NOT] NULL; the result is never NULL
func isNull(operand *vectorized.Vector, negated bool) *vectorized.Vector {
	result := vectorized.NewVector(vectorized.Boolean(), operand.Length)
	out := result.Bools()
	for i := range out {
		out[i] = operand.IsNull(i) != negated
	}
	return result
}

// isBool implements IS [NOT] TRUE and IS [NOT] FALSE. A NULL operand is
// neither true nor false; the result is never NULL.
func isBool(operand *vectorized.Vector, want, negated bool) (*vectorized.Vector, error) {
	op := OpIsTrue
	if !want {
		op = OpIsFalse
	}
	operand, err := asBoolean(op, operand)
	if err != nil {
		return nil, err
	}
	result := vectorized.NewVector(vectorized.Boolean(), operand.Length)
	in, out := operand.Bools(), result.Bools()
	for i := range out {
		out[i] = (!operand.IsNull(i) && in[i] == want) != negated
	}
	return result, nil
}
