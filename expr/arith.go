package expr

import (
	"math"

	"sqleval/vectorized"
)

func isNumericOrNull(t *vectorized.Type) bool {
	return t.ID.IsNumeric() || t.ID == vectorized.NULL
}

// arithmetic evaluates + - * / // % on the common numeric type of the operands.
// "/" always produces FLOAT64. A zero divisor on a non-NULL row is an error.
func arithmetic(op BinaryOperator, left, right *vectorized.Vector) (*vectorized.Vector, error) {
	if !isNumericOrNull(left.Type) || !isNumericOrNull(right.Type) {
		return nil, typeMismatchf("operator %s requires numeric operands, got %s and %s", op, left.Type, right.Type)
	}
	t, l, r, err := unify(op, left, right)
	if err != nil {
		return nil, err
	}
	if t.ID == vectorized.NULL {
		return vectorized.NewNullVector(vectorized.Null(), l.Length), nil
	}
	nulls := vectorized.Union(l.Nulls, r.Nulls)

	if op == OpDivide || t.ID == vectorized.FLOAT64 {
		return arithmeticFloat64(op, l.AsFloat64s(), r.AsFloat64s(), nulls)
	}
	return arithmeticInt64(op, l.Int64s(), r.Int64s(), nulls)
}

func arithmeticInt64(op BinaryOperator, a, b []int64, nulls *vectorized.NullMask) (*vectorized.Vector, error) {
	result := vectorized.NewVector(vectorized.Int64(), len(a))
	result.Nulls = nulls
	out := result.Int64s()
	switch op {
	case OpPlus:
		for i := range out {
			out[i] = a[i] + b[i]
		}
	case OpMinus:
		for i := range out {
			out[i] = a[i] - b[i]
		}
	case OpMultiply:
		for i := range out {
			out[i] = a[i] * b[i]
		}
	case OpIntDivide, OpModulo:
		for i := range out {
			if nulls.IsNull(i) {
				continue
			}
			if b[i] == 0 {
				return nil, divisionByZero(op, i)
			}
			if op == OpModulo {
				out[i] = a[i] % b[i]
			} else {
				out[i] = floorDiv(a[i], b[i])
			}
		}
	}
	return result, nil
}

func arithmeticFloat64(op BinaryOperator, a, b []float64, nulls *vectorized.NullMask) (*vectorized.Vector, error) {
	result := vectorized.NewVector(vectorized.Float64(), len(a))
	result.Nulls = nulls
	out := result.Float64s()
	switch op {
	case OpPlus:
		for i := range out {
			out[i] = a[i] + b[i]
		}
	case OpMinus:
		for i := range out {
			out[i] = a[i] - b[i]
		}
	case OpMultiply:
		for i := range out {
			out[i] = a[i] * b[i]
		}
	case OpDivide, OpIntDivide, OpModulo:
		for i := range out {
			if nulls.IsNull(i) {
				continue
			}
			if b[i] == 0 {
				return nil, divisionByZero(op, i)
			}
			switch op {
			case OpDivide:
				out[i] = a[i] / b[i]
			case OpIntDivide:
				out[i] = math.Floor(a[i] / b[i])
			default:
				out[i] = math.Mod(a[i], b[i])
			}
		}
	}
	return result, nil
}

// floorDiv divides rounding toward negative infinity
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func divisionByZero(op BinaryOperator, row int) error {
	if op == OpModulo {
		return arithmeticf("modulo by zero at row %d", row)
	}
	return arithmeticf("division by zero at row %d", row)
}

func negate(operand *vectorized.Vector) (*vectorized.Vector, error) {
	switch operand.Type.ID {
	case vectorized.NULL:
		return operand, nil
	case vectorized.INT64:
		result := vectorized.NewVector(vectorized.Int64(), operand.Length)
		result.Nulls = operand.Nulls.Clone()
		in, out := operand.Int64s(), result.Int64s()
		for i := range out {
			out[i] = -in[i]
		}
		return result, nil
	case vectorized.FLOAT64:
		result := vectorized.NewVector(vectorized.Float64(), operand.Length)
		result.Nulls = operand.Nulls.Clone()
		in, out := operand.Float64s(), result.Float64s()
		for i := range out {
			out[i] = -in[i]
		}
		return result, nil
	}
	return nil, typeMismatchf("unary - requires a numeric operand, got %s", operand.Type)
}

func unaryPlus(operand *vectorized.Vector) (*vectorized.Vector, error) {
	if !isNumericOrNull(operand.Type) {
		return nil, typeMismatchf("unary + requires a numeric operand, got %s", operand.Type)
	}
	return operand, nil
}

// bitwise evaluates & | XOR; only INT64 operands are accepted
func bitwise(op BinaryOperator, left, right *vectorized.Vector) (*vectorized.Vector, error) {
	for _, v := range []*vectorized.Vector{left, right} {
		if v.Type.ID != vectorized.INT64 && v.Type.ID != vectorized.NULL {
			return nil, typeMismatchf("operator %s requires INT64 operands, got %s and %s", op, left.Type, right.Type)
		}
	}
	if left.Type.ID == vectorized.NULL && right.Type.ID == vectorized.NULL {
		return vectorized.NewNullVector(vectorized.Null(), left.Length), nil
	}
	l, err := left.CastTo(vectorized.Int64())
	if err != nil {
		return nil, err
	}
	r, err := right.CastTo(vectorized.Int64())
	if err != nil {
		return nil, err
	}

	result := vectorized.NewVector(vectorized.Int64(), l.Length)
	result.Nulls = vectorized.Union(l.Nulls, r.Nulls)
	a, b, out := l.Int64s(), r.Int64s(), result.Int64s()
	for i := range out {
		switch op {
		case OpBitwiseAnd:
			out[i] = a[i] & b[i]
		case OpBitwiseOr:
			out[i] = a[i] | b[i]
		case OpBitwiseXor:
			out[i] = a[i] ^ b[i]
		}
	}
	return result, nil
}

// concat implements ||. Non-string operands are rendered in their canonical
// string form; a NULL operand makes the row NULL.
func concat(left, right *vectorized.Vector) (*vectorized.Vector, error) {
	l, r := left.CastToString(), right.CastToString()
	result := vectorized.NewVector(vectorized.String(), l.Length)
	result.Nulls = vectorized.Union(l.Nulls, r.Nulls)
	a, b, out := l.Strings(), r.Strings(), result.Strings()
	for i := range out {
		if !result.Nulls.IsNull(i) {
			out[i] = a[i] + b[i]
		}
	}
	return result, nil
}
