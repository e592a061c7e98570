package vectorized

import (
	"math"
	"strconv"
	"strings"
)

// Resolve returns the common supertype of two operand types.
//
// NULL unifies with anything, INT64 and FLOAT64 combine to FLOAT64 and nested
// types unify member-wise. Every other cross-family pair fails.
func Resolve(left, right *Type) (*Type, bool) {
	switch {
	case left.ID == NULL:
		return right, true
	case right.ID == NULL:
		return left, true
	case left.ID.IsNumeric() && right.ID.IsNumeric():
		if left.ID == FLOAT64 || right.ID == FLOAT64 {
			return Float64(), true
		}
		return Int64(), true
	case left.ID != right.ID:
		return nil, false
	}
	switch left.ID {
	case LIST:
		elem, ok := Resolve(left.Elem, right.Elem)
		if !ok {
			return nil, false
		}
		return ListOf(elem), true
	case STRUCT:
		if len(left.Fields) != len(right.Fields) {
			return nil, false
		}
		fields := make([]*Field, len(left.Fields))
		for i := range left.Fields {
			if left.Fields[i].Name != right.Fields[i].Name {
				return nil, false
			}
			ft, ok := Resolve(left.Fields[i].Type, right.Fields[i].Type)
			if !ok {
				return nil, false
			}
			fields[i] = NewField(left.Fields[i].Name, ft)
		}
		return StructOf(fields...), true
	}
	return left, true
}

// ResolveAll folds Resolve over every type. An empty list resolves to NULL.
func ResolveAll(types ...*Type) (*Type, bool) {
	common := Null()
	for _, t := range types {
		var ok bool
		if common, ok = Resolve(common, t); !ok {
			return nil, false
		}
	}
	return common, true
}

// FormatValue renders a plain value of type t in its canonical string form,
// the representation used when a value is cast to STRING.
func FormatValue(t *Type, value interface{}) string {
	if value == nil {
		return "null"
	}
	switch t.ID {
	case BOOLEAN:
		return strconv.FormatBool(value.(bool))
	case INT64:
		return strconv.FormatInt(value.(int64), 10)
	case FLOAT64:
		return formatFloat(value.(float64))
	case STRING:
		return value.(string)
	case STRUCT:
		row := value.([]interface{})
		var sb strings.Builder
		sb.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(": ")
			sb.WriteString(FormatValue(f.Type, row[i]))
		}
		sb.WriteByte('}')
		return sb.String()
	case LIST:
		row := value.([]interface{})
		var sb strings.Builder
		sb.WriteByte('[')
		for i, elem := range row {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(FormatValue(t.Elem, elem))
		}
		sb.WriteByte(']')
		return sb.String()
	}
	return "null"
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// StringAt returns the canonical string form of row i. The caller checks nulls.
func (v *Vector) StringAt(index int) string {
	switch v.Type.ID {
	case STRING:
		return v.Strings()[index]
	case INT64:
		return strconv.FormatInt(v.Int64s()[index], 10)
	case FLOAT64:
		return formatFloat(v.Float64s()[index])
	case BOOLEAN:
		return strconv.FormatBool(v.Bools()[index])
	}
	return FormatValue(v.Type, v.Value(index))
}

// CastToString casts any vector to STRING using the canonical form. It never fails.
func (v *Vector) CastToString() *Vector {
	if v.Type.ID == STRING {
		return v
	}
	out := NewVector(String(), v.Length)
	out.Nulls = v.Nulls.Clone()
	out.IsConstant = v.IsConstant
	dst := out.Strings()
	for i := 0; i < v.Length; i++ {
		if !v.IsNull(i) {
			dst[i] = v.StringAt(i)
		}
	}
	return out
}

// AsFloat64s returns the values of a numeric vector widened to float64
func (v *Vector) AsFloat64s() []float64 {
	if v.Type.ID == FLOAT64 {
		return v.Float64s()
	}
	out := make([]float64, v.Length)
	if v.Type.ID == INT64 {
		for i, n := range v.Int64s() {
			out[i] = float64(n)
		}
	}
	return out
}
