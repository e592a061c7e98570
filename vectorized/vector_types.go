package vectorized

import (
	"fmt"
	"strings"
)

// Vector represents a columnar vector of data
type Vector struct {
	Type *Type
	// Data holds []bool, []int64, []float64, []string, []*Vector (one child
	// per struct field) or *ListData depending on Type.ID. It is nil for NULL.
	Data       interface{}
	Nulls      *NullMask
	Length     int
	IsConstant bool // every row holds the same value, e.g. a broadcast literal
}

// ListData stores list rows as offsets into a flattened child vector.
// Row i spans Values[Offsets[i]:Offsets[i+1]].
type ListData struct {
	Offsets []int
	Values  *Vector
}

// NewVector creates a vector of the given type and length with zero, non-null values
func NewVector(t *Type, length int) *Vector {
	v := &Vector{
		Type:   t,
		Length: length,
		Nulls:  NewNullMask(length),
	}
	switch t.ID {
	case NULL:
		v.Nulls = NewAllNullMask(length)
	case BOOLEAN:
		v.Data = make([]bool, length)
	case INT64:
		v.Data = make([]int64, length)
	case FLOAT64:
		v.Data = make([]float64, length)
	case STRING:
		v.Data = make([]string, length)
	case STRUCT:
		children := make([]*Vector, len(t.Fields))
		for i, f := range t.Fields {
			children[i] = NewVector(f.Type, length)
		}
		v.Data = children
	case LIST:
		v.Data = &ListData{
			Offsets: make([]int, length+1),
			Values:  NewVector(t.Elem, 0),
		}
	}
	return v
}

// NewNullVector creates a vector of the given type where every row is NULL
func NewNullVector(t *Type, length int) *Vector {
	v := NewVector(t, length)
	v.Nulls = NewAllNullMask(length)
	if t.ID == STRUCT {
		for _, child := range v.Children() {
			child.Nulls = NewAllNullMask(length)
		}
	}
	return v
}

// Bools returns the backing slice of a BOOLEAN vector
func (v *Vector) Bools() []bool { return v.Data.([]bool) }

// Int64s returns the backing slice of an INT64 vector
func (v *Vector) Int64s() []int64 { return v.Data.([]int64) }

// Float64s returns the backing slice of a FLOAT64 vector
func (v *Vector) Float64s() []float64 { return v.Data.([]float64) }

// Strings returns the backing slice of a STRING vector
func (v *Vector) Strings() []string { return v.Data.([]string) }

// Children returns the field vectors of a STRUCT vector
func (v *Vector) Children() []*Vector { return v.Data.([]*Vector) }

// List returns the offsets and flattened values of a LIST vector
func (v *Vector) List() *ListData { return v.Data.(*ListData) }

// IsNull checks if a position is null
func (v *Vector) IsNull(index int) bool {
	return v.Nulls.IsNull(index)
}

// SetNull marks a position as null
func (v *Vector) SetNull(index int) {
	v.Nulls.SetNull(index)
}

// GetInt64 retrieves an int64 value from the vector
func (v *Vector) GetInt64(index int) (int64, bool) {
	if v.Type.ID != INT64 || index >= v.Length || v.IsNull(index) {
		return 0, false
	}
	return v.Int64s()[index], true
}

// GetFloat64 retrieves a float64 value from the vector
func (v *Vector) GetFloat64(index int) (float64, bool) {
	if v.Type.ID != FLOAT64 || index >= v.Length || v.IsNull(index) {
		return 0, false
	}
	return v.Float64s()[index], true
}

// GetString retrieves a string value from the vector
func (v *Vector) GetString(index int) (string, bool) {
	if v.Type.ID != STRING || index >= v.Length || v.IsNull(index) {
		return "", false
	}
	return v.Strings()[index], true
}

// GetBoolean retrieves a boolean value from the vector
func (v *Vector) GetBoolean(index int) (bool, bool) {
	if v.Type.ID != BOOLEAN || index >= v.Length || v.IsNull(index) {
		return false, false
	}
	return v.Bools()[index], true
}

// ListLen returns the number of elements of the list at row i
func (v *Vector) ListLen(index int) int {
	ld := v.List()
	return ld.Offsets[index+1] - ld.Offsets[index]
}

// Value returns the row as a plain Go value: nil for NULL, bool, int64,
// float64, string, or []interface{} for STRUCT (field order) and LIST rows.
func (v *Vector) Value(index int) interface{} {
	if v.IsNull(index) {
		return nil
	}
	switch v.Type.ID {
	case BOOLEAN:
		return v.Bools()[index]
	case INT64:
		return v.Int64s()[index]
	case FLOAT64:
		return v.Float64s()[index]
	case STRING:
		return v.Strings()[index]
	case STRUCT:
		children := v.Children()
		row := make([]interface{}, len(children))
		for i, child := range children {
			row[i] = child.Value(index)
		}
		return row
	case LIST:
		ld := v.List()
		row := make([]interface{}, 0, ld.Offsets[index+1]-ld.Offsets[index])
		for j := ld.Offsets[index]; j < ld.Offsets[index+1]; j++ {
			row = append(row, ld.Values.Value(j))
		}
		return row
	}
	return nil
}

// Values returns every row as plain Go values (see Value)
func (v *Vector) Values() []interface{} {
	out := make([]interface{}, v.Length)
	for i := range out {
		out[i] = v.Value(i)
	}
	return out
}

// FromValues builds a vector of type t from plain Go values. nil is NULL.
// Integers are accepted for FLOAT64 columns; STRUCT rows may be given as
// []interface{} in field order or as map[string]interface{}.
func FromValues(t *Type, values []interface{}) (*Vector, error) {
	v := NewVector(t, len(values))
	if t.ID == NULL {
		for i, val := range values {
			if val != nil {
				return nil, fmt.Errorf("row %d: non-null value %v for NULL type", i, val)
			}
		}
		return v, nil
	}
	switch t.ID {
	case STRUCT:
		return structFromValues(t, values)
	case LIST:
		return listFromValues(t, values)
	}
	for i, val := range values {
		if val == nil {
			v.SetNull(i)
			continue
		}
		if err := v.setScalar(i, val); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return v, nil
}

// MustFromValues is FromValues that panics on error; intended for literals and tests
func MustFromValues(t *Type, values ...interface{}) *Vector {
	v, err := FromValues(t, values)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Vector) setScalar(i int, val interface{}) error {
	switch v.Type.ID {
	case BOOLEAN:
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("cannot store %T in %s", val, v.Type)
		}
		v.Bools()[i] = b
	case INT64:
		n, ok := toInt64(val)
		if !ok {
			return fmt.Errorf("cannot store %T in %s", val, v.Type)
		}
		v.Int64s()[i] = n
	case FLOAT64:
		f, ok := toFloat64(val)
		if !ok {
			return fmt.Errorf("cannot store %T in %s", val, v.Type)
		}
		v.Float64s()[i] = f
	case STRING:
		switch s := val.(type) {
		case string:
			v.Strings()[i] = s
		case []byte:
			v.Strings()[i] = string(s)
		default:
			return fmt.Errorf("cannot store %T in %s", val, v.Type)
		}
	default:
		return fmt.Errorf("cannot store scalar in %s", v.Type)
	}
	return nil
}

func toInt64(val interface{}) (int64, bool) {
	switch n := val.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(val interface{}) (float64, bool) {
	switch f := val.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	if n, ok := toInt64(val); ok {
		return float64(n), true
	}
	return 0, false
}

func structFromValues(t *Type, values []interface{}) (*Vector, error) {
	columns := make([][]interface{}, len(t.Fields))
	for j := range columns {
		columns[j] = make([]interface{}, len(values))
	}
	nulls := NewNullMask(len(values))
	for i, val := range values {
		switch row := val.(type) {
		case nil:
			nulls.SetNull(i)
		case []interface{}:
			if len(row) != len(t.Fields) {
				return nil, fmt.Errorf("row %d: struct has %d fields, got %d values", i, len(t.Fields), len(row))
			}
			for j := range row {
				columns[j][i] = row[j]
			}
		case map[string]interface{}:
			for j, f := range t.Fields {
				columns[j][i] = row[f.Name]
			}
		default:
			return nil, fmt.Errorf("row %d: cannot store %T in %s", i, val, t)
		}
	}
	children := make([]*Vector, len(t.Fields))
	for j, f := range t.Fields {
		child, err := FromValues(f.Type, columns[j])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		children[j] = child
	}
	return &Vector{Type: t, Data: children, Nulls: nulls, Length: len(values)}, nil
}

func listFromValues(t *Type, values []interface{}) (*Vector, error) {
	offsets := make([]int, len(values)+1)
	var flat []interface{}
	nulls := NewNullMask(len(values))
	for i, val := range values {
		switch row := val.(type) {
		case nil:
			nulls.SetNull(i)
		case []interface{}:
			flat = append(flat, row...)
		default:
			return nil, fmt.Errorf("row %d: cannot store %T in %s", i, val, t)
		}
		offsets[i+1] = len(flat)
	}
	elems, err := FromValues(t.Elem, flat)
	if err != nil {
		return nil, fmt.Errorf("list element: %w", err)
	}
	return &Vector{
		Type:   t,
		Data:   &ListData{Offsets: offsets, Values: elems},
		Nulls:  nulls,
		Length: len(values),
	}, nil
}

// Take gathers the given rows into a new vector
func (v *Vector) Take(indices []int) *Vector {
	out := &Vector{
		Type:       v.Type,
		Length:     len(indices),
		Nulls:      NewNullMask(len(indices)),
		IsConstant: v.IsConstant,
	}
	if v.Nulls.HasNulls() {
		for k, i := range indices {
			if v.IsNull(i) {
				out.SetNull(k)
			}
		}
	}
	switch v.Type.ID {
	case NULL:
		out.Nulls = NewAllNullMask(len(indices))
	case BOOLEAN:
		out.Data = gather(v.Bools(), indices)
	case INT64:
		out.Data = gather(v.Int64s(), indices)
	case FLOAT64:
		out.Data = gather(v.Float64s(), indices)
	case STRING:
		out.Data = gather(v.Strings(), indices)
	case STRUCT:
		children := v.Children()
		taken := make([]*Vector, len(children))
		for j, child := range children {
			taken[j] = child.Take(indices)
		}
		out.Data = taken
	case LIST:
		ld := v.List()
		offsets := make([]int, len(indices)+1)
		var elemIdx []int
		for k, i := range indices {
			for j := ld.Offsets[i]; j < ld.Offsets[i+1]; j++ {
				elemIdx = append(elemIdx, j)
			}
			offsets[k+1] = len(elemIdx)
		}
		out.Data = &ListData{Offsets: offsets, Values: ld.Values.Take(elemIdx)}
	}
	return out
}

func gather[T any](src []T, indices []int) []T {
	dst := make([]T, len(indices))
	for k, i := range indices {
		dst[k] = src[i]
	}
	return dst
}

// CastTo converts the vector to type t. Only lossless implicit casts are
// supported: NULL to anything, INT64 to FLOAT64, and nested types whose
// members cast that way.
func (v *Vector) CastTo(t *Type) (*Vector, error) {
	if v.Type.Equal(t) {
		return v, nil
	}
	switch {
	case v.Type.ID == NULL:
		return NewNullVector(t, v.Length), nil
	case v.Type.ID == INT64 && t.ID == FLOAT64:
		out := NewVector(t, v.Length)
		out.Nulls = v.Nulls.Clone()
		out.IsConstant = v.IsConstant
		dst := out.Float64s()
		for i, n := range v.Int64s() {
			dst[i] = float64(n)
		}
		return out, nil
	case v.Type.ID == t.ID && t.ID.IsNested():
		out, err := FromValues(t, v.Values())
		if err != nil {
			return nil, fmt.Errorf("cannot cast %s to %s: %w", v.Type, t, err)
		}
		out.IsConstant = v.IsConstant
		return out, nil
	}
	return nil, fmt.Errorf("cannot cast %s to %s", v.Type, t)
}

// Scalar is a single typed value with a null flag
type Scalar struct {
	Type  *Type
	Value interface{}
	Null  bool
}

// NewScalar creates a scalar. The value is normalized to the plain form
// returned by Vector.Value, so an int given for INT64 is stored as int64.
func NewScalar(t *Type, value interface{}) Scalar {
	if value == nil {
		return NullScalar(t)
	}
	if v, err := FromValues(t, []interface{}{value}); err == nil {
		value = v.Value(0)
	}
	return Scalar{Type: t, Value: value}
}

// NullScalar creates a NULL scalar of type t
func NullScalar(t *Type) Scalar {
	return Scalar{Type: t, Null: true}
}

// Broadcast materializes the scalar as a constant vector of the given length
func (s Scalar) Broadcast(length int) (*Vector, error) {
	if s.Null || s.Value == nil {
		v := NewNullVector(s.Type, length)
		v.IsConstant = true
		return v, nil
	}
	values := make([]interface{}, length)
	for i := range values {
		values[i] = s.Value
	}
	v, err := FromValues(s.Type, values)
	if err != nil {
		return nil, fmt.Errorf("broadcast %s literal: %w", s.Type, err)
	}
	v.IsConstant = true
	return v, nil
}

func (s Scalar) String() string {
	if s.Null || s.Value == nil {
		return "NULL"
	}
	if str, ok := s.Value.(string); ok && s.Type.ID == STRING {
		return "'" + strings.ReplaceAll(str, "'", "''") + "'"
	}
	return FormatValue(s.Type, s.Value)
}
