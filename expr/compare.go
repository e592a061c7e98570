package expr

import (
	"cmp"
	"fmt"
	"math"
	"strings"

	"sqleval/vectorized"
)

// unify resolves the common type of both operands and casts them to it
func unify(op fmt.Stringer, left, right *vectorized.Vector) (*vectorized.Type, *vectorized.Vector, *vectorized.Vector, error) {
	t, ok := vectorized.Resolve(left.Type, right.Type)
	if !ok {
		return nil, nil, nil, typeMismatchf("cannot apply %s to %s and %s", op, left.Type, right.Type)
	}
	l, err := left.CastTo(t)
	if err != nil {
		return nil, nil, nil, typeMismatchf("%s: %v", op, err)
	}
	r, err := right.CastTo(t)
	if err != nil {
		return nil, nil, nil, typeMismatchf("%s: %v", op, err)
	}
	return t, l, r, nil
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case b:
		return -1
	}
	return 1
}

// compareFloat orders NaN above every other value and equal to itself
func compareFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareValues orders plain values of type t as returned by Vector.Value.
// Inside nested values NULL sorts first and equals NULL.
func compareValues(t *vectorized.Type, a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch t.ID {
	case vectorized.BOOLEAN:
		return compareBool(a.(bool), b.(bool))
	case vectorized.INT64:
		return cmp.Compare(a.(int64), b.(int64))
	case vectorized.FLOAT64:
		return compareFloat(a.(float64), b.(float64))
	case vectorized.STRING:
		return strings.Compare(a.(string), b.(string))
	case vectorized.STRUCT:
		ar, br := a.([]interface{}), b.([]interface{})
		for i, f := range t.Fields {
			if c := compareValues(f.Type, ar[i], br[i]); c != 0 {
				return c
			}
		}
		return 0
	case vectorized.LIST:
		ar, br := a.([]interface{}), b.([]interface{})
		for i := 0; i < len(ar) && i < len(br); i++ {
			if c := compareValues(t.Elem, ar[i], br[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(ar), len(br))
	}
	return 0
}

// compareAt compares row i of a with row j of b; both are of type t and non-NULL there
func compareAt(t *vectorized.Type, a *vectorized.Vector, i int, b *vectorized.Vector, j int) int {
	switch t.ID {
	case vectorized.BOOLEAN:
		return compareBool(a.Bools()[i], b.Bools()[j])
	case vectorized.INT64:
		return cmp.Compare(a.Int64s()[i], b.Int64s()[j])
	case vectorized.FLOAT64:
		return compareFloat(a.Float64s()[i], b.Float64s()[j])
	case vectorized.STRING:
		return strings.Compare(a.Strings()[i], b.Strings()[j])
	}
	return compareValues(t, a.Value(i), b.Value(j))
}

// comparator returns a row-aligned comparison of two vectors of type t
func comparator(t *vectorized.Type, left, right *vectorized.Vector) func(i int) int {
	switch t.ID {
	case vectorized.BOOLEAN:
		l, r := left.Bools(), right.Bools()
		return func(i int) int { return compareBool(l[i], r[i]) }
	case vectorized.INT64:
		l, r := left.Int64s(), right.Int64s()
		return func(i int) int { return cmp.Compare(l[i], r[i]) }
	case vectorized.FLOAT64:
		l, r := left.Float64s(), right.Float64s()
		return func(i int) int { return compareFloat(l[i], r[i]) }
	case vectorized.STRING:
		l, r := left.Strings(), right.Strings()
		return func(i int) int { return strings.Compare(l[i], r[i]) }
	}
	return func(i int) int { return compareValues(t, left.Value(i), right.Value(i)) }
}

// outcome maps a three-way comparison result to the truth of op
func outcome(op BinaryOperator, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNotEq:
		return c != 0
	case OpLt:
		return c < 0
	case OpLtEq:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGtEq:
		return c >= 0
	}
	return false
}

// compare evaluates = != < <= > >= with NULL propagation
func compare(op BinaryOperator, left, right *vectorized.Vector) (*vectorized.Vector, error) {
	t, l, r, err := unify(op, left, right)
	if err != nil {
		return nil, err
	}
	if op.IsOrdering() && t.ID.IsNested() {
		return nil, typeMismatchf("%s is not defined for %s", op, t)
	}
	if t.ID == vectorized.NULL {
		return vectorized.NewNullVector(vectorized.Boolean(), l.Length), nil
	}

	result := vectorized.NewVector(vectorized.Boolean(), l.Length)
	result.Nulls = vectorized.Union(l.Nulls, r.Nulls)
	cmpFn := comparator(t, l, r)
	out := result.Bools()
	for i := range out {
		if result.Nulls.IsNull(i) {
			continue
		}
		out[i] = outcome(op, cmpFn(i))
	}
	return result, nil
}

// distinct implements IS DISTINCT FROM (or, negated, IS NOT DISTINCT FROM / <=>).
// Two NULLs are not distinct; the result is never NULL.
func distinct(left, right *vectorized.Vector, negated bool) (*vectorized.Vector, error) {
	op := OpIsDistinctFrom
	if negated {
		op = OpIsNotDistinctFrom
	}
	t, l, r, err := unify(op, left, right)
	if err != nil {
		return nil, err
	}
	result := vectorized.NewVector(vectorized.Boolean(), l.Length)
	out := result.Bools()
	if t.ID == vectorized.NULL {
		for i := range out {
			out[i] = negated
		}
		return result, nil
	}
	cmpFn := comparator(t, l, r)
	for i := range out {
		lNull, rNull := l.IsNull(i), r.IsNull(i)
		var d bool
		switch {
		case lNull && rNull:
			d = false
		case lNull || rNull:
			d = true
		default:
			d = cmpFn(i) != 0
		}
		out[i] = d != negated
	}
	return result, nil
}

// between is value >= low AND value <= high, negated as a whole for NOT BETWEEN
func between(value, low, high *vectorized.Vector, negated bool) (*vectorized.Vector, error) {
	lower, err := compare(OpGtEq, value, low)
	if err != nil {
		return nil, err
	}
	upper, err := compare(OpLtEq, value, high)
	if err != nil {
		return nil, err
	}
	result, err := and3(lower, upper)
	if err != nil || !negated {
		return result, err
	}
	return not3(result)
}

// inList tests membership of probe in a row-aligned list of candidates.
// No match with a NULL candidate is NULL; NOT IN negates that result.
func inList(probe *vectorized.Vector, elems []*vectorized.Vector, negated bool) (*vectorized.Vector, error) {
	types := make([]*vectorized.Type, 0, len(elems)+1)
	types = append(types, probe.Type)
	for _, e := range elems {
		types = append(types, e.Type)
	}
	t, ok := vectorized.ResolveAll(types...)
	if !ok {
		return nil, typeMismatchf("IN list types %s are incompatible", typeList(types))
	}
	probe, err := probe.CastTo(t)
	if err != nil {
		return nil, typeMismatchf("IN: %v", err)
	}
	cast := make([]*vectorized.Vector, len(elems))
	cmps := make([]func(int) int, len(elems))
	for k, e := range elems {
		if cast[k], err = e.CastTo(t); err != nil {
			return nil, typeMismatchf("IN: %v", err)
		}
		cmps[k] = comparator(t, probe, cast[k])
	}

	result := vectorized.NewVector(vectorized.Boolean(), probe.Length)
	out := result.Bools()
	for i := range out {
		if probe.IsNull(i) {
			result.SetNull(i)
			continue
		}
		found, sawNull := false, false
		for k, e := range cast {
			if e.IsNull(i) {
				sawNull = true
				continue
			}
			if cmps[k](i) == 0 {
				found = true
				break
			}
		}
		switch {
		case found:
			out[i] = !negated
		case sawNull:
			result.SetNull(i)
		default:
			out[i] = negated
		}
	}
	return result, nil
}

// inSet tests membership of every probe row in a materialized column
func inSet(probe, set *vectorized.Vector, negated bool) (*vectorized.Vector, error) {
	_, p, s, err := unify(OpEq, probe, set)
	if err != nil {
		return nil, typeMismatchf("IN: cannot compare %s with %s", probe.Type, set.Type)
	}
	members := newValueSet(s)
	result := vectorized.NewVector(vectorized.Boolean(), p.Length)
	out := result.Bools()
	for i := range out {
		switch {
		case p.IsNull(i):
			result.SetNull(i)
		case members.contains(p, i):
			out[i] = !negated
		case members.hasNull:
			result.SetNull(i)
		default:
			out[i] = negated
		}
	}
	return result, nil
}

type nanKey struct{}

// valueSet is a hash set over the non-NULL rows of a column
type valueSet struct {
	keys    map[interface{}]struct{}
	hasNull bool
}

func newValueSet(v *vectorized.Vector) *valueSet {
	s := &valueSet{keys: make(map[interface{}]struct{}, v.Length)}
	for i := 0; i < v.Length; i++ {
		if v.IsNull(i) {
			s.hasNull = true
			continue
		}
		s.keys[valueKey(v, i)] = struct{}{}
	}
	return s
}

func (s *valueSet) contains(v *vectorized.Vector, i int) bool {
	_, ok := s.keys[valueKey(v, i)]
	return ok
}

// valueKey returns a comparable key such that equal values share a key
func valueKey(v *vectorized.Vector, i int) interface{} {
	switch v.Type.ID {
	case vectorized.BOOLEAN:
		return v.Bools()[i]
	case vectorized.INT64:
		return v.Int64s()[i]
	case vectorized.FLOAT64:
		f := v.Float64s()[i]
		if math.IsNaN(f) {
			return nanKey{}
		}
		return f
	case vectorized.STRING:
		return v.Strings()[i]
	}
	return fmt.Sprintf("%#v", v.Value(i))
}

func typeList(types []*vectorized.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
