package expr

import (
	"github.com/cockroachdb/errors"

	"sqleval/vectorized"
)

func (e *Evaluator) evaluateQuantified(n *Quantified, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	if !n.Op.IsComparison() {
		return nil, errors.Mark(errors.Newf("%s %s is not supported", n.Op, n.Quantifier), ErrUnsupportedOp)
	}
	left, err := e.evaluate(n.Left, batch)
	if err != nil {
		return nil, err
	}
	var set *vectorized.Vector
	if values, ok := n.Right.(*Values); ok && values.Column != nil {
		set = values.Column
	} else if set, err = e.evaluate(n.Right, batch); err != nil {
		return nil, err
	}
	return quantify(n.Quantifier, n.Op, left, set)
}

// quantify compares every row of left against all non-NULL values of set.
// ALL over no values is true, ANY over no values is false; a NULL left row
// is NULL.
func quantify(q Quantifier, op BinaryOperator, left, set *vectorized.Vector) (*vectorized.Vector, error) {
	t, l, s, err := unify(op, left, set)
	if err != nil {
		return nil, err
	}
	if op.IsOrdering() && t.ID.IsNested() {
		return nil, typeMismatchf("%s %s is not defined for %s", op, q, t)
	}

	result := vectorized.NewVector(vectorized.Boolean(), l.Length)
	result.Nulls = l.Nulls.Clone()
	out := result.Bools()

	members := make([]int, 0, s.Length)
	for j := 0; j < s.Length; j++ {
		if !s.IsNull(j) {
			members = append(members, j)
		}
	}
	if len(members) == 0 {
		for i := range out {
			out[i] = q == QuantifierAll
		}
		return result, nil
	}

	if op.IsOrdering() {
		// the extreme member decides: x > ALL needs x > max, x > ANY needs x > min
		lo, hi := members[0], members[0]
		for _, j := range members[1:] {
			if compareAt(t, s, j, s, lo) < 0 {
				lo = j
			}
			if compareAt(t, s, j, s, hi) > 0 {
				hi = j
			}
		}
		upward := op == OpGt || op == OpGtEq
		bound := lo
		if upward == (q == QuantifierAll) {
			bound = hi
		}
		for i := range out {
			if !result.Nulls.IsNull(i) {
				out[i] = outcome(op, compareAt(t, l, i, s, bound))
			}
		}
		return result, nil
	}

	distinctValues := newValueSet(s)
	for i := range out {
		if result.Nulls.IsNull(i) {
			continue
		}
		contains := distinctValues.contains(l, i)
		single := len(distinctValues.keys) == 1
		switch {
		case op == OpEq && q == QuantifierAny:
			out[i] = contains
		case op == OpEq:
			out[i] = contains && single
		case q == QuantifierAny:
			out[i] = !contains || !single
		default:
			out[i] = !contains
		}
	}
	return result, nil
}
