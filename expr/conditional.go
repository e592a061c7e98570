package expr

import (
	"sqleval/vectorized"
)

func (e *Evaluator) evaluateCase(n *Case, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	if len(n.Whens) == 0 {
		return nil, arityf("CASE requires at least one WHEN clause")
	}
	var operand *vectorized.Vector
	if n.Operand != nil {
		var err error
		if operand, err = e.evaluate(n.Operand, batch); err != nil {
			return nil, err
		}
	}
	return e.evaluateBranches(operand, n.Whens, n.Else, batch)
}

// evaluateBranches routes every row to the first WHEN whose condition is
// true, or to the ELSE branch. With an operand, a WHEN matches when it
// equals the operand. Each condition and result is evaluated only on the
// rows that reach it; every branch is still evaluated, possibly on zero
// rows, so the result type does not depend on the data.
func (e *Evaluator) evaluateBranches(operand *vectorized.Vector, whens []When, elseNode Node, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	remaining := vectorized.Sequence(batch.RowCount)
	parts := make([]*vectorized.Vector, 0, len(whens)+1)
	partRows := make([][]int, 0, len(whens)+1)

	for _, w := range whens {
		scope := subset(batch, remaining)
		cond, err := e.evaluate(w.Cond, scope)
		if err != nil {
			return nil, err
		}
		if operand != nil {
			probe := operand
			if len(remaining) != batch.RowCount {
				probe = operand.Take(remaining)
			}
			if cond, err = compare(OpEq, probe, cond); err != nil {
				return nil, wrapEvalError(w.Cond, err)
			}
		} else if cond.Type.ID != vectorized.BOOLEAN && cond.Type.ID != vectorized.NULL {
			return nil, wrapEvalError(w.Cond, typeMismatchf("WHEN condition must be BOOLEAN, got %s", cond.Type))
		}

		var hit, miss []int
		for k, row := range remaining {
			if b, ok := cond.GetBoolean(k); ok && b {
				hit = append(hit, row)
			} else {
				miss = append(miss, row)
			}
		}
		result, err := e.evaluate(w.Result, subset(batch, hit))
		if err != nil {
			return nil, err
		}
		parts = append(parts, result)
		partRows = append(partRows, hit)
		remaining = miss
	}

	if elseNode != nil {
		result, err := e.evaluate(elseNode, subset(batch, remaining))
		if err != nil {
			return nil, err
		}
		parts = append(parts, result)
		partRows = append(partRows, remaining)
	}
	return merge("CASE", batch.RowCount, parts, partRows)
}

// merge unifies the branch result types and scatters the parts into one column
func merge(name string, length int, parts []*vectorized.Vector, rows [][]int) (*vectorized.Vector, error) {
	types := make([]*vectorized.Type, len(parts))
	for i, p := range parts {
		types[i] = p.Type
	}
	t, ok := vectorized.ResolveAll(types...)
	if !ok {
		return nil, typeMismatchf("%s branches have incompatible types %s", name, typeList(types))
	}
	result, err := vectorized.Scatter(t, length, parts, rows)
	if err != nil {
		return nil, typeMismatchf("%s: %v", name, err)
	}
	return result, nil
}

// evaluateCoalesce returns the first non-NULL argument per row. Later
// arguments are evaluated only on rows still NULL.
func (e *Evaluator) evaluateCoalesce(args []Node, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	remaining := vectorized.Sequence(batch.RowCount)
	parts := make([]*vectorized.Vector, 0, len(args))
	partRows := make([][]int, 0, len(args))
	for _, arg := range args {
		v, err := e.evaluate(arg, subset(batch, remaining))
		if err != nil {
			return nil, err
		}
		parts = append(parts, v)
		partRows = append(partRows, remaining)

		var still []int
		for k, row := range remaining {
			if v.IsNull(k) {
				still = append(still, row)
			}
		}
		remaining = still
	}
	return merge("COALESCE", batch.RowCount, parts, partRows)
}

// extremum implements GREATEST (greatest=true) and LEAST. NULL arguments are
// skipped; a row is NULL only when every argument is NULL there.
func extremum(args []*vectorized.Vector, length int, greatest bool) (*vectorized.Vector, error) {
	name := "LEAST"
	if greatest {
		name = "GREATEST"
	}
	types := make([]*vectorized.Type, len(args))
	for i, a := range args {
		types[i] = a.Type
	}
	t, ok := vectorized.ResolveAll(types...)
	if !ok {
		return nil, typeMismatchf("%s arguments have incompatible types %s", name, typeList(types))
	}
	if t.ID.IsNested() {
		return nil, typeMismatchf("%s is not defined for %s", name, t)
	}
	cast := make([]*vectorized.Vector, len(args))
	for k, a := range args {
		c, err := a.CastTo(t)
		if err != nil {
			return nil, typeMismatchf("%s: %v", name, err)
		}
		cast[k] = c
	}

	rows := make([][]int, len(cast))
	for i := 0; i < length; i++ {
		best := -1
		for k, v := range cast {
			if v.IsNull(i) {
				continue
			}
			if best < 0 {
				best = k
				continue
			}
			c := compareAt(t, v, i, cast[best], i)
			if (greatest && c > 0) || (!greatest && c < 0) {
				best = k
			}
		}
		if best >= 0 {
			rows[best] = append(rows[best], i)
		}
	}
	parts := make([]*vectorized.Vector, len(cast))
	for k, v := range cast {
		parts[k] = v.Take(rows[k])
	}
	return vectorized.Scatter(t, length, parts, rows)
}

// nullIf returns left, except NULL where left = right is true
func nullIf(left, right *vectorized.Vector) (*vectorized.Vector, error) {
	eq, err := compare(OpEq, left, right)
	if err != nil {
		return nil, err
	}
	if left.Type.ID == vectorized.NULL {
		return left, nil
	}
	nulls := left.Nulls.Clone()
	for i := 0; i < left.Length; i++ {
		if b, ok := eq.GetBoolean(i); ok && b {
			nulls.SetNull(i)
		}
	}
	return left.WithNulls(nulls), nil
}
