package expr

import (
	"strconv"
	"strings"

	"sqleval/vectorized"
)

func (e *Evaluator) evaluateSubscript(n *ArraySubscript, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	base, err := e.evaluate(n.Expr, batch)
	if err != nil {
		return nil, err
	}
	index, err := e.evaluate(n.Index, batch)
	if err != nil {
		return nil, err
	}
	return subscript(base, index)
}

// subscript returns element index (1-based) of every list row. Out of range
// positions and NULL lists or indices give NULL.
func subscript(base, index *vectorized.Vector) (*vectorized.Vector, error) {
	if base.Type.ID != vectorized.LIST && base.Type.ID != vectorized.NULL {
		return nil, indexKindf("cannot subscript a value of type %s", base.Type)
	}
	if index.Type.ID != vectorized.INT64 && index.Type.ID != vectorized.NULL {
		return nil, typeMismatchf("list index must be INT64, got %s", index.Type)
	}
	if base.Type.ID == vectorized.NULL {
		return vectorized.NewNullVector(vectorized.Null(), base.Length), nil
	}
	if index.Type.ID == vectorized.NULL {
		return vectorized.NewNullVector(base.Type.Elem, base.Length), nil
	}
	positions := index.Int64s()
	return listElement(base, func(i int) (int64, bool) {
		return positions[i], !index.IsNull(i)
	})
}

// listElement picks one element per list row; position reports the 1-based
// position for row i and false when the row has none.
func listElement(base *vectorized.Vector, position func(i int) (int64, bool)) (*vectorized.Vector, error) {
	ld := base.List()
	var rows, elems []int
	for i := 0; i < base.Length; i++ {
		if base.IsNull(i) {
			continue
		}
		k, ok := position(i)
		if !ok || k < 1 || k > int64(base.ListLen(i)) {
			continue
		}
		rows = append(rows, i)
		elems = append(elems, ld.Offsets[i]+int(k)-1)
	}
	part := ld.Values.Take(elems)
	return vectorized.Scatter(base.Type.Elem, base.Length, []*vectorized.Vector{part}, [][]int{rows})
}

func (e *Evaluator) evaluateStructAccess(n *StructAccess, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	base, err := e.evaluate(n.Expr, batch)
	if err != nil {
		return nil, err
	}
	return structField(base, PathStep{Field: n.Field, Index: n.Ordinal}, n.AsText)
}

// structField reads one field of every struct row. A field that does not
// exist gives an all-NULL column.
func structField(base *vectorized.Vector, step PathStep, asText bool) (*vectorized.Vector, error) {
	var result *vectorized.Vector
	switch base.Type.ID {
	case vectorized.NULL:
		result = base
	case vectorized.STRUCT:
		idx := fieldIndex(base.Type, step)
		if idx < 0 {
			result = vectorized.NewNullVector(vectorized.Null(), base.Length)
			break
		}
		child := base.Children()[idx]
		result = child.WithNulls(vectorized.Union(base.Nulls, child.Nulls))
	default:
		return nil, indexKindf("cannot access field %s of a value of type %s", step, base.Type)
	}
	if asText {
		return result.CastToString(), nil
	}
	return result, nil
}

// fieldIndex locates a field by name, falling back to a 1-based ordinal
func fieldIndex(t *vectorized.Type, step PathStep) int {
	if step.Field != "" {
		if idx := t.FieldIndex(step.Field); idx >= 0 {
			return idx
		}
		ordinal, err := strconv.Atoi(step.Field)
		if err != nil {
			return -1
		}
		step.Index = ordinal
	}
	if step.Index >= 1 && step.Index <= len(t.Fields) {
		return step.Index - 1
	}
	return -1
}

func (e *Evaluator) evaluatePathAccess(n *PathAccess, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	base, err := e.evaluate(n.Expr, batch)
	if err != nil {
		return nil, err
	}
	return extractPath(base, n.Path, n.AsText)
}

// extractPath walks struct fields and list positions one step at a time
func extractPath(base *vectorized.Vector, path []PathStep, asText bool) (*vectorized.Vector, error) {
	current := base
	for _, step := range path {
		var err error
		switch current.Type.ID {
		case vectorized.LIST:
			k := int64(step.Index)
			if step.Field != "" {
				if k, err = strconv.ParseInt(step.Field, 10, 64); err != nil {
					k = 0
				}
			}
			current, err = listElement(current, func(int) (int64, bool) { return k, true })
		default:
			current, err = structField(current, step, false)
		}
		if err != nil {
			return nil, err
		}
	}
	if asText {
		return current.CastToString(), nil
	}
	return current, nil
}

// evaluateAccessor evaluates the -> ->> #> #>> operator forms. The right
// operand must be a literal naming the field or path.
func (e *Evaluator) evaluateAccessor(n *BinaryOp, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	key, ok := n.Right.(*Literal)
	if !ok {
		return nil, typeMismatchf("right operand of %s must be a literal, got %s", n.Op, n.Right)
	}
	base, err := e.evaluate(n.Left, batch)
	if err != nil {
		return nil, err
	}
	asText := n.Op == OpLongArrow || n.Op == OpHashLongArrow

	if key.Value.Null {
		if base.Type.ID != vectorized.STRUCT && base.Type.ID != vectorized.LIST && base.Type.ID != vectorized.NULL {
			return nil, indexKindf("cannot apply %s to a value of type %s", n.Op, base.Type)
		}
		t := vectorized.Null()
		if asText {
			t = vectorized.String()
		}
		return vectorized.NewNullVector(t, batch.RowCount), nil
	}

	if n.Op == OpArrow || n.Op == OpLongArrow {
		step, err := stepFromScalar(n.Op, key.Value)
		if err != nil {
			return nil, err
		}
		return structField(base, step, asText)
	}
	path, err := pathFromScalar(n.Op, key.Value)
	if err != nil {
		return nil, err
	}
	return extractPath(base, path, asText)
}

func stepFromScalar(op BinaryOperator, s vectorized.Scalar) (PathStep, error) {
	switch s.Type.ID {
	case vectorized.STRING:
		return PathStep{Field: s.Value.(string)}, nil
	case vectorized.INT64:
		return PathStep{Index: int(s.Value.(int64))}, nil
	}
	return PathStep{}, typeMismatchf("%s expects a field name or ordinal, got %s", op, s.Type)
}

// pathFromScalar accepts a list of names/positions or a text path such as '{a,2,b}'
func pathFromScalar(op BinaryOperator, s vectorized.Scalar) ([]PathStep, error) {
	switch s.Type.ID {
	case vectorized.STRING:
		text := strings.TrimSpace(s.Value.(string))
		text = strings.TrimSuffix(strings.TrimPrefix(text, "{"), "}")
		if text == "" {
			return nil, nil
		}
		parts := strings.Split(text, ",")
		path := make([]PathStep, len(parts))
		for i, p := range parts {
			path[i] = PathStep{Field: strings.TrimSpace(p)}
		}
		return path, nil
	case vectorized.LIST:
		elems := s.Value.([]interface{})
		path := make([]PathStep, 0, len(elems))
		for _, elem := range elems {
			switch v := elem.(type) {
			case string:
				path = append(path, PathStep{Field: v})
			case int64:
				path = append(path, PathStep{Index: int(v)})
			default:
				return nil, typeMismatchf("%s path elements must be names or positions, got %v", op, elem)
			}
		}
		return path, nil
	}
	return nil, typeMismatchf("%s expects a path, got %s", op, s.Type)
}
