package expr

import (
	"sqleval/vectorized"
)

// Bind returns node with the right side of every ALL/ANY comparison
// evaluated against the whole of batch and replaced by a Values node. The
// rest of the tree is shared with node; a tree without quantified
// comparisons over columns is returned as is.
//
// Evaluate binds before evaluating. Callers that split a batch into chunks
// bind against the full batch first so each chunk compares against the same
// set.
func (e *Evaluator) Bind(node Node, batch *vectorized.VectorBatch) (Node, error) {
	return e.bind(node, batch)
}

// Bind binds node with the default evaluator
func Bind(node Node, batch *vectorized.VectorBatch) (Node, error) {
	return defaultEvaluator.Bind(node, batch)
}

func (e *Evaluator) bind(node Node, batch *vectorized.VectorBatch) (Node, error) {
	switch n := node.(type) {
	case *Quantified:
		left, err := e.bind(n.Left, batch)
		if err != nil {
			return nil, err
		}
		right := n.Right
		if v, ok := right.(*Values); !ok || v.Column == nil {
			if right, err = e.bind(n.Right, batch); err != nil {
				return nil, err
			}
			set, err := e.evaluate(right, batch)
			if err != nil {
				return nil, err
			}
			right = &Values{Column: set}
		}
		if left == n.Left && right == n.Right {
			return n, nil
		}
		return &Quantified{Quantifier: n.Quantifier, Op: n.Op, Left: left, Right: right}, nil

	case *UnaryOp:
		operand, err := e.bind(n.Operand, batch)
		if err != nil || operand == n.Operand {
			return n, err
		}
		return &UnaryOp{Op: n.Op, Operand: operand}, nil

	case *BinaryOp:
		kids, changed, err := e.bindAll(batch, n.Left, n.Right)
		if err != nil || !changed {
			return n, err
		}
		return &BinaryOp{Op: n.Op, Left: kids[0], Right: kids[1]}, nil

	case *Between:
		kids, changed, err := e.bindAll(batch, n.Expr, n.Low, n.High)
		if err != nil || !changed {
			return n, err
		}
		return &Between{Expr: kids[0], Low: kids[1], High: kids[2], Negated: n.Negated}, nil

	case *InList:
		kids, changed, err := e.bindAll(batch, append([]Node{n.Expr}, n.List...)...)
		if err != nil || !changed {
			return n, err
		}
		return &InList{Expr: kids[0], List: kids[1:], Negated: n.Negated}, nil

	case *Case:
		nodes := []Node{n.Operand, n.Else}
		for _, w := range n.Whens {
			nodes = append(nodes, w.Cond, w.Result)
		}
		kids, changed, err := e.bindAll(batch, nodes...)
		if err != nil || !changed {
			return n, err
		}
		out := &Case{Operand: kids[0], Else: kids[1], Whens: make([]When, len(n.Whens))}
		for i := range n.Whens {
			out.Whens[i] = When{Cond: kids[2+2*i], Result: kids[3+2*i]}
		}
		return out, nil

	case *FunctionCall:
		kids, changed, err := e.bindAll(batch, n.Args...)
		if err != nil || !changed {
			return n, err
		}
		return &FunctionCall{Name: n.Name, Args: kids}, nil

	case *StructAccess:
		inner, err := e.bind(n.Expr, batch)
		if err != nil || inner == n.Expr {
			return n, err
		}
		return &StructAccess{Expr: inner, Field: n.Field, Ordinal: n.Ordinal, AsText: n.AsText}, nil

	case *PathAccess:
		inner, err := e.bind(n.Expr, batch)
		if err != nil || inner == n.Expr {
			return n, err
		}
		return &PathAccess{Expr: inner, Path: n.Path, AsText: n.AsText}, nil

	case *ArraySubscript:
		kids, changed, err := e.bindAll(batch, n.Expr, n.Index)
		if err != nil || !changed {
			return n, err
		}
		return &ArraySubscript{Expr: kids[0], Index: kids[1]}, nil
	}
	return node, nil
}

// bindAll binds each non-nil node and reports whether any of them changed
func (e *Evaluator) bindAll(batch *vectorized.VectorBatch, nodes ...Node) ([]Node, bool, error) {
	out := make([]Node, len(nodes))
	changed := false
	for i, child := range nodes {
		if child == nil {
			continue
		}
		bound, err := e.bind(child, batch)
		if err != nil {
			return nil, false, err
		}
		out[i] = bound
		changed = changed || bound != child
	}
	return out, changed, nil
}
