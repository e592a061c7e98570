package expr

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"sqleval/core"
	"sqleval/pattern"
	"sqleval/vectorized"
)

// Evaluator evaluates expression trees against vector batches. It holds no
// per-evaluation state and is safe for concurrent use.
type Evaluator struct {
	patterns *pattern.Cache
	tracer   *core.Tracer
}

// NewEvaluator creates an evaluator compiling patterns through the given
// cache. A nil cache selects the process-wide one.
func NewEvaluator(patterns *pattern.Cache) *Evaluator {
	if patterns == nil {
		patterns = pattern.Shared()
	}
	return &Evaluator{
		patterns: patterns,
		tracer:   core.GetTracer(),
	}
}

var defaultEvaluator = NewEvaluator(nil)

// Evaluate evaluates node against batch with the default evaluator
func Evaluate(node Node, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	return defaultEvaluator.Evaluate(node, batch)
}

// Evaluate evaluates node against batch and returns a column of
// batch.RowCount rows. The set of every ALL/ANY comparison is taken from the
// whole batch. Failures are returned as *EvalError.
func (e *Evaluator) Evaluate(node Node, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	if batch == nil {
		return nil, errors.New("nil batch")
	}
	traced := e.tracer.IsEnabled(core.TraceLevelDebug, core.TraceComponentExpression)
	var start time.Time
	if traced {
		start = time.Now()
		e.tracer.Debug(core.TraceComponentExpression, "Evaluating expression", core.TraceContext(
			"expr", node.String(),
			"rows", batch.RowCount,
		))
	}

	bound, err := e.bind(node, batch)
	var result *vectorized.Vector
	if err == nil {
		result, err = e.evaluate(bound, batch)
	}
	if err != nil {
		e.tracer.Warn(core.TraceComponentExpression, "Expression evaluation failed", core.TraceContext(
			"error", err.Error(),
			"rows", batch.RowCount,
		))
		return nil, err
	}

	if traced {
		e.tracer.Debug(core.TraceComponentExpression, "Expression evaluated", core.TraceContext(
			"type", result.Type.String(),
			"rows", result.Length,
			"nulls", result.Nulls.NullCount,
			"duration", time.Since(start).String(),
		))
	}
	return result, nil
}

// Filter evaluates a predicate and keeps the rows where it is true
func (e *Evaluator) Filter(predicate Node, batch *vectorized.VectorBatch) (*vectorized.VectorBatch, error) {
	mask, err := e.Evaluate(predicate, batch)
	if err != nil {
		return nil, err
	}
	if mask.Type.ID != vectorized.BOOLEAN && mask.Type.ID != vectorized.NULL {
		return nil, &EvalError{
			Node: predicate,
			Err:  typeMismatchf("filter predicate must be BOOLEAN, got %s", mask.Type),
		}
	}
	return batch.FilterBatch(mask)
}

// evaluate recursively evaluates expressions, children first
func (e *Evaluator) evaluate(node Node, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	var (
		result *vectorized.Vector
		err    error
	)
	switch n := node.(type) {
	case *ColumnRef:
		result, err = e.evaluateColumnRef(n, batch)
	case *Literal:
		result, err = n.Value.Broadcast(batch.RowCount)
	case *Values:
		result, err = e.evaluateValues(n, batch)
	case *UnaryOp:
		result, err = e.evaluateUnary(n, batch)
	case *BinaryOp:
		result, err = e.evaluateBinary(n, batch)
	case *Between:
		result, err = e.evaluateBetween(n, batch)
	case *InList:
		result, err = e.evaluateIn(n, batch)
	case *Case:
		result, err = e.evaluateCase(n, batch)
	case *FunctionCall:
		result, err = e.evaluateFunctionCall(n, batch)
	case *StructAccess:
		result, err = e.evaluateStructAccess(n, batch)
	case *PathAccess:
		result, err = e.evaluatePathAccess(n, batch)
	case *ArraySubscript:
		result, err = e.evaluateSubscript(n, batch)
	case *Quantified:
		result, err = e.evaluateQuantified(n, batch)
	case nil:
		return nil, errors.New("nil expression")
	default:
		err = errors.Newf("unsupported expression node %T", node)
	}
	if err != nil {
		return nil, wrapEvalError(node, err)
	}
	if result.Length != batch.RowCount {
		return nil, &EvalError{
			Node: node,
			Err:  errors.Mark(errors.Newf("produced %d rows, batch has %d", result.Length, batch.RowCount), ErrLength),
		}
	}
	return result, nil
}

func (e *Evaluator) evaluateColumnRef(n *ColumnRef, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	col := batch.GetColumnByName(n.Name)
	if col == nil {
		return nil, errors.Mark(errors.Newf("column %q not found", n.Name), ErrUnknownColumn)
	}
	return col, nil
}

// evaluateValues returns a materialized column used as an ordinary operand.
// Only a column matching the batch length can stand on its own.
func (e *Evaluator) evaluateValues(n *Values, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	if n.Column == nil {
		return nil, errors.New("VALUES without a column")
	}
	if n.Column.Length != batch.RowCount {
		return nil, errors.Mark(errors.Newf(
			"VALUES of %d rows used outside IN or ALL/ANY in a batch of %d rows",
			n.Column.Length, batch.RowCount), ErrLength)
	}
	return n.Column, nil
}

func (e *Evaluator) evaluateUnary(n *UnaryOp, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	operand, err := e.evaluate(n.Operand, batch)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpNot:
		return not3(operand)
	case OpNegate:
		return negate(operand)
	case OpUnaryPlus:
		return unaryPlus(operand)
	case OpIsNull:
		return isNull(operand, false), nil
	case OpIsNotNull:
		return isNull(operand, true), nil
	case OpIsTrue:
		return isBool(operand, true, false)
	case OpIsNotTrue:
		return isBool(operand, true, true)
	case OpIsFalse:
		return isBool(operand, false, false)
	case OpIsNotFalse:
		return isBool(operand, false, true)
	}
	return nil, errors.Mark(errors.Newf("unary operator %s", n.Op), ErrUnsupportedOp)
}

func (e *Evaluator) evaluateBinary(n *BinaryOp, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	switch {
	case n.Op == OpAnd || n.Op == OpOr:
		return e.evaluateLogical(n, batch)
	case n.Op.IsAccessor():
		return e.evaluateAccessor(n, batch)
	}

	left, err := e.evaluate(n.Left, batch)
	if err != nil {
		return nil, err
	}
	right, err := e.evaluate(n.Right, batch)
	if err != nil {
		return nil, err
	}

	switch {
	case n.Op.IsComparison():
		return compare(n.Op, left, right)
	case n.Op == OpIsDistinctFrom:
		return distinct(left, right, false)
	case n.Op == OpIsNotDistinctFrom:
		return distinct(left, right, true)
	case n.Op.IsArithmetic():
		return arithmetic(n.Op, left, right)
	case n.Op.IsBitwise():
		return bitwise(n.Op, left, right)
	case n.Op == OpConcat:
		return concat(left, right)
	case n.Op.IsPatternMatch():
		return e.matchPattern(n.Op, left, right)
	case n.Op == OpStartsWith:
		return startsWith(left, right)
	}
	return nil, errors.Mark(errors.Newf("binary operator %s", n.Op), ErrUnsupportedOp)
}

// evaluateLogical evaluates AND/OR. The right operand is only evaluated on
// rows the left operand does not already decide.
func (e *Evaluator) evaluateLogical(n *BinaryOp, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	left, err := e.evaluate(n.Left, batch)
	if err != nil {
		return nil, err
	}
	left, err = asBoolean(n.Op, left)
	if err != nil {
		return nil, err
	}

	decisive := n.Op == OpOr
	pending := make([]int, 0, batch.RowCount)
	values := left.Bools()
	for i := 0; i < batch.RowCount; i++ {
		if left.IsNull(i) || values[i] != decisive {
			pending = append(pending, i)
		}
	}

	var right *vectorized.Vector
	if len(pending) == batch.RowCount {
		right, err = e.evaluate(n.Right, batch)
		if err != nil {
			return nil, err
		}
	} else {
		part, err := e.evaluate(n.Right, subset(batch, pending))
		if err != nil {
			return nil, err
		}
		if part, err = asBoolean(n.Op, part); err != nil {
			return nil, err
		}
		right, err = vectorized.Scatter(vectorized.Boolean(), batch.RowCount,
			[]*vectorized.Vector{part}, [][]int{pending})
		if err != nil {
			return nil, err
		}
	}

	if n.Op == OpAnd {
		return and3(left, right)
	}
	return or3(left, right)
}

func (e *Evaluator) evaluateBetween(n *Between, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	value, err := e.evaluate(n.Expr, batch)
	if err != nil {
		return nil, err
	}
	low, err := e.evaluate(n.Low, batch)
	if err != nil {
		return nil, err
	}
	high, err := e.evaluate(n.High, batch)
	if err != nil {
		return nil, err
	}
	return between(value, low, high, n.Negated)
}

func (e *Evaluator) evaluateIn(n *InList, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	probe, err := e.evaluate(n.Expr, batch)
	if err != nil {
		return nil, err
	}
	if len(n.List) == 1 {
		if values, ok := n.List[0].(*Values); ok && values.Column != nil {
			return inSet(probe, values.Column, n.Negated)
		}
	}
	elems := make([]*vectorized.Vector, len(n.List))
	for i, item := range n.List {
		if elems[i], err = e.evaluate(item, batch); err != nil {
			return nil, err
		}
	}
	return inList(probe, elems, n.Negated)
}

func (e *Evaluator) evaluateFunctionCall(n *FunctionCall, batch *vectorized.VectorBatch) (*vectorized.Vector, error) {
	switch strings.ToUpper(n.Name) {
	case "COALESCE":
		if len(n.Args) == 0 {
			return nil, arityf("COALESCE requires at least one argument")
		}
		return e.evaluateCoalesce(n.Args, batch)
	case "IFNULL":
		if len(n.Args) != 2 {
			return nil, arityf("IFNULL requires 2 arguments, got %d", len(n.Args))
		}
		return e.evaluateCoalesce(n.Args, batch)
	case "IF":
		if len(n.Args) != 3 {
			return nil, arityf("IF requires 3 arguments, got %d", len(n.Args))
		}
		return e.evaluateBranches(nil, []When{{Cond: n.Args[0], Result: n.Args[1]}}, n.Args[2], batch)
	case "GREATEST", "LEAST":
		if len(n.Args) == 0 {
			return nil, arityf("%s requires at least one argument", strings.ToUpper(n.Name))
		}
		args, err := e.evaluateAll(n.Args, batch)
		if err != nil {
			return nil, err
		}
		return extremum(args, batch.RowCount, strings.EqualFold(n.Name, "GREATEST"))
	case "NULLIF":
		if len(n.Args) != 2 {
			return nil, arityf("NULLIF requires 2 arguments, got %d", len(n.Args))
		}
		args, err := e.evaluateAll(n.Args, batch)
		if err != nil {
			return nil, err
		}
		return nullIf(args[0], args[1])
	}
	return nil, errors.Mark(errors.Newf("function %s", strings.ToUpper(n.Name)), ErrUnknownFunc)
}

func (e *Evaluator) evaluateAll(nodes []Node, batch *vectorized.VectorBatch) ([]*vectorized.Vector, error) {
	out := make([]*vectorized.Vector, len(nodes))
	for i, node := range nodes {
		v, err := e.evaluate(node, batch)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// subset restricts batch to rows. rows is always an ascending subset of the
// batch, so a full-length subset is the batch itself.
func subset(batch *vectorized.VectorBatch, rows []int) *vectorized.VectorBatch {
	if len(rows) == batch.RowCount {
		return batch
	}
	return batch.Take(rows)
}
