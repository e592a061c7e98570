// Package expr evaluates SQL expression trees column-at-a-time over a
// vectorized.VectorBatch with three-valued NULL semantics.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"sqleval/vectorized"
)

// Node is an immutable expression tree node. The set of node kinds is closed;
// the evaluator switches over every implementation in this file.
type Node interface {
	fmt.Stringer
	isNode()
}

// ColumnRef reads a column of the batch by name
type ColumnRef struct {
	Name string
}

// Literal is a constant broadcast to every row
type Literal struct {
	Value vectorized.Scalar
}

// Values is a pre-materialized column of arbitrary length, such as the
// result of a subquery. It appears as the right side of IN and ALL/ANY.
type Values struct {
	Column *vectorized.Vector
}

// UnaryOp applies a prefix or postfix operator
type UnaryOp struct {
	Op      UnaryOperator
	Operand Node
}

// BinaryOp applies an infix operator
type BinaryOp struct {
	Op          BinaryOperator
	Left, Right Node
}

// Between is expr [NOT] BETWEEN low AND high
type Between struct {
	Expr, Low, High Node
	Negated         bool
}

// InList is expr [NOT] IN (list...). A single Values element is treated as
// the full set of candidates.
type InList struct {
	Expr    Node
	List    []Node
	Negated bool
}

// When is one WHEN ... THEN ... arm of a CASE
type When struct {
	Cond   Node
	Result Node
}

// Case is the searched form when Operand is nil, the simple form otherwise
type Case struct {
	Operand Node
	Whens   []When
	Else    Node
}

// FunctionCall invokes one of the conditional functions
type FunctionCall struct {
	Name string
	Args []Node
}

// StructAccess is expr -> field or expr ->> field. The field is addressed
// by Field when set, otherwise by the 1-based Ordinal.
type StructAccess struct {
	Expr    Node
	Field   string
	Ordinal int
	AsText  bool
}

// PathStep addresses one level of a PathAccess: a struct field by name, or
// a struct ordinal / list position (1-based) by Index.
type PathStep struct {
	Field string
	Index int
}

// PathAccess is expr #> path or expr #>> path
type PathAccess struct {
	Expr   Node
	Path   []PathStep
	AsText bool
}

// ArraySubscript is expr[index] with 1-based index
type ArraySubscript struct {
	Expr  Node
	Index Node
}

// Quantified is left op ALL(right) or left op ANY(right). Right is reduced
// as a whole column.
type Quantified struct {
	Quantifier Quantifier
	Op         BinaryOperator
	Left       Node
	Right      Node
}

func (*ColumnRef) isNode() {}
func (*Literal) isNode() {}
func (*Values) isNode() {}
func (*UnaryOp) isNode() {}
func (*BinaryOp) isNode() {}
func (*Between) isNode() {}
func (*InList) isNode() {}
func (*Case) isNode() {}
func (*FunctionCall) isNode() {}
func (*StructAccess) isNode() {}
func (*PathAccess) isNode() {}
func (*ArraySubscript) isNode() {}
func (*Quantified) isNode() {}

// Col references a column
func Col(name string) *ColumnRef { return &ColumnRef{Name: name} }

// Lit creates a literal of type t; a nil value is a typed NULL
func Lit(t *vectorized.Type, value interface{}) *Literal {
	return &Literal{Value: vectorized.NewScalar(t, value)}
}

// Null is the untyped NULL literal
func Null() *Literal { return &Literal{Value: vectorized.NullScalar(vectorized.Null())} }

// Int is an INT64 literal
func Int(v int64) *Literal { return Lit(vectorized.Int64(), v) }

// Float is a FLOAT64 literal
func Float(v float64) *Literal { return Lit(vectorized.Float64(), v) }

// Str is a STRING literal
func Str(v string) *Literal { return Lit(vectorized.String(), v) }

// Bool is a BOOLEAN literal
func Bool(v bool) *Literal { return Lit(vectorized.Boolean(), v) }

// Unary creates a unary operation
func Unary(op UnaryOperator, operand Node) *UnaryOp {
	return &UnaryOp{Op: op, Operand: operand}
}

// Binary creates a binary operation
func Binary(op BinaryOperator, left, right Node) *BinaryOp {
	return &BinaryOp{Op: op, Left: left, Right: right}
}

// Call creates a function call
func Call(name string, args ...Node) *FunctionCall {
	return &FunctionCall{Name: name, Args: args}
}

func (n *ColumnRef) String() string { return quoteIdent(n.Name) }

func (n *Literal) String() string { return n.Value.String() }

func (n *Values) String() string {
	if n.Column == nil {
		return "VALUES ()"
	}
	parts := make([]string, n.Column.Length)
	for i := range parts {
		parts[i] = vectorized.NewScalar(n.Column.Type, n.Column.Value(i)).String()
	}
	return "VALUES (" + strings.Join(parts, ", ") + ")"
}

func (n *UnaryOp) String() string {
	if n.Op.IsPostfix() {
		return fmt.Sprintf("(%s %s)", n.Operand, n.Op)
	}
	if n.Op == OpNot {
		return fmt.Sprintf("(NOT %s)", n.Operand)
	}
	return fmt.Sprintf("(%s%s)", n.Op, n.Operand)
}

func (n *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

func (n *Between) String() string {
	not := ""
	if n.Negated {
		not = "NOT "
	}
	return fmt.Sprintf("(%s %sBETWEEN %s AND %s)", n.Expr, not, n.Low, n.High)
}

func (n *InList) String() string {
	not := ""
	if n.Negated {
		not = "NOT "
	}
	return fmt.Sprintf("(%s %sIN (%s))", n.Expr, not, joinNodes(n.List))
}

func (n *Case) String() string {
	var sb strings.Builder
	sb.WriteString("CASE")
	if n.Operand != nil {
		sb.WriteString(" ")
		sb.WriteString(n.Operand.String())
	}
	for _, w := range n.Whens {
		fmt.Fprintf(&sb, " WHEN %s THEN %s", w.Cond, w.Result)
	}
	if n.Else != nil {
		fmt.Fprintf(&sb, " ELSE %s", n.Else)
	}
	sb.WriteString(" END")
	return sb.String()
}

func (n *FunctionCall) String() string {
	return fmt.Sprintf("%s(%s)", strings.ToUpper(n.Name), joinNodes(n.Args))
}

func (n *StructAccess) String() string {
	op := "->"
	if n.AsText {
		op = "->>"
	}
	if n.Field != "" {
		return fmt.Sprintf("(%s %s %s)", n.Expr, op, vectorized.NewScalar(vectorized.String(), n.Field))
	}
	return fmt.Sprintf("(%s %s %d)", n.Expr, op, n.Ordinal)
}

func (n *PathAccess) String() string {
	op := "#>"
	if n.AsText {
		op = "#>>"
	}
	steps := make([]string, len(n.Path))
	for i, s := range n.Path {
		steps[i] = s.String()
	}
	return fmt.Sprintf("(%s %s '{%s}')", n.Expr, op, strings.Join(steps, ","))
}

func (s PathStep) String() string {
	if s.Field != "" {
		return s.Field
	}
	return strconv.Itoa(s.Index)
}

func (n *ArraySubscript) String() string {
	return fmt.Sprintf("%s[%s]", n.Expr, n.Index)
}

func (n *Quantified) String() string {
	return fmt.Sprintf("(%s %s %s(%s))", n.Left, n.Op, n.Quantifier, n.Right)
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

func quoteIdent(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
		}
	}
	if name == "" {
		return `""`
	}
	return name
}
