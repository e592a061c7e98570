package expr

import (
	"fmt"

	"sqleval/pattern"
	"sqleval/vectorized"
)

func requireStrings(op fmt.Stringer, left, right *vectorized.Vector) error {
	for _, v := range []*vectorized.Vector{left, right} {
		if v.Type.ID != vectorized.STRING && v.Type.ID != vectorized.NULL {
			return typeMismatchf("operator %s requires STRING operands, got %s and %s", op, left.Type, right.Type)
		}
	}
	return nil
}

// matchPattern evaluates LIKE, ILIKE and the regex operators together with
// their negated forms. NULL subject or pattern gives NULL; negation is
// applied to non-NULL results only.
func (e *Evaluator) matchPattern(op BinaryOperator, subject, template *vectorized.Vector) (*vectorized.Vector, error) {
	if err := requireStrings(op, subject, template); err != nil {
		return nil, err
	}
	positive, negated := op.negated()
	n := subject.Length
	if subject.Type.ID == vectorized.NULL || template.Type.ID == vectorized.NULL {
		return vectorized.NewNullVector(vectorized.Boolean(), n), nil
	}

	result := vectorized.NewVector(vectorized.Boolean(), n)
	result.Nulls = vectorized.Union(subject.Nulls, template.Nulls)
	subjects, templates, out := subject.Strings(), template.Strings(), result.Bools()

	var (
		compiled *pattern.Pattern
		source   string
	)
	// a literal pattern compiles up front so bad regexes fail even on NULL rows
	if template.IsConstant && n > 0 && !template.IsNull(0) {
		p, err := e.compilePattern(positive, templates[0])
		if err != nil {
			return nil, err
		}
		compiled, source = p, templates[0]
	}
	for i := range out {
		if result.Nulls.IsNull(i) {
			continue
		}
		if compiled == nil || templates[i] != source {
			p, err := e.compilePattern(positive, templates[i])
			if err != nil {
				return nil, err
			}
			compiled, source = p, templates[i]
		}
		out[i] = compiled.Match(subjects[i]) != negated
	}
	return result, nil
}

func (e *Evaluator) compilePattern(op BinaryOperator, source string) (*pattern.Pattern, error) {
	switch op {
	case OpLike:
		return e.patterns.Like(source, false), nil
	case OpILike:
		return e.patterns.Like(source, true), nil
	case OpRegexMatch, OpRegexIMatch:
		p, err := e.patterns.Regex(source, op == OpRegexIMatch)
		if err != nil {
			return nil, patternError(err)
		}
		return p, nil
	}
	return nil, typeMismatchf("operator %s is not a pattern match", op)
}

// startsWith implements ^@
func startsWith(subject, prefix *vectorized.Vector) (*vectorized.Vector, error) {
	if err := requireStrings(OpStartsWith, subject, prefix); err != nil {
		return nil, err
	}
	n := subject.Length
	if subject.Type.ID == vectorized.NULL || prefix.Type.ID == vectorized.NULL {
		return vectorized.NewNullVector(vectorized.Boolean(), n), nil
	}
	result := vectorized.NewVector(vectorized.Boolean(), n)
	result.Nulls = vectorized.Union(subject.Nulls, prefix.Nulls)
	s, p, out := subject.Strings(), prefix.Strings(), result.Bools()
	for i := range out {
		if !result.Nulls.IsNull(i) {
			out[i] = pattern.StartsWith(s[i], p[i])
		}
	}
	return result, nil
}
