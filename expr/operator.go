package expr

import (
	"strings"
)

// BinaryOperator enumerates the two-operand operators
type BinaryOperator int

const (
	OpAnd BinaryOperator = iota
	OpOr

	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpIsDistinctFrom
	OpIsNotDistinctFrom

	OpPlus
	OpMinus
	OpMultiply
	OpDivide
	OpIntDivide
	OpModulo

	OpBitwiseAnd
	OpBitwiseOr
	OpBitwiseXor

	OpConcat
	OpLike
	OpNotLike
	OpILike
	OpNotILike
	OpRegexMatch
	OpRegexNotMatch
	OpRegexIMatch
	OpRegexNotIMatch
	OpStartsWith

	OpArrow         // ->
	OpLongArrow     // ->>
	OpHashArrow     // #>
	OpHashLongArrow // #>>
)

var binaryOperatorNames = map[BinaryOperator]string{
	OpAnd:               "AND",
	OpOr:                "OR",
	OpEq:                "=",
	OpNotEq:             "!=",
	OpLt:                "<",
	OpLtEq:              "<=",
	OpGt:                ">",
	OpGtEq:              ">=",
	OpIsDistinctFrom:    "IS DISTINCT FROM",
	OpIsNotDistinctFrom: "IS NOT DISTINCT FROM",
	OpPlus:              "+",
	OpMinus:             "-",
	OpMultiply:          "*",
	OpDivide:            "/",
	OpIntDivide:         "//",
	OpModulo:            "%",
	OpBitwiseAnd:        "&",
	OpBitwiseOr:         "|",
	OpBitwiseXor:        "XOR",
	OpConcat:            "||",
	OpLike:              "LIKE",
	OpNotLike:           "NOT LIKE",
	OpILike:             "ILIKE",
	OpNotILike:          "NOT ILIKE",
	OpRegexMatch:        "~",
	OpRegexNotMatch:     "!~",
	OpRegexIMatch:       "~*",
	OpRegexNotIMatch:    "!~*",
	OpStartsWith:        "^@",
	OpArrow:             "->",
	OpLongArrow:         "->>",
	OpHashArrow:         "#>",
	OpHashLongArrow:     "#>>",
}

func (op BinaryOperator) String() string {
	if name, ok := binaryOperatorNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsComparison reports whether op is one of = != < <= > >=
func (op BinaryOperator) IsComparison() bool {
	return op >= OpEq && op <= OpGtEq
}

// IsOrdering reports whether op is one of < <= > >=
func (op BinaryOperator) IsOrdering() bool {
	return op >= OpLt && op <= OpGtEq
}

// IsArithmetic reports whether op is one of + - * / // %
func (op BinaryOperator) IsArithmetic() bool {
	return op >= OpPlus && op <= OpModulo
}

// IsBitwise reports whether op is one of & | XOR
func (op BinaryOperator) IsBitwise() bool {
	return op >= OpBitwiseAnd && op <= OpBitwiseXor
}

// IsPatternMatch reports whether op is a LIKE, ILIKE or regex operator
func (op BinaryOperator) IsPatternMatch() bool {
	return op >= OpLike && op <= OpRegexNotIMatch
}

// IsAccessor reports whether op is one of -> ->> #> #>>
func (op BinaryOperator) IsAccessor() bool {
	return op >= OpArrow && op <= OpHashLongArrow
}

// negated returns the positive form of a negated pattern operator
func (op BinaryOperator) negated() (BinaryOperator, bool) {
	switch op {
	case OpNotLike:
		return OpLike, true
	case OpNotILike:
		return OpILike, true
	case OpRegexNotMatch:
		return OpRegexMatch, true
	case OpRegexNotIMatch:
		return OpRegexIMatch, true
	}
	return op, false
}

var binaryOperatorAliases = map[string]BinaryOperator{
	"AND":                  OpAnd,
	"OR":                   OpOr,
	"=":                    OpEq,
	"==":                   OpEq,
	"!=":                   OpNotEq,
	"<>":                   OpNotEq,
	"<":                    OpLt,
	"<=":                   OpLtEq,
	">":                    OpGt,
	">=":                   OpGtEq,
	"IS DISTINCT FROM":     OpIsDistinctFrom,
	"IS NOT DISTINCT FROM": OpIsNotDistinctFrom,
	"<=>":                  OpIsNotDistinctFrom,
	"+":                    OpPlus,
	"-":                    OpMinus,
	"*":                    OpMultiply,
	"/":                    OpDivide,
	"//":                   OpIntDivide,
	"%":                    OpModulo,
	"&":                    OpBitwiseAnd,
	"|":                    OpBitwiseOr,
	"XOR":                  OpBitwiseXor,
	"||":                   OpConcat,
	"LIKE":                 OpLike,
	"~~":                   OpLike,
	"NOT LIKE":             OpNotLike,
	"!~~":                  OpNotLike,
	"ILIKE":                OpILike,
	"~~*":                  OpILike,
	"NOT ILIKE":            OpNotILike,
	"!~~*":                 OpNotILike,
	"~":                    OpRegexMatch,
	"REGEXP":               OpRegexMatch,
	"RLIKE":                OpRegexMatch,
	"!~":                   OpRegexNotMatch,
	"NOT REGEXP":           OpRegexNotMatch,
	"NOT RLIKE":            OpRegexNotMatch,
	"~*":                   OpRegexIMatch,
	"!~*":                  OpRegexNotIMatch,
	"^@":                   OpStartsWith,
	"->":                   OpArrow,
	"->>":                  OpLongArrow,
	"#>":                   OpHashArrow,
	"#>>":                  OpHashLongArrow,
}

// LookupBinaryOperator resolves a symbolic or keyword spelling of an operator.
// Keywords are case-insensitive and may be separated by any whitespace.
func LookupBinaryOperator(symbol string) (BinaryOperator, bool) {
	op, ok := binaryOperatorAliases[normalizeOperator(symbol)]
	return op, ok
}

// UnaryOperator enumerates the single-operand operators
type UnaryOperator int

const (
	OpNot UnaryOperator = iota
	OpNegate
	OpUnaryPlus
	OpIsNull
	OpIsNotNull
	OpIsTrue
	OpIsNotTrue
	OpIsFalse
	OpIsNotFalse
)

var unaryOperatorNames = map[UnaryOperator]string{
	OpNot:        "NOT",
	OpNegate:     "-",
	OpUnaryPlus:  "+",
	OpIsNull:     "IS NULL",
	OpIsNotNull:  "IS NOT NULL",
	OpIsTrue:     "IS TRUE",
	OpIsNotTrue:  "IS NOT TRUE",
	OpIsFalse:    "IS FALSE",
	OpIsNotFalse: "IS NOT FALSE",
}

func (op UnaryOperator) String() string {
	if name, ok := unaryOperatorNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsPostfix reports whether the operator is written after its operand
func (op UnaryOperator) IsPostfix() bool {
	return op >= OpIsNull
}

var unaryOperatorAliases = map[string]UnaryOperator{
	"NOT":          OpNot,
	"!":            OpNot,
	"-":            OpNegate,
	"+":            OpUnaryPlus,
	"IS NULL":      OpIsNull,
	"ISNULL":       OpIsNull,
	"IS NOT NULL":  OpIsNotNull,
	"NOTNULL":      OpIsNotNull,
	"IS TRUE":      OpIsTrue,
	"IS NOT TRUE":  OpIsNotTrue,
	"IS FALSE":     OpIsFalse,
	"IS NOT FALSE": OpIsNotFalse,
}

// LookupUnaryOperator resolves a spelling of a prefix or postfix operator
func LookupUnaryOperator(symbol string) (UnaryOperator, bool) {
	op, ok := unaryOperatorAliases[normalizeOperator(symbol)]
	return op, ok
}

func normalizeOperator(symbol string) string {
	return strings.ToUpper(strings.Join(strings.Fields(symbol), " "))
}

// Quantifier selects ALL or ANY for a quantified comparison
type Quantifier int

const (
	QuantifierAll Quantifier = iota
	QuantifierAny
)

func (q Quantifier) String() string {
	if q == QuantifierAny {
		return "ANY"
	}
	return "ALL"
}

// LookupQuantifier resolves ALL, ANY or its synonym SOME
func LookupQuantifier(name string) (Quantifier, bool) {
	switch normalizeOperator(name) {
	case "ALL":
		return QuantifierAll, true
	case "ANY", "SOME":
		return QuantifierAny, true
	}
	return QuantifierAll, false
}
