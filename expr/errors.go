package expr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Evaluation failures are marked with one of these sentinels; test with errors.Is.
var (
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrPattern       = errors.New("invalid pattern")
	ErrArithmetic    = errors.New("arithmetic error")
	ErrIndexKind     = errors.New("index kind error")
	ErrUnknownColumn = errors.New("unknown column")
	ErrUnknownFunc   = errors.New("unknown function")
	ErrUnsupportedOp = errors.New("unsupported operator")
	ErrArity         = errors.New("wrong number of arguments")
	ErrLength        = errors.New("column length mismatch")
)

func typeMismatchf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrTypeMismatch)
}

func arithmeticf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrArithmetic)
}

// indexKindf reports an accessor applied to the wrong kind of value. Such an
// error is also a type mismatch.
func indexKindf(format string, args ...interface{}) error {
	return errors.Mark(errors.Mark(errors.Newf(format, args...), ErrIndexKind), ErrTypeMismatch)
}

func patternError(err error) error {
	return errors.Mark(errors.Wrap(err, "pattern"), ErrPattern)
}

func arityf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrArity)
}

// EvalError is returned by Evaluate. Node is the innermost node whose
// evaluation failed.
type EvalError struct {
	Node Node
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("failed to evaluate %s: %v", e.Node, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// wrapEvalError attaches node to err unless a child already claimed it
func wrapEvalError(node Node, err error) error {
	var ee *EvalError
	if errors.As(err, &ee) {
		return err
	}
	return &EvalError{Node: node, Err: err}
}
