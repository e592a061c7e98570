package exprtest

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"sqleval/core"
	"sqleval/distributed/worker"
	"sqleval/expr"
	"sqleval/vectorized"
)

// errorKinds names the evaluation failures a case may expect. Any other
// expected error text is matched as a substring of the message.
var errorKinds = map[string]error{
	"type_mismatch":        expr.ErrTypeMismatch,
	"pattern":              expr.ErrPattern,
	"arithmetic":           expr.ErrArithmetic,
	"index_kind":           expr.ErrIndexKind,
	"unknown_column":       expr.ErrUnknownColumn,
	"unknown_function":     expr.ErrUnknownFunc,
	"unsupported_operator": expr.ErrUnsupportedOp,
	"arity":                expr.ErrArity,
	"length":               expr.ErrLength,
	"malformed":            expr.ErrMalformed,
}

// TestRunner executes suites on a worker pool
type TestRunner struct {
	pool      *worker.Pool
	batchSize int
	tracer    *core.Tracer
	out       io.Writer
	verbose   bool
}

// NewTestRunner creates a runner that evaluates with a pool built from cfg
// and reports to out (stdout when nil)
func NewTestRunner(cfg *core.Config, out io.Writer) (*TestRunner, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	pool, err := worker.NewPool("exprtest", cfg, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker pool")
	}
	if out == nil {
		out = os.Stdout
	}
	return &TestRunner{
		pool:      pool,
		batchSize: cfg.Worker.BatchSize,
		tracer:    core.GetTracer(),
		out:       out,
	}, nil
}

// SetVerbose enables/disables verbose output
func (tr *TestRunner) SetVerbose(verbose bool) {
	tr.verbose = verbose
}

// Close releases the pool
func (tr *TestRunner) Close() {
	tr.pool.Close()
}

// RunTestSuite executes every case of a suite in order
func (tr *TestRunner) RunTestSuite(ctx context.Context, suite *TestSuite) ([]TestResult, error) {
	fmt.Fprintf(tr.out, "Running test suite: %s\n", suite.Name)
	if suite.Description != "" {
		fmt.Fprintf(tr.out, "Description: %s\n", suite.Description)
	}

	batches, err := suite.LoadData(tr.batchSize)
	if err != nil {
		return nil, errors.Wrapf(err, "suite %s: failed to load data", suite.Name)
	}
	tr.tracer.Info(core.TraceComponentExpression, "Running test suite", core.TraceContext(
		"suite", suite.Name,
		"cases", len(suite.TestCases),
		"batches", len(batches),
	))
	// cases see the suite data as one table; the pool chunks it again
	table, err := vectorized.ConcatBatches(batches...)
	if err != nil {
		return nil, errors.Wrapf(err, "suite %s", suite.Name)
	}

	verbose := tr.verbose || suite.Config.Verbose
	var results []TestResult
	for i, tc := range suite.TestCases {
		fmt.Fprintf(tr.out, "\n[%d/%d] Running test: %s\n", i+1, len(suite.TestCases), tc.Name)

		result := tr.runSingleTest(ctx, tc, table)
		results = append(results, result)
		if verbose || result.Status != TestStatusPass {
			tr.printTestResult(result, verbose)
		}

		if suite.Config.StopOnFirstFail && result.Status != TestStatusPass {
			fmt.Fprintf(tr.out, "Stopping test suite due to failure in test: %s\n", tc.Name)
			break
		}
	}

	tr.printSummary(results)
	return results, nil
}

func (tr *TestRunner) runSingleTest(ctx context.Context, tc TestCase, table *vectorized.VectorBatch) TestResult {
	result := TestResult{TestCase: tc, Status: TestStatusPass}
	start := time.Now()

	node, err := expr.DecodeNode(tc.Expr)
	if err != nil {
		result.Duration = time.Since(start)
		if tc.Expected.Error == "" {
			result.Status = TestStatusError
			result.Error = fmt.Sprintf("Invalid expression: %v", err)
			return result
		}
		return tr.checkError(result, err)
	}

	if tc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tc.Timeout)
		defer cancel()
	}

	var actual *vectorized.Vector
	if tc.Filter {
		actual, result.ActualRows, err = tr.filter(ctx, node, tc.Expected.Column, table)
	} else {
		actual, err = tr.pool.EvaluateBatch(ctx, node, table)
		if actual != nil {
			result.ActualRows = actual.Length
		}
	}
	result.Duration = time.Since(start)

	if errors.Is(err, context.DeadlineExceeded) {
		result.Status = TestStatusTimeout
		result.Error = fmt.Sprintf("Test exceeded timeout of %v", tc.Timeout)
		return result
	}
	if err != nil {
		return tr.checkError(result, err)
	}
	if tc.Expected.Error != "" {
		result.Status = TestStatusFail
		result.Error = fmt.Sprintf("Expected error %q, but evaluation succeeded", tc.Expected.Error)
		return result
	}

	if actual != nil {
		result.Actual = actual.Values()
	}
	if err := validateResult(actual, result.ActualRows, tc.Expected); err != nil {
		result.Status = TestStatusFail
		result.Error = err.Error()
	}
	return result
}

// filter returns the surviving rows of column (nil when column is empty)
// and how many rows survived
func (tr *TestRunner) filter(ctx context.Context, node expr.Node, column string, table *vectorized.VectorBatch) (*vectorized.Vector, int, error) {
	filtered, err := tr.pool.FilterBatch(ctx, node, table)
	if err != nil {
		return nil, 0, err
	}
	if column == "" {
		return nil, filtered.RowCount, nil
	}
	col := filtered.GetColumnByName(column)
	if col == nil {
		return nil, 0, errors.Newf("filter result has no column %q", column)
	}
	return col, filtered.RowCount, nil
}

func (tr *TestRunner) checkError(result TestResult, err error) TestResult {
	want := result.TestCase.Expected.Error
	if want == "" {
		result.Status = TestStatusFail
		result.Error = fmt.Sprintf("Unexpected error: %v", err)
		return result
	}
	if matchesError(err, want) {
		result.Status = TestStatusPass
		result.Message = "Expected error occurred"
		return result
	}
	result.Status = TestStatusFail
	result.Error = fmt.Sprintf("Expected error %q, got: %v", want, err)
	return result
}

func matchesError(err error, want string) bool {
	if sentinel, ok := errorKinds[strings.ToLower(want)]; ok {
		return errors.Is(err, sentinel)
	}
	return strings.Contains(err.Error(), want)
}

func validateResult(actual *vectorized.Vector, rows int, expected TestExpectation) error {
	if expected.RowCount != nil && rows != *expected.RowCount {
		return errors.Newf("expected %d rows, got %d", *expected.RowCount, rows)
	}
	if actual == nil {
		if expected.Type != "" || expected.Values != nil {
			return errors.New("expected values, but the case produced no column")
		}
		return nil
	}
	if expected.Type != "" {
		t, err := vectorized.ParseType(expected.Type)
		if err != nil {
			return err
		}
		if !t.Equal(actual.Type) {
			return errors.Newf("expected type %s, got %s", t, actual.Type)
		}
	}
	if expected.Values == nil {
		return nil
	}
	if len(expected.Values) != actual.Length {
		return errors.Newf("expected %d values, got %d", len(expected.Values), actual.Length)
	}
	want, err := vectorized.FromValues(actual.Type, expected.Values)
	if err != nil {
		return errors.Wrapf(err, "expected values do not fit %s", actual.Type)
	}
	var mismatches []string
	for i := 0; i < actual.Length; i++ {
		if !compareValues(want.Value(i), actual.Value(i)) {
			mismatches = append(mismatches, fmt.Sprintf("row %d: expected %s, got %s",
				i, vectorized.NewScalar(want.Type, want.Value(i)), vectorized.NewScalar(actual.Type, actual.Value(i))))
		}
	}
	if len(mismatches) > 0 {
		return errors.Newf("data validation failed:\n%s", strings.Join(mismatches, "\n"))
	}
	return nil
}

// compareValues is deep equality where NaN equals NaN
func compareValues(expected, actual interface{}) bool {
	switch e := expected.(type) {
	case float64:
		a, ok := actual.(float64)
		return ok && (e == a || math.IsNaN(e) && math.IsNaN(a))
	case []interface{}:
		a, ok := actual.([]interface{})
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !compareValues(e[i], a[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(expected, actual)
}

func (tr *TestRunner) printTestResult(result TestResult, verbose bool) {
	switch result.Status {
	case TestStatusPass:
		fmt.Fprintf(tr.out, "  ✓ PASS - %s (%v)\n", result.TestCase.Name, result.Duration)
	case TestStatusFail:
		fmt.Fprintf(tr.out, "  ✗ FAIL - %s (%v): %s\n", result.TestCase.Name, result.Duration, result.Error)
	case TestStatusTimeout:
		fmt.Fprintf(tr.out, "  ⏱ TIMEOUT - %s (%v): %s\n", result.TestCase.Name, result.Duration, result.Error)
	case TestStatusError:
		fmt.Fprintf(tr.out, "  ✗ ERROR - %s: %s\n", result.TestCase.Name, result.Error)
	}
	if verbose && result.TestCase.Description != "" {
		fmt.Fprintf(tr.out, "    Description: %s\n", result.TestCase.Description)
	}
	if verbose && result.Actual != nil {
		fmt.Fprintf(tr.out, "    Actual: %v\n", result.Actual)
	}
}

func (tr *TestRunner) printSummary(results []TestResult) {
	counts := make(map[TestStatus]int)
	var totalDuration time.Duration
	for _, result := range results {
		counts[result.Status]++
		totalDuration += result.Duration
	}

	fmt.Fprintf(tr.out, "\n=== Test Summary ===\n")
	fmt.Fprintf(tr.out, "Total: %d tests\n", len(results))
	fmt.Fprintf(tr.out, "Passed: %d\n", counts[TestStatusPass])
	fmt.Fprintf(tr.out, "Failed: %d\n", counts[TestStatusFail])
	fmt.Fprintf(tr.out, "Timeouts: %d\n", counts[TestStatusTimeout])
	fmt.Fprintf(tr.out, "Errors: %d\n", counts[TestStatusError])
	fmt.Fprintf(tr.out, "Duration: %v\n", totalDuration)

	if len(results) > counts[TestStatusPass] {
		fmt.Fprintf(tr.out, "\nFailed tests:\n")
		for _, result := range results {
			if result.Status != TestStatusPass {
				fmt.Fprintf(tr.out, "  - %s: %s\n", result.TestCase.Name, result.Error)
			}
		}
	}
}
