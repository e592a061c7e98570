package exprtest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqleval/core"
)

func newTestRunner(t *testing.T, mutate func(cfg *core.Config)) (*TestRunner, *bytes.Buffer) {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Worker.PoolSize = 2
	if mutate != nil {
		mutate(cfg)
	}
	var out bytes.Buffer
	runner, err := NewTestRunner(cfg, &out)
	require.NoError(t, err)
	t.Cleanup(runner.Close)
	return runner, &out
}

func statuses(results []TestResult) map[string]TestStatus {
	out := make(map[string]TestStatus, len(results))
	for _, r := range results {
		out[r.TestCase.Name] = r.Status
	}
	return out
}

func TestRunBasicSuite(t *testing.T) {
	suite, err := LoadTestSuite(filepath.Join("testdata", "basic.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "basic", suite.Name)

	runner, out := newTestRunner(t, nil)
	results, err := runner.RunTestSuite(context.Background(), suite)
	require.NoError(t, err)
	require.Len(t, results, len(suite.TestCases))
	for _, r := range results {
		assert.Equal(t, TestStatusPass, r.Status, "%s: %s", r.TestCase.Name, r.Error)
	}
	assert.Contains(t, out.String(), "Passed: 11")
}

func TestFilterByTags(t *testing.T) {
	suite, err := LoadTestSuite(filepath.Join("testdata", "basic.yaml"))
	require.NoError(t, err)
	suite.FilterByTags([]string{"pattern", " index"})

	names := make([]string, len(suite.TestCases))
	for i, tc := range suite.TestCases {
		names[i] = tc.Name
	}
	assert.Equal(t, []string{"like_prefix", "bad_regex", "first_tag"}, names)
}

func TestFailuresAreReported(t *testing.T) {
	suite, err := ParseTestSuite([]byte(`
name: failing
data:
  columns:
    - {name: x, type: INT64, values: [1, 2]}
cases:
  - name: wrong_values
    expr: {op: "+", left: {col: x}, right: 1}
    expected: {values: [2, 4]}
  - name: wrong_type
    expr: {col: x}
    expected: {type: FLOAT64}
  - name: missing_error
    expr: {col: x}
    expected: {error: arithmetic}
  - name: wrong_error
    expr: {op: "/", left: {col: x}, right: 0}
    expected: {error: type_mismatch}
  - name: unexpected_error
    expr: {col: nope}
    expected: {values: [1, 2]}
  - name: broken_expr
    expr: {frobnicate: 1}
  - name: message_substring
    expr: {op: "%", left: {col: x}, right: 0}
    expected: {error: modulo by zero}
`))
	require.NoError(t, err)

	runner, out := newTestRunner(t, nil)
	results, err := runner.RunTestSuite(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, map[string]TestStatus{
		"wrong_values":      TestStatusFail,
		"wrong_type":        TestStatusFail,
		"missing_error":     TestStatusFail,
		"wrong_error":       TestStatusFail,
		"unexpected_error":  TestStatusFail,
		"broken_expr":       TestStatusError,
		"message_substring": TestStatusPass,
	}, statuses(results))
	assert.Contains(t, results[0].Error, "row 1: expected 4, got 3")
	assert.Contains(t, out.String(), "Failed tests:")
}

func TestStopOnFirstFail(t *testing.T) {
	suite, err := ParseTestSuite([]byte(`
config: {stop_on_first_fail: true}
cases:
  - expr: 1
    expected: {values: [2]}
  - expr: 1
    expected: {values: [1]}
`))
	require.NoError(t, err)
	assert.Equal(t, "case_1", suite.TestCases[0].Name)

	runner, _ := newTestRunner(t, nil)
	results, err := runner.RunTestSuite(context.Background(), suite)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, TestStatusFail, results[0].Status)
}

func TestParseTestSuiteErrors(t *testing.T) {
	_, err := ParseTestSuite([]byte(`cases: [{name: a}]`))
	assert.ErrorContains(t, err, "no expr")

	_, err = ParseTestSuite([]byte(`data: {columns: [{name: a, type: INT64, values: [1]}], parquet: [x.parquet]}`))
	assert.ErrorContains(t, err, "both")

	_, err = ParseTestSuite([]byte(`cases: {`))
	assert.Error(t, err)

	_, err = LoadTestSuite(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	suite, err := ParseTestSuite([]byte(`data: {columns: [{name: a, type: INT64, values: [1]}, {name: b, type: INT64, values: [1, 2]}]}`))
	require.NoError(t, err)
	_, err = suite.LoadData(10)
	assert.Error(t, err)
}

type reading struct {
	Sensor string  `parquet:"sensor"`
	Value  float64 `parquet:"value"`
}

func writeReadings(t *testing.T, path string, rows []reading) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[reading](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestRunJSONSuiteOverParquet(t *testing.T) {
	dir := t.TempDir()
	writeReadings(t, filepath.Join(dir, "a.parquet"), []reading{{"s1", 1.5}, {"s2", -3}, {"s1", 7}})
	writeReadings(t, filepath.Join(dir, "b.parquet"), []reading{{"s3", 10}})

	suitePath := filepath.Join(dir, "readings.json")
	require.NoError(t, os.WriteFile(suitePath, []byte(`{
  "data": {"parquet": ["a.parquet", "b.parquet"]},
  "cases": [
    {"name": "abs_like", "expr": {"case": [{"when": {"op": "<", "left": {"col": "value"}, "right": 0},
                                            "then": {"unary": "-", "operand": {"col": "value"}}}],
                                 "else": {"col": "value"}},
     "expected": {"type": "FLOAT64", "values": [1.5, 3, 7, 10]}},
    {"name": "s1_only", "filter": true, "expr": {"op": "=", "left": {"col": "sensor"}, "right": "s1"},
     "expected": {"row_count": 2, "column": "value", "values": [1.5, 7]}},
    {"name": "max_reading", "expr": {"quantified": "ALL", "op": ">=", "left": {"col": "value"}, "right": {"col": "value"}},
     "expected": {"values": [false, false, false, true]}},
    {"name": "above_min", "filter": true,
     "expr": {"quantified": "ANY", "op": ">", "left": {"col": "value"}, "right": {"col": "value"}},
     "expected": {"row_count": 3, "column": "value", "values": [1.5, 7, 10]}}
  ]
}`), 0o644))

	suite, err := LoadTestSuite(suitePath)
	require.NoError(t, err)
	assert.Equal(t, "readings", suite.Name)

	// Small batches force the suite to be evaluated as several chunks.
	runner, _ := newTestRunner(t, func(cfg *core.Config) { cfg.Worker.BatchSize = 2 })
	batches, err := suite.LoadData(2)
	require.NoError(t, err)
	assert.Len(t, batches, 3)

	results, err := runner.RunTestSuite(context.Background(), suite)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, TestStatusPass, r.Status, "%s: %s", r.TestCase.Name, r.Error)
	}
}
