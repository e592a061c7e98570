// Package exprtest runs expression test suites written in YAML or JSON
// against inline columns or Parquet files.
package exprtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sqleval/core"
	"sqleval/vectorized"
)

// TestCase is one expression and what evaluating it should produce
type TestCase struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Expr        interface{}     `yaml:"expr"`
	Filter      bool            `yaml:"filter,omitempty"`
	Expected    TestExpectation `yaml:"expected"`
	Tags        []string        `yaml:"tags,omitempty"`
	Timeout     time.Duration   `yaml:"timeout,omitempty"`
}

// TestExpectation describes the outcome of a case. For a filter case Values
// are read from Column of the surviving rows.
type TestExpectation struct {
	Type     string        `yaml:"type,omitempty"`
	Values   []interface{} `yaml:"values,omitempty"`
	RowCount *int          `yaml:"row_count,omitempty"`
	Column   string        `yaml:"column,omitempty"`
	Error    string        `yaml:"error,omitempty"`
}

// TestColumn is an inline input column
type TestColumn struct {
	Name   string        `yaml:"name"`
	Type   string        `yaml:"type"`
	Values []interface{} `yaml:"values"`
}

// TestData is the input of every case in a suite: inline columns or
// Parquet files relative to the suite file, not both
type TestData struct {
	Columns []TestColumn `yaml:"columns,omitempty"`
	Parquet []string     `yaml:"parquet,omitempty"`
	Select  []string     `yaml:"select,omitempty"`
}

// TestSuiteConfig contains suite-level configuration
type TestSuiteConfig struct {
	StopOnFirstFail bool `yaml:"stop_on_first_fail,omitempty"`
	Verbose         bool `yaml:"verbose,omitempty"`
}

// TestSuite is a collection of cases over one data set
type TestSuite struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Data        TestData        `yaml:"data"`
	TestCases   []TestCase      `yaml:"cases"`
	Config      TestSuiteConfig `yaml:"config,omitempty"`

	dir string
}

// TestStatus represents the status of a test
type TestStatus string

const (
	TestStatusPass    TestStatus = "PASS"
	TestStatusFail    TestStatus = "FAIL"
	TestStatusTimeout TestStatus = "TIMEOUT"
	TestStatusError   TestStatus = "ERROR"
)

// TestResult is the outcome of a single case
type TestResult struct {
	TestCase   TestCase
	Status     TestStatus
	Duration   time.Duration
	ActualRows int
	Actual     []interface{}
	Error      string
	Message    string
}

// LoadTestSuite reads a suite file. JSON is accepted as a subset of YAML.
func LoadTestSuite(path string) (*TestSuite, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	suite, err := ParseTestSuite(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if suite.Name == "" {
		base := filepath.Base(path)
		suite.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	suite.dir = filepath.Dir(path)
	return suite, nil
}

// ParseTestSuite decodes a suite document. Parquet paths stay relative to
// the working directory.
func ParseTestSuite(content []byte) (*TestSuite, error) {
	var suite TestSuite
	if err := yaml.Unmarshal(content, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	if len(suite.Data.Columns) > 0 && len(suite.Data.Parquet) > 0 {
		return nil, fmt.Errorf("suite %q: data has both inline columns and parquet files", suite.Name)
	}
	for i, tc := range suite.TestCases {
		if tc.Name == "" {
			suite.TestCases[i].Name = fmt.Sprintf("case_%d", i+1)
		}
		if tc.Expr == nil {
			return nil, fmt.Errorf("suite %q: case %q has no expr", suite.Name, suite.TestCases[i].Name)
		}
	}
	return &suite, nil
}

// FilterByTags keeps the cases carrying at least one of tags. No tags keeps
// everything.
func (s *TestSuite) FilterByTags(tags []string) {
	if len(tags) == 0 {
		return
	}
	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[strings.TrimSpace(tag)] = true
	}
	kept := s.TestCases[:0]
	for _, tc := range s.TestCases {
		for _, tag := range tc.Tags {
			if wanted[tag] {
				kept = append(kept, tc)
				break
			}
		}
	}
	s.TestCases = kept
}

// LoadData materializes the suite's input as batches of at most batchSize
// rows. Inline columns always form a single batch.
func (s *TestSuite) LoadData(batchSize int) ([]*vectorized.VectorBatch, error) {
	if len(s.Data.Parquet) > 0 {
		return s.loadParquet(batchSize)
	}

	var batch *vectorized.VectorBatch
	for _, col := range s.Data.Columns {
		t, err := vectorized.ParseType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		v, err := vectorized.FromValues(t, col.Values)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		if batch == nil {
			batch = vectorized.NewVectorBatch(v.Length)
		}
		if err := batch.AddColumn(col.Name, v); err != nil {
			return nil, err
		}
	}
	if batch == nil {
		// A suite without data evaluates its expressions over one empty row.
		batch = vectorized.NewVectorBatch(1)
	}
	return []*vectorized.VectorBatch{batch}, nil
}

func (s *TestSuite) loadParquet(batchSize int) ([]*vectorized.VectorBatch, error) {
	paths := make([]string, len(s.Data.Parquet))
	for i, p := range s.Data.Parquet {
		if !core.IsHTTPURL(p) && !filepath.IsAbs(p) {
			p = filepath.Join(s.dir, p)
		}
		paths[i] = p
	}
	mfr, err := core.NewMultiFileParquetReader(paths)
	if err != nil {
		return nil, err
	}
	defer mfr.Close()

	source, err := vectorized.NewMultiFileVectorDataSource(mfr, s.Data.Select, batchSize)
	if err != nil {
		return nil, err
	}
	var batches []*vectorized.VectorBatch
	for {
		batch, err := source.GetNextBatch()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return batches, nil
		}
		batches = append(batches, batch)
	}
}
