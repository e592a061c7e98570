package core

import (
	"fmt"
	"strings"
)

// MultiFileParquetReader reads several parquet files with one schema as a single table
type MultiFileParquetReader struct {
	filePaths []string
	readers   []*ParquetReader
}

// NewMultiFileParquetReader opens every file and checks that their schemas line up
func NewMultiFileParquetReader(filePaths []string) (*MultiFileParquetReader, error) {
	if len(filePaths) == 0 {
		return nil, fmt.Errorf("no file paths provided")
	}

	readers := make([]*ParquetReader, 0, len(filePaths))
	closeAll := func() {
		for _, r := range readers {
			r.Close()
		}
	}

	for i, path := range filePaths {
		reader, err := NewParquetReader(path)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to open file %s: %w", path, err)
		}
		if i > 0 {
			if why := schemaMismatch(readers[0], reader); why != "" {
				reader.Close()
				closeAll()
				return nil, fmt.Errorf("schema mismatch in file %s: %s", path, why)
			}
		}
		readers = append(readers, reader)
	}

	GetTracer().Debug(TraceComponentParquet, "Multi-file reader opened", TraceContext(
		"files", strings.Join(filePaths, ";"),
		"count", len(readers),
	))
	return &MultiFileParquetReader{filePaths: filePaths, readers: readers}, nil
}

// schemaMismatch compares leaf column paths and physical kinds, returning
// a description of the first difference or "" when compatible
func schemaMismatch(first, other *ParquetReader) string {
	want, got := first.Schema().Columns(), other.Schema().Columns()
	if len(want) != len(got) {
		return fmt.Sprintf("expected %d leaf columns, got %d", len(want), len(got))
	}
	for i, path := range want {
		if strings.Join(path, ".") != strings.Join(got[i], ".") {
			return fmt.Sprintf("column %d is %s, expected %s", i, strings.Join(got[i], "."), strings.Join(path, "."))
		}
		a, _ := first.Schema().Lookup(path...)
		b, _ := other.Schema().Lookup(path...)
		if a.Node.Type().Kind() != b.Node.Type().Kind() {
			return fmt.Sprintf("column %s is %s, expected %s", strings.Join(path, "."), b.Node.Type().Kind(), a.Node.Type().Kind())
		}
		if a.MaxRepetitionLevel != b.MaxRepetitionLevel || a.MaxDefinitionLevel != b.MaxDefinitionLevel {
			return fmt.Sprintf("column %s differs in nesting", strings.Join(path, "."))
		}
	}
	return ""
}

// Readers returns the per-file readers in the order the paths were given
func (mfr *MultiFileParquetReader) Readers() []*ParquetReader {
	return mfr.readers
}

// NumRows sums the row counts of all files
func (mfr *MultiFileParquetReader) NumRows() int64 {
	var total int64
	for _, reader := range mfr.readers {
		total += reader.NumRows()
	}
	return total
}

// ColumnNames returns the top-level columns of the first file
func (mfr *MultiFileParquetReader) ColumnNames() []string {
	return mfr.readers[0].ColumnNames()
}

// Close closes all readers and returns the first error
func (mfr *MultiFileParquetReader) Close() error {
	var firstErr error
	for _, reader := range mfr.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
