package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestEmployee struct {
	ID     int32  `parquet:"id"`
	Name   string `parquet:"name"`
	Salary int32  `parquet:"salary"`
}

func createTestFile[T any](t *testing.T, path string, records []T) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	writer := parquet.NewGenericWriter[T](file)
	_, err = writer.Write(records)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
}

func TestNewMultiFileParquetReader(t *testing.T) {
	testDir := t.TempDir()
	file1 := filepath.Join(testDir, "emp1.parquet")
	file2 := filepath.Join(testDir, "emp2.parquet")
	file3 := filepath.Join(testDir, "emp3.parquet")

	createTestFile(t, file1, []TestEmployee{
		{ID: 1, Name: "Alice", Salary: 100000},
		{ID: 2, Name: "Bob", Salary: 80000},
	})
	createTestFile(t, file2, []TestEmployee{
		{ID: 3, Name: "Charlie", Salary: 90000},
		{ID: 4, Name: "David", Salary: 85000},
	})
	createTestFile(t, file3, []TestEmployee{
		{ID: 5, Name: "Eve", Salary: 95000},
	})

	t.Run("Create multi-file reader", func(t *testing.T) {
		reader, err := NewMultiFileParquetReader([]string{file1, file2, file3})
		require.NoError(t, err)
		defer reader.Close()

		assert.Len(t, reader.Readers(), 3)
		assert.Equal(t, []string{"id", "name", "salary"}, reader.ColumnNames())
		assert.Equal(t, int64(5), reader.NumRows())
		assert.Equal(t, file2, reader.Readers()[1].Path())
	})

	t.Run("Empty file list", func(t *testing.T) {
		_, err := NewMultiFileParquetReader([]string{})
		require.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := NewMultiFileParquetReader([]string{file1, filepath.Join(testDir, "nope.parquet")})
		require.Error(t, err)
	})

	t.Run("Schema mismatch", func(t *testing.T) {
		type DifferentRecord struct {
			ID    string `parquet:"id"`
			Name  string `parquet:"name"`
			Email string `parquet:"email"`
		}
		badFile := filepath.Join(testDir, "bad.parquet")
		createTestFile(t, badFile, []DifferentRecord{{ID: "6", Name: "Frank", Email: "frank@example.com"}})

		_, err := NewMultiFileParquetReader([]string{file1, badFile})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema mismatch")
	})

	t.Run("Type mismatch", func(t *testing.T) {
		type WideEmployee struct {
			ID     int64  `parquet:"id"`
			Name   string `parquet:"name"`
			Salary int32  `parquet:"salary"`
		}
		wide := filepath.Join(testDir, "wide.parquet")
		createTestFile(t, wide, []WideEmployee{{ID: 7, Name: "Gus", Salary: 1}})

		_, err := NewMultiFileParquetReader([]string{file1, wide})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "column id")
	})
}
