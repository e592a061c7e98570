package core

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHTTPURL(t *testing.T) {
	assert.True(t, IsHTTPURL("http://example.com/a.parquet"))
	assert.True(t, IsHTTPURL("https://example.com/a.parquet"))
	assert.False(t, IsHTTPURL("/tmp/a.parquet"))
	assert.False(t, IsHTTPURL("s3://bucket/a.parquet"))
	assert.False(t, IsHTTPURL("::"))
}

func TestParquetReaderLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emp.parquet")
	createTestFile(t, path, []TestEmployee{
		{ID: 1, Name: "Alice", Salary: 10},
		{ID: 2, Name: "Bob", Salary: 20},
	})

	reader, err := NewParquetReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, path, reader.Path())
	assert.Equal(t, []string{"id", "name", "salary"}, reader.ColumnNames())
	assert.Equal(t, int64(2), reader.NumRows())
	require.Equal(t, 1, reader.NumRowGroups())

	rows, err := reader.ReadRowGroup(0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	name := reader.Root().Column("name").Index()
	for _, v := range rows[1] {
		if v.Column() == name {
			assert.Equal(t, "Bob", string(v.ByteArray()))
		}
	}

	_, err = reader.ReadRowGroup(1)
	require.Error(t, err)
}

func TestParquetReaderErrors(t *testing.T) {
	_, err := NewParquetReader(filepath.Join(t.TempDir(), "missing.parquet"))
	require.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.parquet")
	require.NoError(t, os.WriteFile(garbage, []byte("not parquet at all"), 0o644))
	_, err = NewParquetReader(garbage)
	require.Error(t, err)
}

func TestParquetReaderHTTP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emp.parquet")
	createTestFile(t, path, []TestEmployee{{ID: 9, Name: "Remote", Salary: 1}})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}))
	defer server.Close()

	reader, err := NewParquetReader(server.URL + "/emp.parquet")
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, int64(1), reader.NumRows())
	rows, err := reader.ReadRowGroup(0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
