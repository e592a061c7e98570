package core

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"howett.net/ranger"
)

// ParquetReader gives row-group access to a local or remote Parquet file
type ParquetReader struct {
	filePath string
	file     *parquet.File
	closer   io.Closer
}

func NewParquetReader(filePath string) (*ParquetReader, error) {
	if IsHTTPURL(filePath) {
		return newHTTPParquetReader(filePath)
	}
	return newLocalParquetReader(filePath)
}

func IsHTTPURL(path string) bool {
	u, err := url.Parse(path)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func newLocalParquetReader(filePath string) (*ParquetReader, error) {
	tracer := GetTracer()
	startTime := time.Now()

	tracer.Debug(TraceComponentParquet, "Opening local Parquet file", TraceContext("file", filePath))

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	pr := &ParquetReader{filePath: filePath, file: pf, closer: file}
	tracer.Info(TraceComponentParquet, "Parquet reader initialized", TraceContext(
		"file", filePath,
		"size_bytes", stat.Size(),
		"row_groups", pr.NumRowGroups(),
		"total_rows", pr.NumRows(),
		"elapsed_ms", time.Since(startTime).Milliseconds(),
	))
	return pr, nil
}

func newHTTPParquetReader(urlStr string) (*ParquetReader, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	// range requests keep remote reads down to the footer and the chunks we touch
	httpRanger := &ranger.HTTPRanger{URL: parsedURL}
	reader, err := ranger.NewReader(httpRanger)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP reader: %w", err)
	}

	length, err := reader.Length()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTTP content length: %w", err)
	}

	pf, err := parquet.OpenFile(reader, length)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote parquet file: %w", err)
	}

	GetTracer().Info(TraceComponentParquet, "Remote Parquet reader initialized", TraceContext(
		"url", urlStr,
		"size_bytes", length,
	))
	return &ParquetReader{filePath: urlStr, file: pf}, nil
}

func (pr *ParquetReader) Close() error {
	if pr.closer != nil {
		return pr.closer.Close()
	}
	return nil
}

// Path returns the file path or URL the reader was opened with
func (pr *ParquetReader) Path() string {
	return pr.filePath
}

// Root returns the root of the file's column tree
func (pr *ParquetReader) Root() *parquet.Column {
	return pr.file.Root()
}

// Schema returns the file schema
func (pr *ParquetReader) Schema() *parquet.Schema {
	return pr.file.Schema()
}

// ColumnNames lists the top-level columns in file order
func (pr *ParquetReader) ColumnNames() []string {
	var names []string
	for _, col := range pr.file.Root().Columns() {
		names = append(names, col.Name())
	}
	return names
}

func (pr *ParquetReader) NumRows() int64 {
	return pr.file.NumRows()
}

func (pr *ParquetReader) NumRowGroups() int {
	return len(pr.file.RowGroups())
}

// ReadRowGroup reads every row of one row group. The returned rows own their
// values and stay valid after further reads.
func (pr *ParquetReader) ReadRowGroup(index int) ([]parquet.Row, error) {
	groups := pr.file.RowGroups()
	if index < 0 || index >= len(groups) {
		return nil, fmt.Errorf("row group %d out of range [0, %d)", index, len(groups))
	}
	rg := groups[index]
	startTime := time.Now()

	rows := rg.Rows()
	defer rows.Close()

	out := make([]parquet.Row, 0, rg.NumRows())
	buf := make([]parquet.Row, 128)
	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			out = append(out, row.Clone())
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row group %d of %s: %w", index, pr.filePath, err)
		}
		if n == 0 {
			break
		}
	}

	GetTracer().Debug(TraceComponentParquet, "Row group read", TraceContext(
		"file", pr.filePath,
		"row_group", index,
		"rows", len(out),
		"elapsed_ms", time.Since(startTime).Milliseconds(),
	))
	return out, nil
}
