package vectorized

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"sqleval/core"
)

// ParquetVectorDataSource turns the row groups of one or more parquet files
// into vector batches. Nested groups become STRUCT columns and repeated
// fields (including the three-level LIST layout) become LIST columns.
type ParquetVectorDataSource struct {
	readers   []*core.ParquetReader
	fields    []*parquetField
	schema    *Schema
	batchSize int

	reader   int // index into readers
	rowGroup int // next row group of readers[reader]
	pending  []parquet.Row
}

// parquetField maps one parquet column subtree onto a vectorized type
type parquetField struct {
	name     string
	typ      *Type
	kind     parquet.Kind
	optional bool
	def      int // definition level at which the field is present
	first    int // leaf column range [first, end)
	end      int

	elem     *parquetField // LIST element
	repLevel int           // repetition level that starts a new element
	elemDef  int           // definition level at which the list is non-empty

	children []*parquetField // STRUCT members
}

// NewParquetVectorDataSource creates a data source over readers that share a
// schema. columns selects top-level columns; nil selects all of them.
func NewParquetVectorDataSource(readers []*core.ParquetReader, columns []string, batchSize int) (*ParquetVectorDataSource, error) {
	if len(readers) == 0 {
		return nil, fmt.Errorf("parquet data source needs at least one reader")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	root := readers[0].Root()
	if columns == nil {
		columns = readers[0].ColumnNames()
	}

	pvds := &ParquetVectorDataSource{
		readers:   readers,
		schema:    &Schema{},
		batchSize: batchSize,
	}
	for _, name := range columns {
		col := root.Column(name)
		if col == nil {
			return nil, fmt.Errorf("column %s not found in %s", name, readers[0].Path())
		}
		field, err := buildParquetField(col, 0, 0, false)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		pvds.fields = append(pvds.fields, field)
		pvds.schema.Fields = append(pvds.schema.Fields, NewField(name, field.typ))
	}
	return pvds, nil
}

// NewMultiFileVectorDataSource reads every file of a multi-file reader in order
func NewMultiFileVectorDataSource(mfr *core.MultiFileParquetReader, columns []string, batchSize int) (*ParquetVectorDataSource, error) {
	return NewParquetVectorDataSource(mfr.Readers(), columns, batchSize)
}

func buildParquetField(col *parquet.Column, def, rep int, element bool) (*parquetField, error) {
	f := &parquetField{name: col.Name()}
	f.first, f.end = leafRange(col)
	if !element && col.Optional() {
		def++
		f.optional = true
	}
	f.def = def

	switch {
	case !element && col.Repeated():
		// a bare repeated field is a list of the field itself
		elem, err := buildParquetField(col, def+1, rep+1, true)
		if err != nil {
			return nil, err
		}
		f.setList(elem, rep+1, def+1)
	case isParquetList(col):
		repeated := col.Columns()[0]
		var (
			elem *parquetField
			err  error
		)
		if !repeated.Leaf() && len(repeated.Columns()) == 1 {
			elem, err = buildParquetField(repeated.Columns()[0], def+1, rep+1, false)
		} else {
			elem, err = buildParquetField(repeated, def+1, rep+1, true)
		}
		if err != nil {
			return nil, err
		}
		f.setList(elem, rep+1, def+1)
	case col.Leaf():
		f.kind = col.Type().Kind()
		t, err := parquetLeafType(f.kind)
		if err != nil {
			return nil, err
		}
		f.typ = t
	default:
		var members []*Field
		for _, child := range col.Columns() {
			cf, err := buildParquetField(child, def, rep, false)
			if err != nil {
				return nil, err
			}
			f.children = append(f.children, cf)
			members = append(members, NewField(cf.name, cf.typ))
		}
		f.typ = StructOf(members...)
	}
	return f, nil
}

func (f *parquetField) setList(elem *parquetField, repLevel, elemDef int) {
	f.elem = elem
	f.repLevel = repLevel
	f.elemDef = elemDef
	f.typ = ListOf(elem.typ)
}

// isParquetList matches a group whose single child is repeated, which covers
// both LIST and MAP logical types
func isParquetList(col *parquet.Column) bool {
	if col.Leaf() {
		return false
	}
	children := col.Columns()
	return len(children) == 1 && children[0].Repeated()
}

func leafRange(col *parquet.Column) (int, int) {
	if col.Leaf() {
		return col.Index(), col.Index() + 1
	}
	first, end := -1, -1
	for _, child := range col.Columns() {
		f, e := leafRange(child)
		if first < 0 || f < first {
			first = f
		}
		if e > end {
			end = e
		}
	}
	return first, end
}

func parquetLeafType(kind parquet.Kind) (*Type, error) {
	switch kind {
	case parquet.Boolean:
		return Boolean(), nil
	case parquet.Int32, parquet.Int64:
		return Int64(), nil
	case parquet.Float, parquet.Double:
		return Float64(), nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return String(), nil
	}
	return nil, fmt.Errorf("unsupported parquet type %s", kind)
}

// decode rebuilds the value of the field from the leaf values of one row
// (or one list element) restricted to the field's leaf range
func (f *parquetField) decode(values []parquet.Value) interface{} {
	if len(values) == 0 {
		return nil
	}
	if f.optional && int(values[0].DefinitionLevel()) < f.def {
		return nil
	}
	switch {
	case f.elem != nil:
		if int(values[0].DefinitionLevel()) < f.elemDef {
			return []interface{}{}
		}
		var out []interface{}
		start := 0
		for i := 1; i <= len(values); i++ {
			if i == len(values) || int(values[i].RepetitionLevel()) == f.repLevel {
				out = append(out, f.elem.decode(values[start:i]))
				start = i
			}
		}
		return out
	case f.children != nil:
		row := make([]interface{}, len(f.children))
		for i, child := range f.children {
			row[i] = child.decode(columnValues(values, child.first, child.end))
		}
		return row
	default:
		return leafValue(values[0])
	}
}

func columnValues(values []parquet.Value, first, end int) []parquet.Value {
	var out []parquet.Value
	for _, v := range values {
		if c := v.Column(); c >= first && c < end {
			out = append(out, v)
		}
	}
	return out
}

func leafValue(v parquet.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return nil
}

// GetSchema returns the schema of the batches the source produces
func (pvds *ParquetVectorDataSource) GetSchema() *Schema {
	return pvds.schema
}

// GetEstimatedRowCount returns the total number of rows across all files
func (pvds *ParquetVectorDataSource) GetEstimatedRowCount() int {
	var total int64
	for _, r := range pvds.readers {
		total += r.NumRows()
	}
	return int(total)
}

// HasNext reports whether GetNextBatch will return another batch
func (pvds *ParquetVectorDataSource) HasNext() bool {
	if len(pvds.pending) > 0 {
		return true
	}
	for r := pvds.reader; r < len(pvds.readers); r++ {
		from := 0
		if r == pvds.reader {
			from = pvds.rowGroup
		}
		if from < pvds.readers[r].NumRowGroups() && pvds.readers[r].NumRows() > 0 {
			return true
		}
	}
	return false
}

// GetNextBatch returns the next batch of at most batchSize rows, or nil when
// all files are exhausted
func (pvds *ParquetVectorDataSource) GetNextBatch() (*VectorBatch, error) {
	for len(pvds.pending) == 0 {
		if pvds.reader >= len(pvds.readers) {
			return nil, nil
		}
		reader := pvds.readers[pvds.reader]
		if pvds.rowGroup >= reader.NumRowGroups() {
			pvds.reader++
			pvds.rowGroup = 0
			continue
		}
		rows, err := reader.ReadRowGroup(pvds.rowGroup)
		if err != nil {
			return nil, err
		}
		pvds.rowGroup++
		pvds.pending = rows
	}

	n := pvds.batchSize
	if n > len(pvds.pending) {
		n = len(pvds.pending)
	}
	rows := pvds.pending[:n]
	pvds.pending = pvds.pending[n:]

	batch, err := pvds.convertRowsToVectorBatch(rows)
	if err != nil {
		return nil, err
	}
	core.GetTracer().Verbose(core.TraceComponentParquet, "Batch decoded", core.TraceContext(
		"file", pvds.readers[pvds.reader].Path(),
		"rows", batch.RowCount,
		"columns", len(batch.Columns),
	))
	return batch, nil
}

func (pvds *ParquetVectorDataSource) convertRowsToVectorBatch(rows []parquet.Row) (*VectorBatch, error) {
	batch := NewVectorBatch(len(rows))
	values := make([]interface{}, len(rows))
	for i, field := range pvds.fields {
		for r, row := range rows {
			values[r] = field.decode(columnValues(row, field.first, field.end))
		}
		vec, err := FromValues(field.typ, values)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field.name, err)
		}
		if err := batch.AddColumn(pvds.schema.Fields[i].Name, vec); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// Reset rewinds the source to the first row of the first file
func (pvds *ParquetVectorDataSource) Reset() {
	pvds.reader = 0
	pvds.rowGroup = 0
	pvds.pending = nil
}

// Close closes the underlying readers
func (pvds *ParquetVectorDataSource) Close() error {
	var firstErr error
	for _, r := range pvds.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoadParquetFile reads the selected columns of a whole file into one batch
func LoadParquetFile(path string, columns ...string) (*VectorBatch, error) {
	reader, err := core.NewParquetReader(path)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		columns = nil
	}
	pvds, err := NewParquetVectorDataSource([]*core.ParquetReader{reader}, columns, 1)
	if err != nil {
		reader.Close()
		return nil, err
	}
	defer pvds.Close()

	var rows []parquet.Row
	for i := 0; i < reader.NumRowGroups(); i++ {
		group, err := reader.ReadRowGroup(i)
		if err != nil {
			return nil, err
		}
		rows = append(rows, group...)
	}
	return pvds.convertRowsToVectorBatch(rows)
}
