package vectorized

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// VectorBatch represents a batch of equally long named columns. It is the
// evaluation environment: expressions read from it and never modify it.
type VectorBatch struct {
	Schema   *Schema
	Columns  []*Vector
	RowCount int
}

// Schema defines the structure of a vector batch
type Schema struct {
	Fields []*Field
}

// NewVectorBatch creates an empty batch whose columns will hold rowCount rows
func NewVectorBatch(rowCount int) *VectorBatch {
	return &VectorBatch{
		Schema:   &Schema{},
		RowCount: rowCount,
	}
}

// AddColumn appends a named column. Its length must match the batch row count.
func (vb *VectorBatch) AddColumn(name string, v *Vector) error {
	if v.Length != vb.RowCount {
		return fmt.Errorf("column %s has %d rows, batch has %d", name, v.Length, vb.RowCount)
	}
	if vb.ColumnIndex(name) >= 0 {
		return fmt.Errorf("duplicate column %s", name)
	}
	vb.Schema.Fields = append(vb.Schema.Fields, NewField(name, v.Type))
	vb.Columns = append(vb.Columns, v)
	return nil
}

// ColumnIndex returns the position of the named column, or -1
func (vb *VectorBatch) ColumnIndex(name string) int {
	for i, field := range vb.Schema.Fields {
		if field.Name == name {
			return i
		}
	}
	return -1
}

// GetColumnByName returns a column by name
func (vb *VectorBatch) GetColumnByName(name string) *Vector {
	if i := vb.ColumnIndex(name); i >= 0 {
		return vb.Columns[i]
	}
	return nil
}

// Take returns a batch holding only the given rows of every column
func (vb *VectorBatch) Take(indices []int) *VectorBatch {
	out := &VectorBatch{
		Schema:   vb.Schema,
		Columns:  make([]*Vector, len(vb.Columns)),
		RowCount: len(indices),
	}
	for i, col := range vb.Columns {
		out.Columns[i] = col.Take(indices)
	}
	return out
}

// Filter returns the rows where a BOOLEAN predicate is true. NULL and false
// rows are not selected. A NULL-typed predicate selects nothing.
func Filter(predicate *Vector) (*roaring.Bitmap, error) {
	selected := roaring.New()
	switch predicate.Type.ID {
	case NULL:
		return selected, nil
	case BOOLEAN:
	default:
		return nil, fmt.Errorf("filter predicate must be BOOLEAN, got %s", predicate.Type)
	}
	for i, b := range predicate.Bools() {
		if b && !predicate.IsNull(i) {
			selected.Add(uint32(i))
		}
	}
	return selected, nil
}

// Indices converts a selection bitmap into row positions
func Indices(selection *roaring.Bitmap) []int {
	out := make([]int, 0, selection.GetCardinality())
	it := selection.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// FilterBatch keeps the rows of the batch where the predicate is true
func (vb *VectorBatch) FilterBatch(predicate *Vector) (*VectorBatch, error) {
	if predicate.Length != vb.RowCount {
		return nil, fmt.Errorf("predicate has %d rows, batch has %d", predicate.Length, vb.RowCount)
	}
	selection, err := Filter(predicate)
	if err != nil {
		return nil, err
	}
	return vb.Take(Indices(selection)), nil
}

// SplitBatch cuts a batch into consecutive chunks of at most size rows and
// returns, per chunk, the row positions it covers in the original batch.
func SplitBatch(batch *VectorBatch, size int) ([]*VectorBatch, [][]int) {
	if size <= 0 || batch.RowCount <= size {
		return []*VectorBatch{batch}, [][]int{Sequence(batch.RowCount)}
	}
	var (
		chunks []*VectorBatch
		rows   [][]int
	)
	for start := 0; start < batch.RowCount; start += size {
		end := start + size
		if end > batch.RowCount {
			end = batch.RowCount
		}
		idx := make([]int, end-start)
		for j := range idx {
			idx[j] = start + j
		}
		chunks = append(chunks, batch.Take(idx))
		rows = append(rows, idx)
	}
	return chunks, rows
}

// ConcatBatches stacks batches with the same column names into one batch.
// Column types are widened as Concat does.
func ConcatBatches(batches ...*VectorBatch) (*VectorBatch, error) {
	if len(batches) == 0 {
		return NewVectorBatch(0), nil
	}
	if len(batches) == 1 {
		return batches[0], nil
	}
	first := batches[0]
	rows := 0
	for i, b := range batches {
		if len(b.Columns) != len(first.Columns) {
			return nil, fmt.Errorf("batch %d has %d columns, batch 0 has %d", i, len(b.Columns), len(first.Columns))
		}
		rows += b.RowCount
	}
	out := NewVectorBatch(rows)
	for c, field := range first.Schema.Fields {
		parts := make([]*Vector, len(batches))
		for i, b := range batches {
			j := b.ColumnIndex(field.Name)
			if j < 0 {
				return nil, fmt.Errorf("batch %d has no column %s", i, field.Name)
			}
			parts[i] = b.Columns[j]
		}
		column, err := Concat(parts...)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", first.Schema.Fields[c].Name, err)
		}
		if err := out.AddColumn(field.Name, column); err != nil {
			return nil, err
		}
	}
	return out, nil
}
