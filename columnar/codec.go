package columnar

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cockroachdb/errors"

	"sqleval/core"
	"sqleval/vectorized"
)

// Encoded payloads start with a fixed header:
//
//	magic "SQEV" | version | kind | compression | uvarint raw size | body
//
// The body is compressed as a whole. Null masks travel as serialized
// roaring bitmaps, list offsets as delta blocks and low-cardinality INT64
// columns as dictionary blocks.
const (
	codecMagic   = "SQEV"
	codecVersion = 1

	kindVector byte = 1
	kindBatch  byte = 2

	int64Plain      byte = 0
	int64Dictionary byte = 1

	flagConstant byte = 1

	// rows of a vector whose encoding takes no bytes per row, such as a
	// NULL column
	maxDataFreeRows = 1 << 24
	maxTypeDepth    = 64
)

// EncodeVector serializes a vector with its type
func EncodeVector(v *vectorized.Vector, c Compressor) ([]byte, error) {
	var body bytes.Buffer
	writeType(&body, v.Type)
	if err := writeVector(&body, v); err != nil {
		return nil, err
	}
	return seal(kindVector, body.Bytes(), c, v.Length)
}

// DecodeVector restores a vector written by EncodeVector
func DecodeVector(data []byte) (_ *vectorized.Vector, err error) {
	defer recoverCorrupt(&err)
	r, err := open(data, kindVector)
	if err != nil {
		return nil, err
	}
	t, err := r.readType()
	if err != nil {
		return nil, err
	}
	v, err := r.readVector(t)
	if err != nil {
		return nil, err
	}
	return v, r.done()
}

// EncodeBatch serializes every named column of a batch
func EncodeBatch(batch *vectorized.VectorBatch, c Compressor) ([]byte, error) {
	var body bytes.Buffer
	writeUvarint(&body, uint64(batch.RowCount))
	writeUvarint(&body, uint64(len(batch.Columns)))
	for i, col := range batch.Columns {
		writeString(&body, batch.Schema.Fields[i].Name)
		writeType(&body, col.Type)
		if err := writeVector(&body, col); err != nil {
			return nil, errors.Wrapf(err, "column %s", batch.Schema.Fields[i].Name)
		}
	}
	return seal(kindBatch, body.Bytes(), c, batch.RowCount)
}

// DecodeBatch restores a batch written by EncodeBatch
func DecodeBatch(data []byte) (_ *vectorized.VectorBatch, err error) {
	defer recoverCorrupt(&err)
	r, err := open(data, kindBatch)
	if err != nil {
		return nil, err
	}
	rows, err := r.readLength()
	if err != nil {
		return nil, err
	}
	cols, err := r.readLength()
	if err != nil {
		return nil, err
	}
	batch := vectorized.NewVectorBatch(rows)
	for i := 0; i < cols; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, err
		}
		t, err := r.readType()
		if err != nil {
			return nil, err
		}
		v, err := r.readVector(t)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", name)
		}
		if err := batch.AddColumn(name, v); err != nil {
			return nil, err
		}
	}
	return batch, r.done()
}

// recoverCorrupt turns a panic in a third-party decoder fed corrupt bytes
// into an error
func recoverCorrupt(err *error) {
	if p := recover(); p != nil {
		*err = errors.Newf("corrupt payload: %v", p)
	}
}

func seal(kind byte, body []byte, c Compressor, rows int) ([]byte, error) {
	if c == nil {
		c = NoopCompressor{}
	}
	payload, err := c.Compress(body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s compression failed", c.Type())
	}
	var out bytes.Buffer
	out.WriteString(codecMagic)
	out.WriteByte(codecVersion)
	out.WriteByte(kind)
	out.WriteByte(byte(c.Type()))
	writeUvarint(&out, uint64(len(body)))
	out.Write(payload)

	core.GetTracer().Debug(core.TraceComponentCodec, "Payload encoded", core.TraceContext(
		"rows", rows,
		"raw_bytes", len(body),
		"encoded_bytes", out.Len(),
		"compression", c.Type().String(),
	))
	return out.Bytes(), nil
}

func open(data []byte, kind byte) (*reader, error) {
	if len(data) < len(codecMagic)+3 || string(data[:len(codecMagic)]) != codecMagic {
		return nil, errors.New("not an encoded vector payload")
	}
	header := data[len(codecMagic):]
	if header[0] != codecVersion {
		return nil, errors.Newf("unsupported codec version %d", header[0])
	}
	if header[1] != kind {
		return nil, errors.Newf("payload kind %d, expected %d", header[1], kind)
	}
	c, err := CreateCompressor(CompressionType(header[2]), CompressionLevelDefault)
	if err != nil {
		return nil, err
	}
	if z, ok := c.(*ZstdCompressor); ok {
		defer z.Close()
	}
	rest := header[3:]
	rawSize, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, errors.New("corrupt payload size")
	}
	if rawSize > MaxDecodedBytes {
		return nil, errors.Newf("payload of %d bytes exceeds the %d byte limit", rawSize, MaxDecodedBytes)
	}
	body, err := c.Decompress(rest[n:])
	if err != nil {
		return nil, errors.Wrapf(err, "%s decompression failed", c.Type())
	}
	if uint64(len(body)) != rawSize {
		return nil, errors.Newf("payload is %d bytes, header says %d", len(body), rawSize)
	}
	return &reader{Reader: bytes.NewReader(body)}, nil
}

func writeUvarint(buf *bytes.Buffer, x uint64) {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], x)
	buf.Write(scratch[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeBlock(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func writeType(buf *bytes.Buffer, t *vectorized.Type) {
	buf.WriteByte(byte(t.ID))
	switch t.ID {
	case vectorized.STRUCT:
		writeUvarint(buf, uint64(len(t.Fields)))
		for _, f := range t.Fields {
			writeString(buf, f.Name)
			writeType(buf, f.Type)
		}
	case vectorized.LIST:
		writeType(buf, t.Elem)
	}
}

func writeVector(buf *bytes.Buffer, v *vectorized.Vector) error {
	writeUvarint(buf, uint64(v.Length))
	var flags byte
	if v.IsConstant {
		flags |= flagConstant
	}
	buf.WriteByte(flags)

	if v.Type.ID == vectorized.NULL || !v.Nulls.HasNulls() {
		writeUvarint(buf, 0)
	} else {
		nulls, err := v.Nulls.ToRoaring().ToBytes()
		if err != nil {
			return errors.Wrap(err, "serialize null mask")
		}
		writeBlock(buf, nulls)
	}

	switch v.Type.ID {
	case vectorized.NULL:
	case vectorized.BOOLEAN:
		packed := make([]byte, (v.Length+7)/8)
		for i, b := range v.Bools() {
			if b {
				packed[i/8] |= 1 << (i % 8)
			}
		}
		buf.Write(packed)
	case vectorized.INT64:
		writeInt64s(buf, v.Int64s())
	case vectorized.FLOAT64:
		var scratch [8]byte
		for _, f := range v.Float64s() {
			ByteOrder.PutUint64(scratch[:], math.Float64bits(f))
			buf.Write(scratch[:])
		}
	case vectorized.STRING:
		for _, s := range v.Strings() {
			writeString(buf, s)
		}
	case vectorized.STRUCT:
		for _, child := range v.Children() {
			if err := writeVector(buf, child); err != nil {
				return err
			}
		}
	case vectorized.LIST:
		list := v.List()
		offsets := make([]uint64, len(list.Offsets))
		for i, o := range list.Offsets {
			offsets[i] = uint64(o)
		}
		writeBlock(buf, NewDeltaEncoder().Encode(offsets))
		return writeVector(buf, list.Values)
	default:
		return errors.Newf("cannot encode %s vector", v.Type)
	}
	return nil
}

func writeInt64s(buf *bytes.Buffer, values []int64) {
	raw := make([]uint64, len(values))
	for i, x := range values {
		raw[i] = uint64(x)
	}
	dict := NewDictionaryEncoder()
	dict.BuildDictionary(raw)
	if len(raw) > 0 && dict.CanUseDictionary(dict.Size(), len(raw)) {
		buf.WriteByte(int64Dictionary)
		writeBlock(buf, dict.Encode(raw))
		return
	}
	buf.WriteByte(int64Plain)
	var scratch [8]byte
	for _, x := range raw {
		ByteOrder.PutUint64(scratch[:], x)
		buf.Write(scratch[:])
	}
}

type reader struct {
	*bytes.Reader
}

func (r *reader) done() error {
	if r.Len() != 0 {
		return errors.Newf("%d trailing bytes after payload", r.Len())
	}
	return nil
}

func (r *reader) readLength() (int, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, errors.Wrap(err, "truncated payload")
	}
	if n > math.MaxInt32 {
		return 0, errors.Newf("length %d exceeds payload", n)
	}
	return int(n), nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n > r.Len() {
		return nil, errors.Newf("truncated payload: need %d bytes, have %d", n, r.Len())
	}
	b := make([]byte, n)
	_, err := r.Read(b)
	return b, err
}

func (r *reader) readBlock() ([]byte, error) {
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	return r.readBytes(n)
}

func (r *reader) readString() (string, error) {
	b, err := r.readBlock()
	return string(b), err
}

func (r *reader) readType() (*vectorized.Type, error) {
	return r.readNestedType(0)
}

func (r *reader) readNestedType(depth int) (*vectorized.Type, error) {
	if depth > maxTypeDepth {
		return nil, errors.Newf("type nested deeper than %d levels", maxTypeDepth)
	}
	id, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "truncated type")
	}
	switch vectorized.DataType(id) {
	case vectorized.NULL:
		return vectorized.Null(), nil
	case vectorized.BOOLEAN:
		return vectorized.Boolean(), nil
	case vectorized.INT64:
		return vectorized.Int64(), nil
	case vectorized.FLOAT64:
		return vectorized.Float64(), nil
	case vectorized.STRING:
		return vectorized.String(), nil
	case vectorized.LIST:
		elem, err := r.readNestedType(depth + 1)
		if err != nil {
			return nil, err
		}
		return vectorized.ListOf(elem), nil
	case vectorized.STRUCT:
		n, err := r.readLength()
		if err != nil {
			return nil, err
		}
		// a field takes at least a name length and a type id
		if 2*n > r.Len() {
			return nil, errors.Newf("%d struct fields exceed %d remaining bytes", n, r.Len())
		}
		fields := make([]*vectorized.Field, n)
		for i := range fields {
			name, err := r.readString()
			if err != nil {
				return nil, err
			}
			ft, err := r.readNestedType(depth + 1)
			if err != nil {
				return nil, err
			}
			fields[i] = vectorized.NewField(name, ft)
		}
		return vectorized.StructOf(fields...), nil
	}
	return nil, errors.Newf("unknown type id %d", id)
}

func (r *reader) readVector(t *vectorized.Type) (*vectorized.Vector, error) {
	length, err := r.readLength()
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "truncated vector")
	}
	nullBytes, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	if err := r.checkRows(t, length); err != nil {
		return nil, err
	}

	v := vectorized.NewVector(t, length)
	v.IsConstant = flags&flagConstant != 0
	if len(nullBytes) > 0 {
		rb := roaring.New()
		if err := rb.UnmarshalBinary(nullBytes); err != nil {
			return nil, errors.Wrap(err, "corrupt null mask")
		}
		if !rb.IsEmpty() && int64(rb.Maximum()) >= int64(length) {
			return nil, errors.Newf("null row %d outside a vector of %d rows", rb.Maximum(), length)
		}
		v.Nulls = vectorized.NullMaskFromRoaring(rb, length)
	}

	switch t.ID {
	case vectorized.NULL:
	case vectorized.BOOLEAN:
		packed, err := r.readBytes((length + 7) / 8)
		if err != nil {
			return nil, err
		}
		bools := v.Bools()
		for i := range bools {
			bools[i] = packed[i/8]&(1<<(i%8)) != 0
		}
	case vectorized.INT64:
		if err := r.readInt64s(v.Int64s()); err != nil {
			return nil, err
		}
	case vectorized.FLOAT64:
		raw, err := r.readBytes(length * 8)
		if err != nil {
			return nil, err
		}
		floats := v.Float64s()
		for i := range floats {
			floats[i] = math.Float64frombits(ByteOrder.Uint64(raw[i*8:]))
		}
	case vectorized.STRING:
		strs := v.Strings()
		for i := range strs {
			if strs[i], err = r.readString(); err != nil {
				return nil, err
			}
		}
	case vectorized.STRUCT:
		children := v.Children()
		for i, f := range t.Fields {
			child, err := r.readVector(f.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s", f.Name)
			}
			if child.Length != length {
				return nil, errors.Newf("field %s has %d rows, struct has %d", f.Name, child.Length, length)
			}
			children[i] = child
		}
	case vectorized.LIST:
		block, err := r.readBlock()
		if err != nil {
			return nil, err
		}
		offsets, err := NewDeltaEncoder().Decode(block)
		if err != nil {
			return nil, errors.Wrap(err, "list offsets")
		}
		if len(offsets) != length+1 {
			return nil, errors.Newf("list has %d offsets for %d rows", len(offsets), length)
		}
		values, err := r.readVector(t.Elem)
		if err != nil {
			return nil, err
		}
		list := v.List()
		for i, o := range offsets {
			if o > uint64(values.Length) || (i > 0 && o < offsets[i-1]) {
				return nil, errors.Newf("list offset %d out of order or range", o)
			}
			list.Offsets[i] = int(o)
		}
		list.Values = values
	default:
		return nil, errors.Newf("cannot decode %s vector", t)
	}
	return v, nil
}

// checkRows rejects a row count the remaining bytes cannot hold, before
// anything of that size is allocated
func (r *reader) checkRows(t *vectorized.Type, length int) error {
	need := length * minRowBytes(t)
	if t.ID == vectorized.BOOLEAN {
		need = (length + 7) / 8
	}
	if need > r.Len() {
		return errors.Newf("%d %s rows need at least %d bytes, have %d", length, t, need, r.Len())
	}
	if need == 0 && length > maxDataFreeRows {
		return errors.Newf("%d %s rows exceed the %d row limit", length, t, maxDataFreeRows)
	}
	return nil
}

// minRowBytes is the fewest encoded bytes one row of t takes. BOOLEAN rows
// are bit-packed and count as zero here.
func minRowBytes(t *vectorized.Type) int {
	switch t.ID {
	case vectorized.INT64, vectorized.STRING, vectorized.LIST:
		return 1
	case vectorized.FLOAT64:
		return 8
	case vectorized.STRUCT:
		n := 0
		for _, f := range t.Fields {
			n += minRowBytes(f.Type)
		}
		return n
	}
	return 0
}

func (r *reader) readInt64s(out []int64) error {
	encoding, err := r.ReadByte()
	if err != nil {
		return errors.Wrap(err, "truncated vector")
	}
	switch encoding {
	case int64Plain:
		raw, err := r.readBytes(len(out) * 8)
		if err != nil {
			return err
		}
		for i := range out {
			out[i] = int64(ByteOrder.Uint64(raw[i*8:]))
		}
	case int64Dictionary:
		block, err := r.readBlock()
		if err != nil {
			return err
		}
		values, err := NewDictionaryEncoder().Decode(block)
		if err != nil {
			return errors.Wrap(err, "int64 dictionary")
		}
		if len(values) != len(out) {
			return errors.Newf("dictionary holds %d values for %d rows", len(values), len(out))
		}
		for i, x := range values {
			out[i] = int64(x)
		}
	default:
		return errors.Newf("unknown int64 encoding %d", encoding)
	}
	return nil
}
