package columnar

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"sqleval/core"
)

// ByteOrder is the byte order of every fixed-width integer the codec writes
var ByteOrder = binary.LittleEndian

// MaxDecodedBytes bounds the decompressed size of one payload
const MaxDecodedBytes = 1 << 30

// CompressionType represents different compression algorithms
type CompressionType uint8

const (
	CompressionNone   CompressionType = 0
	CompressionGzip   CompressionType = 1
	CompressionSnappy CompressionType = 2
	CompressionZstd   CompressionType = 3
)

func (ct CompressionType) String() string {
	switch ct {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(ct))
}

// ParseCompressionType maps a configuration name to a compression type.
// The empty name means no compression.
func ParseCompressionType(name string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return CompressionNone, errors.Newf("unknown compression %q", name)
}

// CompressionLevel represents compression level for algorithms that support it
type CompressionLevel int

const (
	CompressionLevelFastest CompressionLevel = 1
	CompressionLevelDefault CompressionLevel = 0
	CompressionLevelBetter  CompressionLevel = 3
	CompressionLevelBest    CompressionLevel = 9
)

// Compressor interface for different compression algorithms
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Type() CompressionType
}

// NoopCompressor passes data through unchanged
type NoopCompressor struct{}

func (NoopCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoopCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (NoopCompressor) Type() CompressionType                  { return CompressionNone }

// SnappyCompressor implements Snappy compression
type SnappyCompressor struct{}

func (s *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (s *SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, err
	}
	if n > MaxDecodedBytes {
		return nil, errors.Newf("snappy block of %d bytes exceeds %d", n, MaxDecodedBytes)
	}
	return snappy.Decode(nil, data)
}

func (s *SnappyCompressor) Type() CompressionType {
	return CompressionSnappy
}

// ZstdCompressor implements Zstandard compression
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewZstdCompressor(level CompressionLevel) (*ZstdCompressor, error) {
	zstdLevel := zstd.SpeedDefault
	switch level {
	case CompressionLevelFastest:
		zstdLevel = zstd.SpeedFastest
	case CompressionLevelBetter:
		zstdLevel = zstd.SpeedBetterCompression
	case CompressionLevelBest:
		zstdLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel))
	if err != nil {
		return nil, err
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedBytes))
	if err != nil {
		encoder.Close()
		return nil, err
	}

	return &ZstdCompressor{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

func (z *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, nil), nil
}

func (z *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	return z.decoder.DecodeAll(data, nil)
}

func (z *ZstdCompressor) Type() CompressionType {
	return CompressionZstd
}

func (z *ZstdCompressor) Close() {
	if z.encoder != nil {
		z.encoder.Close()
	}
	if z.decoder != nil {
		z.decoder.Close()
	}
}

// GzipCompressor implements Gzip compression
type GzipCompressor struct {
	level int
}

func NewGzipCompressor(level CompressionLevel) *GzipCompressor {
	gzipLevel := gzip.DefaultCompression
	switch level {
	case CompressionLevelFastest:
		gzipLevel = gzip.BestSpeed
	case CompressionLevelBest:
		gzipLevel = gzip.BestCompression
	}

	return &GzipCompressor{level: gzipLevel}
}

func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, err
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (g *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err = io.ReadAll(io.LimitReader(reader, MaxDecodedBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDecodedBytes {
		return nil, errors.Newf("gzip stream exceeds %d bytes", MaxDecodedBytes)
	}
	return data, nil
}

func (g *GzipCompressor) Type() CompressionType {
	return CompressionGzip
}

// CreateCompressor creates compressor instances
func CreateCompressor(compressionType CompressionType, level CompressionLevel) (Compressor, error) {
	switch compressionType {
	case CompressionNone:
		return NoopCompressor{}, nil
	case CompressionSnappy:
		return &SnappyCompressor{}, nil
	case CompressionZstd:
		return NewZstdCompressor(level)
	case CompressionGzip:
		return NewGzipCompressor(level), nil
	default:
		return nil, errors.Newf("unsupported compression type: %d", compressionType)
	}
}

// CompressorFromConfig builds the compressor named by the [codec] section
func CompressorFromConfig(cfg core.CodecConfig) (Compressor, error) {
	ct, err := ParseCompressionType(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return CreateCompressor(ct, CompressionLevel(cfg.Level))
}

// DeltaEncoder implements delta encoding for monotonic integer sequences
// such as list offsets
type DeltaEncoder struct {
	baseValue uint64
	deltas    []int64
}

func NewDeltaEncoder() *DeltaEncoder {
	return &DeltaEncoder{}
}

func (de *DeltaEncoder) Encode(values []uint64) []byte {
	if len(values) == 0 {
		return nil
	}

	de.baseValue = values[0]
	de.deltas = make([]int64, len(values)-1)
	for i := 1; i < len(values); i++ {
		de.deltas[i-1] = int64(values[i]) - int64(values[i-1])
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, ByteOrder, de.baseValue)
	binary.Write(buf, ByteOrder, uint32(len(values)))
	var scratch [binary.MaxVarintLen64]byte
	for _, delta := range de.deltas {
		n := binary.PutVarint(scratch[:], delta)
		buf.Write(scratch[:n])
	}
	return buf.Bytes()
}

func (de *DeltaEncoder) Decode(data []byte) ([]uint64, error) {
	if len(data) == 0 {
		return nil, nil
	}

	buf := bytes.NewReader(data)
	var baseValue uint64
	var count uint32
	if err := binary.Read(buf, ByteOrder, &baseValue); err != nil {
		return nil, err
	}
	if err := binary.Read(buf, ByteOrder, &count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("delta block with zero values")
	}
	if int(count)-1 > buf.Len() {
		return nil, errors.Newf("delta block of %d values exceeds %d remaining bytes", count, buf.Len())
	}

	values := make([]uint64, count)
	values[0] = baseValue
	for i := 1; i < int(count); i++ {
		delta, err := binary.ReadVarint(buf)
		if err != nil {
			return nil, errors.Wrapf(err, "delta %d", i)
		}
		values[i] = uint64(int64(values[i-1]) + delta)
	}
	return values, nil
}

// DictionaryEncoder implements dictionary encoding for low-cardinality data
type DictionaryEncoder struct {
	dictionary map[uint64]uint32 // value -> dictionary index
	values     []uint64          // dictionary values
}

func NewDictionaryEncoder() *DictionaryEncoder {
	return &DictionaryEncoder{
		dictionary: make(map[uint64]uint32),
	}
}

// CanUseDictionary reports whether dictionary encoding is smaller than plain
// eight-byte values
func (de *DictionaryEncoder) CanUseDictionary(uniqueValues int, totalValues int) bool {
	if uniqueValues > 65536 {
		return false
	}
	indexWidth := 1
	if uniqueValues > 256 {
		indexWidth = 2
	}
	return uniqueValues*8+totalValues*indexWidth < totalValues*8
}

func (de *DictionaryEncoder) BuildDictionary(values []uint64) {
	de.dictionary = make(map[uint64]uint32)
	de.values = de.values[:0]
	for _, v := range values {
		if _, exists := de.dictionary[v]; !exists {
			de.dictionary[v] = uint32(len(de.values))
			de.values = append(de.values, v)
		}
	}
}

// Size returns the number of distinct values in the dictionary
func (de *DictionaryEncoder) Size() int {
	return len(de.values)
}

func (de *DictionaryEncoder) Encode(values []uint64) []byte {
	buf := new(bytes.Buffer)

	binary.Write(buf, ByteOrder, uint32(len(de.values)))
	for _, v := range de.values {
		binary.Write(buf, ByteOrder, v)
	}
	binary.Write(buf, ByteOrder, uint32(len(values)))

	// indices use the smallest width that fits the dictionary
	switch {
	case len(de.values) <= 256:
		buf.WriteByte(1)
		for _, v := range values {
			buf.WriteByte(uint8(de.dictionary[v]))
		}
	case len(de.values) <= 65536:
		buf.WriteByte(2)
		for _, v := range values {
			binary.Write(buf, ByteOrder, uint16(de.dictionary[v]))
		}
	default:
		buf.WriteByte(4)
		for _, v := range values {
			binary.Write(buf, ByteOrder, de.dictionary[v])
		}
	}
	return buf.Bytes()
}

func (de *DictionaryEncoder) Decode(data []byte) ([]uint64, error) {
	buf := bytes.NewReader(data)

	var dictSize uint32
	if err := binary.Read(buf, ByteOrder, &dictSize); err != nil {
		return nil, err
	}
	if uint64(dictSize)*8 > uint64(buf.Len()) {
		return nil, errors.Newf("dictionary of %d values exceeds %d remaining bytes", dictSize, buf.Len())
	}
	dictionary := make([]uint64, dictSize)
	if err := binary.Read(buf, ByteOrder, dictionary); err != nil {
		return nil, err
	}

	var valueCount uint32
	if err := binary.Read(buf, ByteOrder, &valueCount); err != nil {
		return nil, err
	}
	indexSize, err := buf.ReadByte()
	if err != nil {
		return nil, err
	}
	if indexSize != 1 && indexSize != 2 && indexSize != 4 {
		return nil, errors.Newf("invalid index size: %d", indexSize)
	}
	if uint64(valueCount)*uint64(indexSize) > uint64(buf.Len()) {
		return nil, errors.Newf("%d dictionary indices exceed %d remaining bytes", valueCount, buf.Len())
	}

	values := make([]uint64, valueCount)
	for i := range values {
		var idx uint32
		switch indexSize {
		case 1:
			b, err := buf.ReadByte()
			if err != nil {
				return nil, err
			}
			idx = uint32(b)
		case 2:
			var v uint16
			if err := binary.Read(buf, ByteOrder, &v); err != nil {
				return nil, err
			}
			idx = uint32(v)
		case 4:
			if err := binary.Read(buf, ByteOrder, &idx); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Newf("invalid index size: %d", indexSize)
		}
		if idx >= dictSize {
			return nil, errors.Newf("dictionary index %d out of range %d", idx, dictSize)
		}
		values[i] = dictionary[idx]
	}
	return values, nil
}
