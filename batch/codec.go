package batch

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/hupe1980/hnswstore"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the block compression of a batch.
type Codec uint8

const (
	// CodecNone stores blocks uncompressed.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast).
	CodecLZ4 Codec = 1
	// CodecZSTD uses ZSTD compression (better ratio).
	CodecZSTD Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

const (
	// Version is the current format version.
	Version = 1

	headerSize      = 16
	blockHeaderSize = 8

	// DefaultBlockSize is the uncompressed size of a full block.
	DefaultBlockSize = 256 * 1024

	// maxBlockSize bounds allocations driven by untrusted block headers.
	maxBlockSize = 64 << 20

	// maxInitialPoints caps the preallocated result of Decode.
	maxInitialPoints = 1 << 16

	// MaxDimension is the largest dimension whose record fits in one block.
	MaxDimension = (maxBlockSize - 8) / 4
)

var magic = [4]byte{'H', 'N', 'S', 'B'}

var (
	// ErrInvalidFormat is returned for data that is not a well-formed batch.
	ErrInvalidFormat = errors.New("batch: invalid format")

	// ErrUnsupportedVersion is returned for batches written by a newer format version.
	ErrUnsupportedVersion = errors.New("batch: unsupported version")

	// ErrDimensionMismatch is returned when points of one batch differ in dimension.
	ErrDimensionMismatch = errors.New("batch: dimension mismatch")
)

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBlockSize))
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Encode writes points to w using codec c.
// All points must have the same dimension.
func Encode(w io.Writer, points []hnswstore.Point, c Codec) error {
	if c > CodecZSTD {
		return fmt.Errorf("%w: codec %s", ErrInvalidFormat, c)
	}

	dim := 0
	if len(points) > 0 {
		dim = len(points[0].Vector)
		if dim == 0 {
			return fmt.Errorf("%w: point 0 has an empty vector", ErrDimensionMismatch)
		}
		if dim > MaxDimension {
			return fmt.Errorf("%w: dimension %d exceeds %d", ErrInvalidFormat, dim, MaxDimension)
		}
	}

	if uint64(len(points)) > math.MaxUint32 {
		return fmt.Errorf("%w: too many points: %d", ErrInvalidFormat, len(points))
	}

	var header [headerSize]byte
	copy(header[0:4], magic[:])
	header[4] = Version
	header[5] = byte(c)
	binary.LittleEndian.PutUint32(header[8:], uint32(dim))
	binary.LittleEndian.PutUint32(header[12:], uint32(len(points)))

	bw := bufio.NewWriter(w)

	if _, err := bw.Write(header[:]); err != nil {
		return err
	}

	recordSize := 8 + 4*dim
	perBlock := max(1, DefaultBlockSize/recordSize)
	buf := make([]byte, 0, perBlock*recordSize)

	for i, p := range points {
		if len(p.Vector) != dim {
			return fmt.Errorf("%w: point %d has %d components, expected %d", ErrDimensionMismatch, i, len(p.Vector), dim)
		}

		buf = binary.LittleEndian.AppendUint64(buf, uint64(p.ID))
		for _, f := range p.Vector {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}

		if len(buf) >= perBlock*recordSize {
			if err := writeBlock(bw, buf, c); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}

	if len(buf) > 0 {
		if err := writeBlock(bw, buf, c); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// writeBlock compresses data and writes it with its block header. Data that
// does not compress below 90% is stored raw.
func writeBlock(w io.Writer, data []byte, c Codec) error {
	var (
		compressed []byte
		err        error
	)

	switch c {
	case CodecLZ4:
		compressed, err = compressLZ4(data)
	case CodecZSTD:
		compressed = compressZSTD(data)
	}

	if err != nil {
		return err
	}

	var header [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:], uint32(len(data)))

	payload := data
	if len(compressed) > 0 && float64(len(compressed)) <= float64(len(data))*0.9 {
		binary.LittleEndian.PutUint32(header[4:], uint32(len(compressed)))
		payload = compressed
	}

	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	_, err = w.Write(payload)

	return err
}

func compressLZ4(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}

	if n == 0 {
		return nil, nil // Incompressible
	}

	return compressed[:n], nil
}

func compressZSTD(data []byte) []byte {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(data, nil)
}

// Decode reads a batch from r.
func Decode(r io.Reader) ([]hnswstore.Point, error) {
	br := bufio.NewReader(r)

	var header [headerSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrInvalidFormat, err)
	}

	if [4]byte(header[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidFormat, header[0:4])
	}

	if header[4] != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header[4])
	}

	c := Codec(header[5])
	if c > CodecZSTD {
		return nil, fmt.Errorf("%w: codec %s", ErrInvalidFormat, c)
	}

	dim := int(binary.LittleEndian.Uint32(header[8:]))
	count := int(binary.LittleEndian.Uint32(header[12:]))

	if count > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: %d points without dimension", ErrInvalidFormat, count)
	}

	// Sizes below are derived from dim, so it is bounded before any allocation.
	if dim > MaxDimension {
		return nil, fmt.Errorf("%w: dimension %d exceeds %d", ErrInvalidFormat, dim, MaxDimension)
	}

	recordSize := 8 + 4*dim
	total := uint64(count) * uint64(recordSize)

	// count is untrusted; the slice grows as records actually arrive.
	points := make([]hnswstore.Point, 0, min(count, maxInitialPoints))
	var pending []byte

	var read uint64
	for read < total {
		block, err := readBlock(br, c, total-read)
		if err != nil {
			return nil, err
		}
		read += uint64(len(block))

		// Records may span block boundaries.
		data := block
		if len(pending) > 0 {
			need := recordSize - len(pending)
			if need > len(data) {
				pending = append(pending, data...)
				continue
			}
			pending = append(pending, data[:need]...)
			data = data[need:]
			points = append(points, decodeRecord(pending, dim))
			pending = pending[:0]
		}

		for len(data) >= recordSize {
			points = append(points, decodeRecord(data[:recordSize], dim))
			data = data[recordSize:]
		}

		pending = append(pending, data...)
	}

	return points, nil
}

func readBlock(r io.Reader, c Codec, remaining uint64) ([]byte, error) {
	var header [blockHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: read block header: %w", ErrInvalidFormat, err)
	}

	uncompressedSize := binary.LittleEndian.Uint32(header[0:])
	compressedSize := binary.LittleEndian.Uint32(header[4:])

	if uncompressedSize == 0 || uint64(uncompressedSize) > remaining || uncompressedSize > maxBlockSize {
		return nil, fmt.Errorf("%w: block size %d", ErrInvalidFormat, uncompressedSize)
	}

	if compressedSize == 0 {
		data := make([]byte, uncompressedSize)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("%w: read block: %w", ErrInvalidFormat, err)
		}
		return data, nil
	}

	if compressedSize > maxBlockSize {
		return nil, fmt.Errorf("%w: compressed block size %d", ErrInvalidFormat, compressedSize)
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("%w: read block: %w", ErrInvalidFormat, err)
	}

	result := make([]byte, uncompressedSize)

	switch c {
	case CodecLZ4:
		n, err := lz4.UncompressBlock(compressed, result)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrInvalidFormat, err)
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrInvalidFormat)
		}
		return result, nil

	case CodecZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(compressed, result[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrInvalidFormat, err)
		}
		if uint32(len(decoded)) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrInvalidFormat)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: compressed block in uncompressed batch", ErrInvalidFormat)
	}
}

func decodeRecord(b []byte, dim int) hnswstore.Point {
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[8+4*i:]))
	}

	return hnswstore.Point{
		ID:     int64(binary.LittleEndian.Uint64(b)),
		Vector: v,
	}
}
