package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Expected ratios for typical conversational text before the length bonus.
const (
	zstdBaseRatio = 15.0
	lz4BaseRatio  = 8.0
)

// maxDecodedSize bounds allocations driven by length prefixes.
const maxDecodedSize = 64 << 20

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent use
// through EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Zstd is the default baseline codec.
type Zstd struct{}

func (Zstd) Name() string { return "zstd" }

func (Zstd) Compress(src []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(src, nil), nil
}

func (Zstd) Decompress(src []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrDecodingFailed, err)
	}
	return out, nil
}

func (Zstd) EstimateRatio(text string) float64 {
	return estimateRatio(zstdBaseRatio, len(text))
}

// LZ4 uses block mode. Payload layout: one mode byte (0 stored, 1 lz4
// block), a uvarint decoded length, then the data.
type LZ4 struct{}

const (
	lz4Stored byte = 0
	lz4Block  byte = 1
)

func (LZ4) Name() string { return "lz4" }

func (LZ4) Compress(src []byte) ([]byte, error) {
	header := make([]byte, 1+binary.MaxVarintLen64)
	n := binary.PutUvarint(header[1:], uint64(len(src)))
	header = header[:1+n]

	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	written, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrEncodingFailed, err)
	}

	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(src) {
		header[0] = lz4Stored
		return append(header, src...), nil
	}
	header[0] = lz4Block
	return append(header, dst[:written]...), nil
}

func (LZ4) Decompress(src []byte) ([]byte, error) {
	if len(src) < 2 {
		return nil, fmt.Errorf("%w: lz4: short payload", ErrDecodingFailed)
	}
	size, n := binary.Uvarint(src[1:])
	if n <= 0 || size > maxDecodedSize {
		return nil, fmt.Errorf("%w: lz4: bad length prefix", ErrDecodingFailed)
	}
	body := src[1+n:]

	switch src[0] {
	case lz4Stored:
		if uint64(len(body)) != size {
			return nil, fmt.Errorf("%w: lz4: stored size %d does not match %d", ErrDecodingFailed, len(body), size)
		}
		return append([]byte(nil), body...), nil
	case lz4Block:
		dst := make([]byte, size)
		read, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrDecodingFailed, err)
		}
		if uint64(read) != size {
			return nil, fmt.Errorf("%w: lz4: got %d bytes, expected %d", ErrDecodingFailed, read, size)
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("%w: lz4: unknown mode %d", ErrDecodingFailed, src[0])
	}
}

func (LZ4) EstimateRatio(text string) float64 {
	return estimateRatio(lz4BaseRatio, len(text))
}

// None stores data unchanged.
type None struct{}

func (None) Name() string { return "none" }

func (None) Compress(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

func (None) Decompress(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

func (None) EstimateRatio(string) float64 { return 1.0 }
