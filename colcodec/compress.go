package colcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the general-purpose compressor applied to an encoded
// column payload.
type Compression uint8

const (
	// CompressionNone stores payloads uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot partitions).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd block compression (better ratio, good for cold partitions).
	CompressionZSTD Compression = 2
)

// String returns the stable name of the compression scheme.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

// CompressionByName resolves a stable compression name.
func CompressionByName(name string) (Compression, bool) {
	switch name {
	case "none":
		return CompressionNone, true
	case "lz4":
		return CompressionLZ4, true
	case "zstd":
		return CompressionZSTD, true
	default:
		return 0, false
	}
}

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

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// payloadHeaderSize is the fixed prefix of a compressed payload:
// [UncompressedSize uint32][CompressedSize uint32]. CompressedSize == 0 means
// the payload is stored uncompressed.
const payloadHeaderSize = 8

// Compress wraps an encoded column payload with the block header, compressing
// it when the chosen scheme actually helps. Incompressible payloads are
// stored raw so decompression stays cheap.
func Compress(data []byte, scheme Compression) ([]byte, error) {
	var compressed []byte
	var err error

	switch scheme {
	case CompressionNone:
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("colcodec: unknown compression scheme %d", scheme)
	}
	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, payloadHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[payloadHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, payloadHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[payloadHeaderSize:], compressed)
	return out, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return buf[:n], nil
}

// Decompress reverses Compress. The scheme must match the one the payload was
// written with; it is recorded in the enclosing block header.
func Decompress(data []byte, scheme Compression) ([]byte, error) {
	if len(data) < payloadHeaderSize {
		return nil, errors.New("colcodec: payload too small for header")
	}

	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])

	if compressedSize == 0 {
		if uint32(len(data)-payloadHeaderSize) < uncompressedSize {
			return nil, errors.New("colcodec: truncated uncompressed payload")
		}
		return data[payloadHeaderSize : payloadHeaderSize+int(uncompressedSize)], nil
	}

	if uint32(len(data)-payloadHeaderSize) < compressedSize {
		return nil, errors.New("colcodec: truncated compressed payload")
	}
	body := data[payloadHeaderSize : payloadHeaderSize+int(compressedSize)]

	switch scheme {
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != uncompressedSize {
			return nil, errors.New("colcodec: decompressed size mismatch")
		}
		return out, nil

	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(body, make([]byte, 0, uncompressedSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != uncompressedSize {
			return nil, errors.New("colcodec: decompressed size mismatch")
		}
		return out, nil

	default:
		return nil, fmt.Errorf("colcodec: compressed payload but scheme is %s", scheme)
	}
}
