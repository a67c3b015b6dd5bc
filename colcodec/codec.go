// Package colcodec centralizes the per-column encodings used by the
// analytical block layout.
//
// Codec selection is a tuning parameter, not part of the logical data model:
// blocks record the codec name of every column in their header, so persisted
// bytes remain decodable after a deployment changes its layout profile.
package colcodec

import "fmt"

// Codec encodes and decodes a column of 64-bit values. Signed columns are
// passed as their two's-complement bit patterns.
//
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name is the stable identifier written into block headers.
	Name() string

	// Encode serializes the column.
	Encode(values []uint64) ([]byte, error)

	// Decode is the exact inverse of Encode.
	Decode(data []byte) ([]uint64, error)
}

// ByName returns a built-in codec by its stable name.
//
// Block headers store codec names, so decoding picks the codec the writer
// used regardless of the reader's configured profile.
func ByName(name string) (Codec, bool) {
	switch name {
	case "raw":
		return Raw{}, true
	case "delta":
		return Delta{}, true
	case "dict":
		return Dict{}, true
	default:
		return nil, false
	}
}

// MustByName resolves a codec name or panics. For profile validation paths
// that have already checked the name.
func MustByName(name string) Codec {
	c, ok := ByName(name)
	if !ok {
		panic(fmt.Errorf("colcodec: unknown codec %q", name))
	}
	return c
}
