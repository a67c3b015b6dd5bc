package colcodec

import (
	"encoding/binary"
	"fmt"
)

// Raw stores values as fixed 8-byte little-endian words. It exists as a
// baseline and for columns where no statistical structure is known.
type Raw struct{}

// Name implements Codec.
func (Raw) Name() string { return "raw" }

// Encode implements Codec.
func (Raw) Encode(values []uint64) ([]byte, error) {
	out := binary.AppendUvarint(nil, uint64(len(values)))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint64(out, v)
	}
	return out, nil
}

// Decode implements Codec.
func (Raw) Decode(data []byte) ([]uint64, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("raw: truncated count")
	}
	data = data[n:]
	if uint64(len(data)) < count*8 {
		return nil, fmt.Errorf("raw: truncated column: want %d values, have %d bytes", count, len(data))
	}

	out := make([]uint64, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return out, nil
}
