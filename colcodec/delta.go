package colcodec

import (
	"encoding/binary"
	"fmt"
)

// Delta stores successive differences as zigzag varints. It is the codec of
// choice for monotonic or slowly-varying columns: identifiers within a sorted
// partition and coordinates within a spatially-sorted partition both produce
// small deltas.
//
// Arithmetic is done on the two's-complement interpretation, so signed
// columns round-trip through their bit patterns.
type Delta struct{}

// Name implements Codec.
func (Delta) Name() string { return "delta" }

// Encode implements Codec.
func (Delta) Encode(values []uint64) ([]byte, error) {
	out := binary.AppendUvarint(nil, uint64(len(values)))
	prev := int64(0)
	for _, v := range values {
		cur := int64(v)
		out = binary.AppendVarint(out, cur-prev)
		prev = cur
	}
	return out, nil
}

// Decode implements Codec.
func (Delta) Decode(data []byte) ([]uint64, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("delta: truncated count")
	}
	data = data[n:]

	out := make([]uint64, 0, count)
	prev := int64(0)
	for i := uint64(0); i < count; i++ {
		d, n := binary.Varint(data)
		if n <= 0 {
			return nil, fmt.Errorf("delta: truncated column at value %d of %d", i, count)
		}
		data = data[n:]
		prev += d
		out = append(out, uint64(prev))
	}
	return out, nil
}
