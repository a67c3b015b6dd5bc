package colcodec

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"slices"
)

// Dict stores a sorted value dictionary followed by fixed-width bit-packed
// indexes. It wins on low-cardinality columns: tag streams, cell ids, and any
// column dominated by repeated values.
type Dict struct{}

// Name implements Codec.
func (Dict) Name() string { return "dict" }

// Encode implements Codec.
func (Dict) Encode(values []uint64) ([]byte, error) {
	dict := slices.Clone(values)
	slices.Sort(dict)
	dict = slices.Compact(dict)

	index := make(map[uint64]uint64, len(dict))
	for i, v := range dict {
		index[v] = uint64(i)
	}

	// Dictionary: count, then ascending values as non-negative deltas.
	out := binary.AppendUvarint(nil, uint64(len(dict)))
	prev := uint64(0)
	for _, v := range dict {
		out = binary.AppendUvarint(out, v-prev)
		prev = v
	}

	out = binary.AppendUvarint(out, uint64(len(values)))

	width := 0
	if len(dict) > 1 {
		width = bits.Len64(uint64(len(dict) - 1))
	}
	out = append(out, byte(width))
	if width == 0 {
		return out, nil
	}

	// Pack indexes LSB-first.
	var acc uint64
	var used int
	for _, v := range values {
		acc |= index[v] << used
		used += width
		for used >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			used -= 8
		}
	}
	if used > 0 {
		out = append(out, byte(acc))
	}
	return out, nil
}

// Decode implements Codec.
func (Dict) Decode(data []byte) ([]uint64, error) {
	dictLen, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("dict: truncated dictionary count")
	}
	data = data[n:]

	dict := make([]uint64, 0, dictLen)
	prev := uint64(0)
	for i := uint64(0); i < dictLen; i++ {
		d, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, fmt.Errorf("dict: truncated dictionary at entry %d", i)
		}
		data = data[n:]
		prev += d
		dict = append(dict, prev)
	}

	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("dict: truncated value count")
	}
	data = data[n:]

	if count > 0 && dictLen == 0 {
		return nil, fmt.Errorf("dict: %d values but empty dictionary", count)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("dict: missing index width")
	}
	width := int(data[0])
	data = data[1:]

	out := make([]uint64, 0, count)
	if width == 0 {
		for i := uint64(0); i < count; i++ {
			out = append(out, dict[0])
		}
		return out, nil
	}

	need := (int(count)*width + 7) / 8
	if len(data) < need {
		return nil, fmt.Errorf("dict: truncated indexes: want %d bytes, have %d", need, len(data))
	}

	mask := uint64(1)<<width - 1
	var acc uint64
	var used int
	pos := 0
	for i := uint64(0); i < count; i++ {
		for used < width {
			acc |= uint64(data[pos]) << used
			pos++
			used += 8
		}
		idx := acc & mask
		acc >>= width
		used -= width
		if idx >= uint64(len(dict)) {
			return nil, fmt.Errorf("dict: index %d out of range (dictionary size %d)", idx, len(dict))
		}
		out = append(out, dict[idx])
	}
	return out, nil
}
