// Package cell implements the hierarchical spatial subdivision used to
// partition and order map entities.
//
// The scheme is a Z-order (Morton) quadtree over the decimicro-degree
// coordinate plane. Each level subdivides both axes by four, so a level-L
// cell path is 4*L bits: two bits of longitude and two bits of latitude per
// level, interleaved. Cell identifiers are pure functions of the input
// coordinates, and the identifier of a parent cell is a bit-prefix of all of
// its descendants, which makes hierarchy checks cheap bit operations.
package cell

import (
	"fmt"
)

// Level is the subdivision depth of a cell.
type Level uint8

const (
	// Coarse is the partition-key level. A coarse cell spans 5.6 degrees of
	// longitude (roughly 600 km at the equator) and 2.8 degrees of latitude
	// (roughly 310 km).
	Coarse Level = 3

	// Fine is the sort-key level. A fine cell covers roughly 2.5 m of
	// longitude at the equator.
	Fine Level = 12

	// MaxLevel is the deepest representable subdivision.
	MaxLevel Level = 15
)

// ID is a packed cell identifier: the level in the top four bits and the
// Morton path, right-aligned, in the low 4*level bits.
type ID uint64

const (
	levelShift = 60

	// Grid coordinates are normalized to gridBits bits per axis, two bits
	// per level. This bounds MaxLevel.
	gridBits = 2 * uint(MaxLevel)

	maxDecimicroLat = 900_000_000
	maxDecimicroLon = 1_800_000_000

	lonSpan = uint64(2*maxDecimicroLon) + 1
	latSpan = uint64(2*maxDecimicroLat) + 1
)

// At returns the cell containing the given decimicro-degree coordinate at the
// requested level. Coordinates must already be validated; out-of-range values
// are clamped rather than rejected so that At stays total and deterministic.
func At(decimicroLat, decimicroLon int32, level Level) ID {
	if level > MaxLevel {
		level = MaxLevel
	}

	x := clampOffset(decimicroLon, maxDecimicroLon)
	y := clampOffset(decimicroLat, maxDecimicroLat)

	// Normalize each axis to a gridBits-wide integer. Truncation keeps
	// parent/child nesting exact: deeper levels only reveal lower bits.
	xn := x * (1 << gridBits) / lonSpan
	yn := y * (1 << gridBits) / latSpan

	shift := gridBits - 2*uint(level)
	cx := uint32(xn >> shift)
	cy := uint32(yn >> shift)

	return fromGrid(cx, cy, level)
}

func clampOffset(v int32, limit int64) uint64 {
	o := int64(v) + limit
	if o < 0 {
		o = 0
	}
	if o > 2*limit {
		o = 2 * limit
	}
	return uint64(o)
}

func fromGrid(cx, cy uint32, level Level) ID {
	path := interleave(cx) | interleave(cy)<<1
	return ID(uint64(level)<<levelShift | path)
}

// Level returns the subdivision depth encoded in the identifier.
func (id ID) Level() Level {
	return Level(id >> levelShift)
}

func (id ID) path() uint64 {
	return uint64(id) & (1<<levelShift - 1)
}

// ParentAt returns the ancestor of this cell at the given shallower level.
// Asking for the cell's own level returns the cell unchanged.
func (id ID) ParentAt(level Level) ID {
	own := id.Level()
	if level >= own {
		return id
	}
	return ID(uint64(level)<<levelShift | id.path()>>(4*uint(own-level)))
}

// Contains reports whether other is this cell or one of its descendants.
func (id ID) Contains(other ID) bool {
	if other.Level() < id.Level() {
		return false
	}
	return other.ParentAt(id.Level()) == id
}

// Grid returns the per-axis cell coordinates at the cell's own level.
func (id ID) Grid() (cx, cy uint32) {
	p := id.path()
	return deinterleave(p), deinterleave(p >> 1)
}

// Neighbors returns the up to eight cells adjacent to this one at the same
// level. Longitude wraps at the antimeridian; latitude is clamped at the
// poles.
func (id ID) Neighbors() []ID {
	level := id.Level()
	cx, cy := id.Grid()
	side := uint32(1) << (2 * uint(level))

	out := make([]ID, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		ny := int64(cy) + int64(dy)
		if ny < 0 || ny >= int64(side) {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx := (int64(cx) + int64(dx) + int64(side)) % int64(side)
			out = append(out, fromGrid(uint32(nx), uint32(ny), level))
		}
	}
	return out
}

// IsAdjacent reports whether other is this cell or one of its eight
// same-level neighbors.
func (id ID) IsAdjacent(other ID) bool {
	if id == other {
		return true
	}
	for _, n := range id.Neighbors() {
		if n == other {
			return true
		}
	}
	return false
}

// String renders the identifier as level and hexadecimal path.
func (id ID) String() string {
	return fmt.Sprintf("L%d:%x", id.Level(), id.path())
}

// interleave spreads the low 30 bits of v into the even bit positions.
func interleave(v uint32) uint64 {
	x := uint64(v) & 0x3FFFFFFF
	x = (x | x<<16) & 0x0000FFFF0000FFFF
	x = (x | x<<8) & 0x00FF00FF00FF00FF
	x = (x | x<<4) & 0x0F0F0F0F0F0F0F0F
	x = (x | x<<2) & 0x3333333333333333
	x = (x | x<<1) & 0x5555555555555555
	return x
}

// deinterleave collects the even bit positions of v into a compact integer.
func deinterleave(v uint64) uint32 {
	x := v & 0x5555555555555555
	x = (x | x>>1) & 0x3333333333333333
	x = (x | x>>2) & 0x0F0F0F0F0F0F0F0F
	x = (x | x>>4) & 0x00FF00FF00FF00FF
	x = (x | x>>8) & 0x0000FFFF0000FFFF
	x = (x | x>>16) & 0x00000000FFFFFFFF
	return uint32(x)
}
