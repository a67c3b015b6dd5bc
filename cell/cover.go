package cell

// Cover returns the cells at the given level that intersect the bounding box
// described by the decimicro-degree corners. The box may cross the
// antimeridian, in which case minLon > maxLon and the cover is computed as
// two longitude ranges.
//
// Callers use this for partition pruning: a scan restricted to a bounding box
// only needs to visit partitions whose coarse cell appears in the cover.
func Cover(minLat, maxLat, minLon, maxLon int32, level Level) []ID {
	if level > MaxLevel {
		level = MaxLevel
	}
	if minLat > maxLat {
		return nil
	}

	loY := gridCoord(clampOffset(minLat, maxDecimicroLat), latSpan, level)
	hiY := gridCoord(clampOffset(maxLat, maxDecimicroLat), latSpan, level)

	type xr struct{ lo, hi uint32 }
	var ranges []xr
	if minLon <= maxLon {
		ranges = []xr{{
			gridCoord(clampOffset(minLon, maxDecimicroLon), lonSpan, level),
			gridCoord(clampOffset(maxLon, maxDecimicroLon), lonSpan, level),
		}}
	} else {
		// Antimeridian crossing: [minLon, 180] and [-180, maxLon].
		side := uint32(1)<<(2*uint(level)) - 1
		ranges = []xr{
			{gridCoord(clampOffset(minLon, maxDecimicroLon), lonSpan, level), side},
			{0, gridCoord(clampOffset(maxLon, maxDecimicroLon), lonSpan, level)},
		}
	}

	var out []ID
	for _, r := range ranges {
		for cy := loY; cy <= hiY; cy++ {
			for cx := r.lo; cx <= r.hi; cx++ {
				out = append(out, fromGrid(cx, cy, level))
			}
		}
	}
	return out
}

func gridCoord(offset uint64, span uint64, level Level) uint32 {
	n := offset * (1 << gridBits) / span
	return uint32(n >> (gridBits - 2*uint(level)))
}
