package model

import "fmt"

// Coordinates are stored in decimicro-degrees: degrees scaled by 1e7 and kept
// as signed 32-bit integers, which avoids floating-point drift in stored data.
const (
	// MaxDecimicroLat is the inclusive latitude bound (the poles).
	MaxDecimicroLat int32 = 900_000_000

	// MaxDecimicroLon is the inclusive longitude bound (the antimeridian).
	MaxDecimicroLon int32 = 1_800_000_000
)

// ErrInvalidCoordinate indicates a latitude or longitude outside the valid
// decimicro-degree range.
type ErrInvalidCoordinate struct {
	DecimicroLat int32
	DecimicroLon int32
}

func (e *ErrInvalidCoordinate) Error() string {
	return fmt.Sprintf("invalid coordinate: lat=%d lon=%d (decimicro-degrees)", e.DecimicroLat, e.DecimicroLon)
}

// GeoCoord is a point on the globe in decimicro-degrees.
type GeoCoord struct {
	DecimicroLat int32
	DecimicroLon int32
}

// FromDegrees converts floating-point degrees to a GeoCoord.
func FromDegrees(lat, lon float64) GeoCoord {
	return GeoCoord{
		DecimicroLat: int32(lat * 1e7),
		DecimicroLon: int32(lon * 1e7),
	}
}

// Lat returns the latitude in degrees.
func (c GeoCoord) Lat() float64 { return float64(c.DecimicroLat) / 1e7 }

// Lon returns the longitude in degrees.
func (c GeoCoord) Lon() float64 { return float64(c.DecimicroLon) / 1e7 }

// Validate checks the coordinate against the decimicro-degree bounds.
// Both bounds are inclusive: the poles and the antimeridian are valid.
func (c GeoCoord) Validate() error {
	if c.DecimicroLat < -MaxDecimicroLat || c.DecimicroLat > MaxDecimicroLat ||
		c.DecimicroLon < -MaxDecimicroLon || c.DecimicroLon > MaxDecimicroLon {
		return &ErrInvalidCoordinate{DecimicroLat: c.DecimicroLat, DecimicroLon: c.DecimicroLon}
	}
	return nil
}

// BoundingBox is an axis-aligned region in decimicro-degrees. A box whose
// MinDecimicroLon exceeds MaxDecimicroLon crosses the antimeridian.
type BoundingBox struct {
	MinDecimicroLat int32
	MaxDecimicroLat int32
	MinDecimicroLon int32
	MaxDecimicroLon int32
}

// Contains reports whether the coordinate lies inside the box (inclusive).
func (b BoundingBox) Contains(c GeoCoord) bool {
	if c.DecimicroLat < b.MinDecimicroLat || c.DecimicroLat > b.MaxDecimicroLat {
		return false
	}
	if b.MinDecimicroLon <= b.MaxDecimicroLon {
		return c.DecimicroLon >= b.MinDecimicroLon && c.DecimicroLon <= b.MaxDecimicroLon
	}
	// Antimeridian crossing.
	return c.DecimicroLon >= b.MinDecimicroLon || c.DecimicroLon <= b.MaxDecimicroLon
}
