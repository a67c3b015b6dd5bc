package model

import (
	"errors"
	"testing"

	"github.com/hupe1980/geostore/cell"
)

func TestCoordinateValidation(t *testing.T) {
	tests := []struct {
		name  string
		coord GeoCoord
		valid bool
	}{
		{"origin", GeoCoord{0, 0}, true},
		{"north pole", GeoCoord{900_000_000, 0}, true},
		{"south pole", GeoCoord{-900_000_000, 0}, true},
		{"antimeridian east", GeoCoord{0, 1_800_000_000}, true},
		{"antimeridian west", GeoCoord{0, -1_800_000_000}, true},
		{"past north pole", GeoCoord{900_000_001, 0}, false},
		{"past south pole", GeoCoord{-900_000_001, 0}, false},
		{"past antimeridian", GeoCoord{0, 1_800_000_001}, false},
		{"both out of range", GeoCoord{1_000_000_000, -2_000_000_000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coord.Validate()
			if tt.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				var ic *ErrInvalidCoordinate
				if !errors.As(err, &ic) {
					t.Fatalf("expected ErrInvalidCoordinate, got %T", err)
				}
			}
		})
	}
}

func TestFromDegrees(t *testing.T) {
	c := FromDegrees(52.52, 13.405)
	if c.DecimicroLat != 525_200_000 {
		t.Errorf("lat = %d, want 525200000", c.DecimicroLat)
	}
	if c.DecimicroLon != 134_050_000 {
		t.Errorf("lon = %d, want 134050000", c.DecimicroLon)
	}
	if got := c.Lat(); got != 52.52 {
		t.Errorf("Lat() = %v, want 52.52", got)
	}
}

func TestNewNodeDerivesCells(t *testing.T) {
	coord := GeoCoord{DecimicroLat: 525_219_184, DecimicroLon: 134_132_550}
	n := NewNode(42, coord, Tags{1: 2})

	if n.Cell12 != cell.At(coord.DecimicroLat, coord.DecimicroLon, cell.Fine) {
		t.Error("fine cell not derived from the coordinate")
	}
	if n.Cell3 != n.Cell12.ParentAt(cell.Coarse) {
		t.Error("coarse cell is not the ancestor of the fine cell")
	}
	if !n.Cell3.Contains(n.Cell12) {
		t.Error("coarse cell does not contain the fine cell")
	}
}

func TestNodeCloneIsDeep(t *testing.T) {
	n := NewNode(1, GeoCoord{1, 2}, Tags{3: 4})
	c := n.Clone()
	c.Tags[3] = 99

	if n.Tags[3] != 4 {
		t.Error("mutating the clone's tags changed the original")
	}
	if !n.Equal(n.Clone()) {
		t.Error("clone not equal to original")
	}
}

func TestPathOrderMatters(t *testing.T) {
	a := Path{ID: 1, Nodes: []int64{10, 20, 30}}
	b := Path{ID: 1, Nodes: []int64{30, 20, 10}}
	if a.Equal(b) {
		t.Error("paths with reversed node order reported equal")
	}

	c := a.Clone()
	c.Nodes[0] = 99
	if a.Nodes[0] != 10 {
		t.Error("mutating the clone's nodes changed the original")
	}
}

func TestBoundingBoxContains(t *testing.T) {
	box := BoundingBox{
		MinDecimicroLat: -10, MaxDecimicroLat: 10,
		MinDecimicroLon: -10, MaxDecimicroLon: 10,
	}
	if !box.Contains(GeoCoord{0, 0}) {
		t.Error("center not contained")
	}
	if !box.Contains(GeoCoord{10, 10}) {
		t.Error("inclusive corner not contained")
	}
	if box.Contains(GeoCoord{11, 0}) {
		t.Error("point north of box contained")
	}

	seam := BoundingBox{
		MinDecimicroLat: -10, MaxDecimicroLat: 10,
		MinDecimicroLon: 1_790_000_000, MaxDecimicroLon: -1_790_000_000,
	}
	if !seam.Contains(GeoCoord{0, 1_795_000_000}) {
		t.Error("east side of antimeridian box not contained")
	}
	if !seam.Contains(GeoCoord{0, -1_795_000_000}) {
		t.Error("west side of antimeridian box not contained")
	}
	if seam.Contains(GeoCoord{0, 0}) {
		t.Error("meridian contained in antimeridian box")
	}
}
