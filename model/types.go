package model

import (
	"maps"
	"slices"

	"github.com/hupe1980/geostore/cell"
)

// Tags maps interned tag-key ids to interned tag-value ids. Ids are assigned
// by the string table; zero is reserved and never a valid id.
type Tags map[uint64]uint64

// Clone returns a deep copy, with nil preserved.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	return maps.Clone(t)
}

// Equal reports whether two tag sets contain the same mappings.
func (t Tags) Equal(other Tags) bool {
	return maps.Equal(t, other)
}

// Node is a point entity. Cell3 and Cell12 are derived deterministically from
// the coordinates; Cell3 is always the coarse ancestor of Cell12.
type Node struct {
	ID           int64
	DecimicroLat int32
	DecimicroLon int32
	Cell3        cell.ID
	Cell12       cell.ID
	Tags         Tags
}

// NewNode derives the cell hierarchy for the given coordinate and returns the
// assembled record. The coordinate must already be validated.
func NewNode(id int64, coord GeoCoord, tags Tags) Node {
	fine := cell.At(coord.DecimicroLat, coord.DecimicroLon, cell.Fine)
	return Node{
		ID:           id,
		DecimicroLat: coord.DecimicroLat,
		DecimicroLon: coord.DecimicroLon,
		Cell3:        fine.ParentAt(cell.Coarse),
		Cell12:       fine,
		Tags:         tags,
	}
}

// Coord returns the node's coordinate.
func (n Node) Coord() GeoCoord {
	return GeoCoord{DecimicroLat: n.DecimicroLat, DecimicroLon: n.DecimicroLon}
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	n.Tags = n.Tags.Clone()
	return n
}

// Equal reports whether two nodes carry identical field values.
func (n Node) Equal(other Node) bool {
	return n.ID == other.ID &&
		n.DecimicroLat == other.DecimicroLat &&
		n.DecimicroLon == other.DecimicroLon &&
		n.Cell3 == other.Cell3 &&
		n.Cell12 == other.Cell12 &&
		n.Tags.Equal(other.Tags)
}

// Path is an ordered sequence of node references. The order defines the
// traversal direction and must be preserved exactly. Referential integrity
// against the node table is advisory, not transactional.
type Path struct {
	ID    int64
	Nodes []int64
	Tags  Tags
}

// Clone returns a deep copy of the path.
func (p Path) Clone() Path {
	p.Nodes = slices.Clone(p.Nodes)
	p.Tags = p.Tags.Clone()
	return p
}

// Equal reports whether two paths carry identical field values, including
// node order.
func (p Path) Equal(other Path) bool {
	return p.ID == other.ID &&
		slices.Equal(p.Nodes, other.Nodes) &&
		p.Tags.Equal(other.Tags)
}
