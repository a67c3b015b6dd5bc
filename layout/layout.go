// Package layout declares the physical layout policy for geostore tables:
// how records are partitioned, how they are ordered inside a partition, which
// codec each column uses, and how duplicate ids are resolved.
//
// The policy is data, not code wired into a backend. The same logical table
// can be realized by the analytical columnar profile or the embedded
// normalized profile, and both must converge on identical logical contents.
package layout

import (
	"fmt"

	"github.com/hupe1980/geostore/cell"
	"github.com/hupe1980/geostore/colcodec"
	"github.com/hupe1980/geostore/model"
)

// Column names the physical columns of the analytical block layout.
type Column string

const (
	// ColumnID is the entity identifier column. It is always delta- or
	// dictionary-encoded, never raw: billions of raw 64-bit ids would
	// dominate storage.
	ColumnID Column = "id"
	// ColumnLat is the decimicro-latitude column.
	ColumnLat Column = "lat"
	// ColumnLon is the decimicro-longitude column.
	ColumnLon Column = "lon"
	// ColumnCell12 is the fine spatial cell column.
	ColumnCell12 Column = "cell12"
	// ColumnSeq is the write-sequence column used for duplicate resolution.
	ColumnSeq Column = "seq"
	// ColumnTags is the dense tag stream: (key_id, value_id)* 0 per record.
	ColumnTags Column = "tags"
	// ColumnPathNodes is the flattened node-reference stream of path records.
	ColumnPathNodes Column = "path_nodes"
	// ColumnPathLens is the per-path node count column.
	ColumnPathLens Column = "path_lens"
)

// DuplicatePolicy is the resolution rule applied when multiple records share
// a primary id.
type DuplicatePolicy uint8

const (
	// LastWriteWins keeps only the record with the highest write sequence.
	// Merging is commutative and idempotent, so reconciliation can run
	// lazily and in any order.
	LastWriteWins DuplicatePolicy = iota
)

// Profile is a complete physical layout choice for one deployment.
type Profile struct {
	// Name identifies the profile in logs and block headers.
	Name string

	// PartitionLevel is the cell level of the partition key.
	PartitionLevel cell.Level

	// SortLevel is the cell level leading the node sort key.
	SortLevel cell.Level

	// Codecs maps each column to a colcodec name. Empty for normalized
	// profiles, which store rows instead of columns.
	Codecs map[Column]string

	// Compression is applied to every encoded column payload.
	Compression colcodec.Compression

	// Duplicates is the duplicate-resolution policy.
	Duplicates DuplicatePolicy

	// Normalized marks profiles that split tags and path nodes into
	// separate relations instead of packing them into columns.
	Normalized bool
}

// Analytical is the columnar profile: partition by coarse cell, sort by
// (fine cell, id), delta-encode monotonic columns, dictionary-encode
// low-cardinality columns, compress everything.
func Analytical() Profile {
	return Profile{
		Name:           "analytical",
		PartitionLevel: cell.Coarse,
		SortLevel:      cell.Fine,
		Codecs: map[Column]string{
			ColumnID:        "delta",
			ColumnLat:       "delta",
			ColumnLon:       "delta",
			ColumnCell12:    "dict",
			ColumnSeq:       "delta",
			ColumnTags:      "dict",
			ColumnPathNodes: "delta",
			ColumnPathLens:  "delta",
		},
		Compression: colcodec.CompressionLZ4,
		Duplicates:  LastWriteWins,
	}
}

// Embedded is the normalized profile for the transactional backend: tags and
// path nodes become rows keyed by the owning entity, trading compression
// density for exact, immediately-consistent point lookups.
func Embedded() Profile {
	return Profile{
		Name:           "embedded",
		PartitionLevel: cell.Coarse,
		SortLevel:      cell.Fine,
		Duplicates:     LastWriteWins,
		Normalized:     true,
	}
}

// Validate checks that the profile is internally consistent and that every
// configured codec name resolves.
func (p Profile) Validate() error {
	if p.PartitionLevel >= p.SortLevel {
		return fmt.Errorf("layout %s: partition level %d must be coarser than sort level %d", p.Name, p.PartitionLevel, p.SortLevel)
	}
	if p.Normalized {
		if len(p.Codecs) != 0 {
			return fmt.Errorf("layout %s: normalized profiles do not take column codecs", p.Name)
		}
		return nil
	}
	for _, col := range []Column{ColumnID, ColumnLat, ColumnLon, ColumnCell12, ColumnSeq, ColumnTags, ColumnPathNodes, ColumnPathLens} {
		name, ok := p.Codecs[col]
		if !ok {
			return fmt.Errorf("layout %s: no codec for column %q", p.Name, col)
		}
		if _, ok := colcodec.ByName(name); !ok {
			return fmt.Errorf("layout %s: unknown codec %q for column %q", p.Name, name, col)
		}
	}
	if p.Codecs[ColumnID] == "raw" {
		return fmt.Errorf("layout %s: the id column must not be stored raw", p.Name)
	}
	return nil
}

// CodecFor resolves the codec configured for a column.
func (p Profile) CodecFor(col Column) (colcodec.Codec, error) {
	name, ok := p.Codecs[col]
	if !ok {
		return nil, fmt.Errorf("layout %s: no codec for column %q", p.Name, col)
	}
	c, ok := colcodec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("layout %s: unknown codec %q", p.Name, name)
	}
	return c, nil
}

// PartitionKey returns the partition a node belongs to: its coarse cell.
func (p Profile) PartitionKey(n model.Node) cell.ID {
	return n.Cell12.ParentAt(p.PartitionLevel)
}

// NodeLess orders nodes by the clustering key (fine cell, id), co-locating
// geographically nearby points so coordinate deltas stay small.
func (p Profile) NodeLess(a, b model.Node) bool {
	if a.Cell12 != b.Cell12 {
		return a.Cell12 < b.Cell12
	}
	return a.ID < b.ID
}

// PathLess orders paths by id; paths have no single coordinate to cluster on.
func (p Profile) PathLess(a, b model.Path) bool {
	return a.ID < b.ID
}
