package layout

import (
	"sort"
	"testing"

	"github.com/hupe1980/geostore/cell"
	"github.com/hupe1980/geostore/colcodec"
	"github.com/hupe1980/geostore/model"
)

func TestAnalyticalProfileValid(t *testing.T) {
	p := Analytical()
	if err := p.Validate(); err != nil {
		t.Fatalf("analytical profile invalid: %v", err)
	}
	if p.Normalized {
		t.Error("analytical profile marked normalized")
	}
	if p.PartitionLevel != cell.Coarse || p.SortLevel != cell.Fine {
		t.Errorf("unexpected levels: partition %d, sort %d", p.PartitionLevel, p.SortLevel)
	}
}

func TestEmbeddedProfileValid(t *testing.T) {
	p := Embedded()
	if err := p.Validate(); err != nil {
		t.Fatalf("embedded profile invalid: %v", err)
	}
	if !p.Normalized {
		t.Error("embedded profile not marked normalized")
	}
}

func TestValidateRejectsMissingCodec(t *testing.T) {
	p := Analytical()
	delete(p.Codecs, ColumnTags)
	if err := p.Validate(); err == nil {
		t.Error("profile with a missing codec validated")
	}
}

func TestValidateRejectsUnknownCodec(t *testing.T) {
	p := Analytical()
	p.Codecs[ColumnLat] = "zigzag"
	if err := p.Validate(); err == nil {
		t.Error("profile with an unknown codec validated")
	}
}

func TestValidateRejectsRawIDs(t *testing.T) {
	p := Analytical()
	p.Codecs[ColumnID] = "raw"
	if err := p.Validate(); err == nil {
		t.Error("profile storing raw ids validated")
	}
}

func TestValidateRejectsInvertedLevels(t *testing.T) {
	p := Analytical()
	p.PartitionLevel = cell.Fine
	p.SortLevel = cell.Coarse
	if err := p.Validate(); err == nil {
		t.Error("profile with partition finer than sort validated")
	}
}

func TestValidateRejectsCodecsOnNormalized(t *testing.T) {
	p := Embedded()
	p.Codecs = map[Column]string{ColumnID: "delta"}
	if err := p.Validate(); err == nil {
		t.Error("normalized profile with column codecs validated")
	}
}

func TestCodecFor(t *testing.T) {
	p := Analytical()
	c, err := p.CodecFor(ColumnCell12)
	if err != nil {
		t.Fatalf("CodecFor failed: %v", err)
	}
	if c.Name() != "dict" {
		t.Errorf("cell12 codec = %q, want dict", c.Name())
	}
	if _, err := p.CodecFor(Column("bogus")); err == nil {
		t.Error("CodecFor(bogus) did not fail")
	}
}

func TestPartitionKeyIsCoarseAncestor(t *testing.T) {
	p := Analytical()
	n := model.NewNode(1, model.GeoCoord{DecimicroLat: 525_219_184, DecimicroLon: 134_132_550}, nil)

	key := p.PartitionKey(n)
	if key != n.Cell3 {
		t.Errorf("partition key %s, want coarse cell %s", key, n.Cell3)
	}
	if !key.Contains(n.Cell12) {
		t.Error("partition key does not contain the node's fine cell")
	}
}

func TestNodeLessClustersSpatially(t *testing.T) {
	p := Analytical()

	// Nodes at the same spot sort by id; nodes apart sort by fine cell.
	here := model.GeoCoord{DecimicroLat: 100, DecimicroLon: 100}
	nodes := []model.Node{
		model.NewNode(30, model.GeoCoord{DecimicroLat: 600_000_000, DecimicroLon: 600_000_000}, nil),
		model.NewNode(20, here, nil),
		model.NewNode(10, here, nil),
	}
	sort.Slice(nodes, func(i, j int) bool { return p.NodeLess(nodes[i], nodes[j]) })

	for i := 0; i < len(nodes)-1; i++ {
		a, b := nodes[i], nodes[i+1]
		if a.Cell12 > b.Cell12 {
			t.Errorf("nodes not cell-ordered: %s before %s", a.Cell12, b.Cell12)
		}
		if a.Cell12 == b.Cell12 && a.ID >= b.ID {
			t.Errorf("same-cell nodes not id-ordered: %d before %d", a.ID, b.ID)
		}
	}
}

func TestPathLessOrdersByID(t *testing.T) {
	p := Analytical()
	a := model.Path{ID: 1}
	b := model.Path{ID: 2}
	if !p.PathLess(a, b) || p.PathLess(b, a) {
		t.Error("paths not ordered by id")
	}
}

func TestCompressionSchemeResolvable(t *testing.T) {
	p := Analytical()
	if _, ok := colcodec.CompressionByName(p.Compression.String()); !ok {
		t.Errorf("profile compression %q has no stable name", p.Compression)
	}
}
