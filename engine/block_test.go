package engine

import (
	"testing"

	"github.com/hupe1980/geostore/layout"
	"github.com/hupe1980/geostore/model"
)

func testNodes() []versionedNode {
	coords := []model.GeoCoord{
		{DecimicroLat: 525_219_184, DecimicroLon: 134_132_550},
		{DecimicroLat: 525_219_999, DecimicroLon: 134_132_600},
		{DecimicroLat: -330_000_000, DecimicroLon: 1_515_000_000},
	}
	tags := []model.Tags{
		{1: 2, 3: 4},
		nil,
		{5: 6},
	}
	rows := make([]versionedNode, len(coords))
	for i, c := range coords {
		rows[i] = versionedNode{
			node: model.NewNode(int64(100+i), c, tags[i]),
			seq:  uint64(i + 1),
		}
	}
	return rows
}

func TestNodeBlockRoundTrip(t *testing.T) {
	rows := testNodes()

	data, err := encodeNodeBlock(layout.Analytical(), rows)
	if err != nil {
		t.Fatalf("encodeNodeBlock failed: %v", err)
	}
	decoded, err := decodeNodeBlock(data)
	if err != nil {
		t.Fatalf("decodeNodeBlock failed: %v", err)
	}
	if len(decoded) != len(rows) {
		t.Fatalf("decoded %d rows, want %d", len(decoded), len(rows))
	}
	for i := range rows {
		want, got := rows[i], decoded[i]
		if got.seq != want.seq {
			t.Errorf("row %d: seq %d, want %d", i, got.seq, want.seq)
		}
		if len(got.node.Tags) == 0 && len(want.node.Tags) == 0 {
			got.node.Tags = want.node.Tags
		}
		if !got.node.Equal(want.node) {
			t.Errorf("row %d: node %+v, want %+v", i, got.node, want.node)
		}
	}
}

func TestNodeBlockEmpty(t *testing.T) {
	data, err := encodeNodeBlock(layout.Analytical(), nil)
	if err != nil {
		t.Fatalf("encodeNodeBlock failed: %v", err)
	}
	decoded, err := decodeNodeBlock(data)
	if err != nil {
		t.Fatalf("decodeNodeBlock failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("decoded %d rows from an empty block", len(decoded))
	}
}

func TestPathBlockRoundTrip(t *testing.T) {
	rows := []versionedPath{
		{path: model.Path{ID: 1, Nodes: []int64{10, 20, 30}, Tags: model.Tags{1: 2}}, seq: 5},
		{path: model.Path{ID: 2, Nodes: nil, Tags: nil}, seq: 6},
		{path: model.Path{ID: 3, Nodes: []int64{30, 20, 10}, Tags: model.Tags{3: 4, 5: 6}}, seq: 7},
	}

	data, err := encodePathBlock(layout.Analytical(), rows)
	if err != nil {
		t.Fatalf("encodePathBlock failed: %v", err)
	}
	decoded, err := decodePathBlock(data)
	if err != nil {
		t.Fatalf("decodePathBlock failed: %v", err)
	}
	if len(decoded) != len(rows) {
		t.Fatalf("decoded %d rows, want %d", len(decoded), len(rows))
	}
	for i := range rows {
		want, got := rows[i], decoded[i]
		if got.seq != want.seq {
			t.Errorf("row %d: seq %d, want %d", i, got.seq, want.seq)
		}
		if len(got.path.Nodes) == 0 && len(want.path.Nodes) == 0 {
			got.path.Nodes = want.path.Nodes
		}
		if len(got.path.Tags) == 0 && len(want.path.Tags) == 0 {
			got.path.Tags = want.path.Tags
		}
		if !got.path.Equal(want.path) {
			t.Errorf("row %d: path %+v, want %+v", i, got.path, want.path)
		}
	}
}

func TestBlockKindMismatch(t *testing.T) {
	data, err := encodeNodeBlock(layout.Analytical(), testNodes())
	if err != nil {
		t.Fatalf("encodeNodeBlock failed: %v", err)
	}
	if _, err := decodePathBlock(data); err == nil {
		t.Error("node block decoded as a path block")
	}
}

func TestBlockBadMagic(t *testing.T) {
	if _, err := decodeNodeBlock([]byte("nope")); err == nil {
		t.Error("garbage decoded as a block")
	}
	data, _ := encodeNodeBlock(layout.Analytical(), testNodes())
	data[0] ^= 0xFF
	if _, err := decodeNodeBlock(data); err == nil {
		t.Error("corrupted magic accepted")
	}
}

func TestBlockTruncated(t *testing.T) {
	data, err := encodeNodeBlock(layout.Analytical(), testNodes())
	if err != nil {
		t.Fatalf("encodeNodeBlock failed: %v", err)
	}
	for _, cut := range []int{5, 20, len(data) - 3} {
		if _, err := decodeNodeBlock(data[:cut]); err == nil {
			t.Errorf("block truncated to %d bytes decoded without error", cut)
		}
	}
}

func TestTagStream(t *testing.T) {
	sets := []model.Tags{
		{10: 20, 1: 2},
		{},
		{3: 4},
	}
	stream := encodeTagStream(sets)

	// One terminator per record, pairs sorted by key.
	want := []uint64{1, 2, 10, 20, 0, 0, 3, 4, 0}
	if len(stream) != len(want) {
		t.Fatalf("stream length %d, want %d", len(stream), len(want))
	}
	for i := range want {
		if stream[i] != want[i] {
			t.Fatalf("stream[%d] = %d, want %d", i, stream[i], want[i])
		}
	}

	decoded, err := decodeTagStream(stream, len(sets))
	if err != nil {
		t.Fatalf("decodeTagStream failed: %v", err)
	}
	for i := range sets {
		if !decoded[i].Equal(sets[i]) && !(len(decoded[i]) == 0 && len(sets[i]) == 0) {
			t.Errorf("record %d: got %v, want %v", i, decoded[i], sets[i])
		}
	}
}

func TestTagStreamRejectsDanglingPair(t *testing.T) {
	if _, err := decodeTagStream([]uint64{1, 2, 3}, 1); err == nil {
		t.Error("stream ending inside a pair decoded without error")
	}
	if _, err := decodeTagStream([]uint64{1, 2, 0}, 2); err == nil {
		t.Error("stream with too few records decoded without error")
	}
}

func TestBlockHeaderRecordsCodecs(t *testing.T) {
	data, err := encodeNodeBlock(layout.Analytical(), testNodes())
	if err != nil {
		t.Fatalf("encodeNodeBlock failed: %v", err)
	}
	kind, comp, cols, err := splitBlock(data)
	if err != nil {
		t.Fatalf("splitBlock failed: %v", err)
	}
	if kind != blockKindNode {
		t.Errorf("kind = %d, want node", kind)
	}
	if comp != layout.Analytical().Compression {
		t.Errorf("compression = %v, want profile's", comp)
	}

	p := layout.Analytical()
	for _, c := range cols {
		if want := p.Codecs[c.name]; c.codec != want {
			t.Errorf("column %q recorded codec %q, want %q", c.name, c.codec, want)
		}
	}
}
