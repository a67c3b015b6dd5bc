package engine

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/hupe1980/geostore/cell"
	"github.com/hupe1980/geostore/colcodec"
	"github.com/hupe1980/geostore/layout"
	"github.com/hupe1980/geostore/model"
)

// Sealed blocks are self-describing: the header records, per column, its name
// and the codec that encoded it, plus the compression scheme applied to every
// payload. A reader never needs the writer's layout profile to decode.
//
// Format:
//
//	[Magic:4 "GSB1"][Kind:1][Compression:1][ColCount:1]
//	per column: [NameLen:1][Name][CodecLen:1][CodecName][PayloadLen:4]
//	then all payloads in header order
const blockMagic = "GSB1"

const (
	blockKindNode byte = 1
	blockKindPath byte = 2
)

type column struct {
	name    layout.Column
	codec   string
	payload []byte
}

func encodeColumn(p layout.Profile, name layout.Column, values []uint64) (column, error) {
	codec, err := p.CodecFor(name)
	if err != nil {
		return column{}, err
	}
	enc, err := codec.Encode(values)
	if err != nil {
		return column{}, fmt.Errorf("encode column %q: %w", name, err)
	}
	payload, err := colcodec.Compress(enc, p.Compression)
	if err != nil {
		return column{}, fmt.Errorf("compress column %q: %w", name, err)
	}
	return column{name: name, codec: codec.Name(), payload: payload}, nil
}

func assembleBlock(kind byte, comp colcodec.Compression, cols []column) ([]byte, error) {
	if len(cols) > 255 {
		return nil, fmt.Errorf("block: too many columns: %d", len(cols))
	}

	out := append([]byte(nil), blockMagic...)
	out = append(out, kind, byte(comp), byte(len(cols)))
	for _, c := range cols {
		if len(c.name) > 255 || len(c.codec) > 255 {
			return nil, fmt.Errorf("block: column or codec name too long")
		}
		out = append(out, byte(len(c.name)))
		out = append(out, c.name...)
		out = append(out, byte(len(c.codec)))
		out = append(out, c.codec...)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(c.payload)))
	}
	for _, c := range cols {
		out = append(out, c.payload...)
	}
	return out, nil
}

func splitBlock(data []byte) (byte, colcodec.Compression, []column, error) {
	if len(data) < 7 || string(data[:4]) != blockMagic {
		return 0, 0, nil, fmt.Errorf("block: bad magic")
	}
	kind := data[4]
	comp := colcodec.Compression(data[5])
	count := int(data[6])
	data = data[7:]

	cols := make([]column, 0, count)
	lens := make([]int, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < 1 {
			return 0, 0, nil, fmt.Errorf("block: truncated header")
		}
		nameLen := int(data[0])
		if len(data) < 1+nameLen+1 {
			return 0, 0, nil, fmt.Errorf("block: truncated column name")
		}
		name := layout.Column(data[1 : 1+nameLen])
		data = data[1+nameLen:]

		codecLen := int(data[0])
		if len(data) < 1+codecLen+4 {
			return 0, 0, nil, fmt.Errorf("block: truncated codec name")
		}
		codecName := string(data[1 : 1+codecLen])
		payloadLen := int(binary.LittleEndian.Uint32(data[1+codecLen:]))
		data = data[1+codecLen+4:]

		cols = append(cols, column{name: name, codec: codecName})
		lens = append(lens, payloadLen)
	}

	for i := range cols {
		if len(data) < lens[i] {
			return 0, 0, nil, fmt.Errorf("block: truncated payload for column %q", cols[i].name)
		}
		cols[i].payload = data[:lens[i]]
		data = data[lens[i]:]
	}
	return kind, comp, cols, nil
}

func decodeColumn(cols []column, comp colcodec.Compression, name layout.Column) ([]uint64, error) {
	for _, c := range cols {
		if c.name != name {
			continue
		}
		codec, ok := colcodec.ByName(c.codec)
		if !ok {
			return nil, fmt.Errorf("block: column %q uses unknown codec %q", name, c.codec)
		}
		raw, err := colcodec.Decompress(c.payload, comp)
		if err != nil {
			return nil, fmt.Errorf("decompress column %q: %w", name, err)
		}
		values, err := codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode column %q: %w", name, err)
		}
		return values, nil
	}
	return nil, fmt.Errorf("block: missing column %q", name)
}

// encodeTagStream flattens tag sets into the dense (key_id, value_id)* 0
// stream, one zero-terminated run per record. Pairs are emitted in key order
// so identical tag sets produce identical bytes. Interned ids are never zero,
// which is what makes zero safe as the terminator.
func encodeTagStream(tagSets []model.Tags) []uint64 {
	var out []uint64
	for _, tags := range tagSets {
		keys := make([]uint64, 0, len(tags))
		for k := range tags {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			out = append(out, k, tags[k])
		}
		out = append(out, 0)
	}
	return out
}

func decodeTagStream(stream []uint64, rows int) ([]model.Tags, error) {
	out := make([]model.Tags, 0, rows)
	cur := model.Tags{}
	var pending *uint64
	for _, v := range stream {
		switch {
		case pending != nil:
			cur[*pending] = v
			pending = nil
		case v == 0:
			out = append(out, cur)
			cur = model.Tags{}
		default:
			k := v
			pending = &k
		}
	}
	if pending != nil {
		return nil, fmt.Errorf("block: tag stream ends inside a pair")
	}
	if len(out) != rows {
		return nil, fmt.Errorf("block: tag stream has %d records, want %d", len(out), rows)
	}
	return out, nil
}

func encodeNodeBlock(p layout.Profile, rows []versionedNode) ([]byte, error) {
	n := len(rows)
	ids := make([]uint64, n)
	lats := make([]uint64, n)
	lons := make([]uint64, n)
	cells := make([]uint64, n)
	seqs := make([]uint64, n)
	tagSets := make([]model.Tags, n)
	for i, r := range rows {
		ids[i] = uint64(r.node.ID)
		lats[i] = uint64(int64(r.node.DecimicroLat))
		lons[i] = uint64(int64(r.node.DecimicroLon))
		cells[i] = uint64(r.node.Cell12)
		seqs[i] = r.seq
		tagSets[i] = r.node.Tags
	}

	specs := []struct {
		name   layout.Column
		values []uint64
	}{
		{layout.ColumnID, ids},
		{layout.ColumnLat, lats},
		{layout.ColumnLon, lons},
		{layout.ColumnCell12, cells},
		{layout.ColumnSeq, seqs},
		{layout.ColumnTags, encodeTagStream(tagSets)},
	}

	cols := make([]column, 0, len(specs))
	for _, s := range specs {
		c, err := encodeColumn(p, s.name, s.values)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return assembleBlock(blockKindNode, p.Compression, cols)
}

func decodeNodeBlock(data []byte) ([]versionedNode, error) {
	kind, comp, cols, err := splitBlock(data)
	if err != nil {
		return nil, err
	}
	if kind != blockKindNode {
		return nil, fmt.Errorf("block: kind %d is not a node block", kind)
	}

	ids, err := decodeColumn(cols, comp, layout.ColumnID)
	if err != nil {
		return nil, err
	}
	lats, err := decodeColumn(cols, comp, layout.ColumnLat)
	if err != nil {
		return nil, err
	}
	lons, err := decodeColumn(cols, comp, layout.ColumnLon)
	if err != nil {
		return nil, err
	}
	cells, err := decodeColumn(cols, comp, layout.ColumnCell12)
	if err != nil {
		return nil, err
	}
	seqs, err := decodeColumn(cols, comp, layout.ColumnSeq)
	if err != nil {
		return nil, err
	}
	if len(lats) != len(ids) || len(lons) != len(ids) || len(cells) != len(ids) || len(seqs) != len(ids) {
		return nil, fmt.Errorf("block: node column lengths disagree")
	}

	stream, err := decodeColumn(cols, comp, layout.ColumnTags)
	if err != nil {
		return nil, err
	}
	tagSets, err := decodeTagStream(stream, len(ids))
	if err != nil {
		return nil, err
	}

	rows := make([]versionedNode, len(ids))
	for i := range ids {
		fine := cell.ID(cells[i])
		rows[i] = versionedNode{
			node: model.Node{
				ID:           int64(ids[i]),
				DecimicroLat: int32(int64(lats[i])),
				DecimicroLon: int32(int64(lons[i])),
				Cell3:        fine.ParentAt(cell.Coarse),
				Cell12:       fine,
				Tags:         tagSets[i],
			},
			seq: seqs[i],
		}
	}
	return rows, nil
}

func encodePathBlock(p layout.Profile, rows []versionedPath) ([]byte, error) {
	n := len(rows)
	ids := make([]uint64, n)
	seqs := make([]uint64, n)
	lens := make([]uint64, n)
	var refs []uint64
	tagSets := make([]model.Tags, n)
	for i, r := range rows {
		ids[i] = uint64(r.path.ID)
		seqs[i] = r.seq
		lens[i] = uint64(len(r.path.Nodes))
		for _, ref := range r.path.Nodes {
			refs = append(refs, uint64(ref))
		}
		tagSets[i] = r.path.Tags
	}

	specs := []struct {
		name   layout.Column
		values []uint64
	}{
		{layout.ColumnID, ids},
		{layout.ColumnSeq, seqs},
		{layout.ColumnPathLens, lens},
		{layout.ColumnPathNodes, refs},
		{layout.ColumnTags, encodeTagStream(tagSets)},
	}

	cols := make([]column, 0, len(specs))
	for _, s := range specs {
		c, err := encodeColumn(p, s.name, s.values)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return assembleBlock(blockKindPath, p.Compression, cols)
}

func decodePathBlock(data []byte) ([]versionedPath, error) {
	kind, comp, cols, err := splitBlock(data)
	if err != nil {
		return nil, err
	}
	if kind != blockKindPath {
		return nil, fmt.Errorf("block: kind %d is not a path block", kind)
	}

	ids, err := decodeColumn(cols, comp, layout.ColumnID)
	if err != nil {
		return nil, err
	}
	seqs, err := decodeColumn(cols, comp, layout.ColumnSeq)
	if err != nil {
		return nil, err
	}
	lens, err := decodeColumn(cols, comp, layout.ColumnPathLens)
	if err != nil {
		return nil, err
	}
	refs, err := decodeColumn(cols, comp, layout.ColumnPathNodes)
	if err != nil {
		return nil, err
	}
	if len(seqs) != len(ids) || len(lens) != len(ids) {
		return nil, fmt.Errorf("block: path column lengths disagree")
	}

	stream, err := decodeColumn(cols, comp, layout.ColumnTags)
	if err != nil {
		return nil, err
	}
	tagSets, err := decodeTagStream(stream, len(ids))
	if err != nil {
		return nil, err
	}

	rows := make([]versionedPath, len(ids))
	off := 0
	for i := range ids {
		count := int(lens[i])
		if off+count > len(refs) {
			return nil, fmt.Errorf("block: path node stream truncated")
		}
		nodes := make([]int64, count)
		for j := 0; j < count; j++ {
			nodes[j] = int64(refs[off+j])
		}
		off += count
		rows[i] = versionedPath{
			path: model.Path{ID: int64(ids[i]), Nodes: nodes, Tags: tagSets[i]},
			seq:  seqs[i],
		}
	}
	if off != len(refs) {
		return nil, fmt.Errorf("block: path node stream has %d trailing references", len(refs)-off)
	}
	return rows, nil
}
