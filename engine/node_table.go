package engine

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/geostore/cell"
	"github.com/hupe1980/geostore/idset"
	"github.com/hupe1980/geostore/layout"
	"github.com/hupe1980/geostore/model"
)

const nodeBlobPrefix = "nodes/"

// NodeTable stores point entities partitioned by coarse spatial cell.
// All methods are safe for concurrent use.
type NodeTable struct {
	profile layout.Profile
	opts    Options

	seq atomic.Uint64

	mu     sync.RWMutex
	parts  map[cell.ID]*nodePartition
	byID   map[int64]cell.ID
	closed bool
}

// nodePartition is the unit of write buffering and reconciliation. The
// memtable absorbs upserts; the sealed rows are the last reconciled state,
// sorted by the clustering key. The dead set hides sealed rows whose id was
// deleted or moved to another partition since the last reconcile.
type nodePartition struct {
	cell cell.ID

	mu        sync.RWMutex
	mem       map[int64]versionedNode
	dead      *idset.Set
	sealed    []versionedNode
	sealedIdx map[int64]int
	gen       uint64
}

func newNodePartition(c cell.ID) *nodePartition {
	return &nodePartition{
		cell: c,
		mem:  make(map[int64]versionedNode),
		dead: idset.New(),
	}
}

// NewNodeTable creates an empty node table using the given layout profile.
func NewNodeTable(profile layout.Profile, optFns ...Option) (*NodeTable, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if profile.Normalized {
		return nil, fmt.Errorf("engine: normalized profile %q needs the embedded backend", profile.Name)
	}

	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &NodeTable{
		profile: profile,
		opts:    opts,
		parts:   make(map[cell.ID]*nodePartition),
		byID:    make(map[int64]cell.ID),
	}, nil
}

// Upsert inserts or replaces the node. A node whose coordinate moved to a
// different partition is shadowed in its old partition and rewritten in the
// new one; readers never observe both versions.
func (t *NodeTable) Upsert(n model.Node) error {
	key := t.profile.PartitionKey(n)
	row := versionedNode{node: n.Clone(), seq: t.seq.Add(1)}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTableClosed
	}

	if prev, ok := t.byID[n.ID]; ok && prev != key {
		if old := t.parts[prev]; old != nil {
			old.mu.Lock()
			delete(old.mem, n.ID)
			old.dead.Add(n.ID)
			old.mu.Unlock()
		}
	}
	t.byID[n.ID] = key

	part := t.parts[key]
	if part == nil {
		part = newNodePartition(key)
		t.parts[key] = part
	}
	t.mu.Unlock()

	part.mu.Lock()
	part.mem[n.ID] = row
	part.dead.Remove(n.ID)
	part.mu.Unlock()
	return nil
}

// Get returns the current version of the node with the given id.
func (t *NodeTable) Get(id int64) (model.Node, error) {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return model.Node{}, ErrTableClosed
	}
	key, ok := t.byID[id]
	part := t.parts[key]
	t.mu.RUnlock()

	if !ok || part == nil {
		return model.Node{}, ErrNotFound
	}

	part.mu.RLock()
	defer part.mu.RUnlock()
	if row, ok := part.mem[id]; ok {
		return row.node.Clone(), nil
	}
	if part.dead.Contains(id) {
		return model.Node{}, ErrNotFound
	}
	if i, ok := part.sealedIdx[id]; ok {
		return part.sealed[i].node.Clone(), nil
	}
	return model.Node{}, ErrNotFound
}

// Delete removes the node with the given id. Deleting an absent id is a
// no-op.
func (t *NodeTable) Delete(id int64) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTableClosed
	}
	key, ok := t.byID[id]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.byID, id)
	part := t.parts[key]
	t.mu.Unlock()

	if part != nil {
		part.mu.Lock()
		delete(part.mem, id)
		part.dead.Add(id)
		part.mu.Unlock()
	}
	return nil
}

// Len returns the number of live nodes.
func (t *NodeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// IDs returns the set of live node ids.
func (t *NodeTable) IDs() *idset.Set {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := idset.New()
	for id := range t.byID {
		out.Add(id)
	}
	return out
}

// Partitions returns the coarse cells that currently hold data, sorted.
func (t *NodeTable) Partitions() []cell.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]cell.ID, 0, len(t.parts))
	for c := range t.parts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Scan yields live nodes ordered by (partition cell, fine cell, id). With
// bounds set, partitions outside the box cover are pruned without being read
// and rows are filtered individually afterwards.
func (t *NodeTable) Scan(opts ScanOptions) iter.Seq2[model.Node, error] {
	return func(yield func(model.Node, error) bool) {
		t.mu.RLock()
		if t.closed {
			t.mu.RUnlock()
			yield(model.Node{}, ErrTableClosed)
			return
		}

		var cover map[cell.ID]struct{}
		if opts.Bounds != nil {
			b := *opts.Bounds
			cover = make(map[cell.ID]struct{})
			for _, c := range cell.Cover(b.MinDecimicroLat, b.MaxDecimicroLat, b.MinDecimicroLon, b.MaxDecimicroLon, t.profile.PartitionLevel) {
				cover[c] = struct{}{}
			}
		}

		parts := make([]*nodePartition, 0, len(t.parts))
		for c, p := range t.parts {
			if cover != nil {
				if _, ok := cover[c]; !ok {
					continue
				}
			}
			parts = append(parts, p)
		}
		t.mu.RUnlock()

		sort.Slice(parts, func(i, j int) bool { return parts[i].cell < parts[j].cell })
		for _, p := range parts {
			for _, row := range p.merged(t.profile) {
				if opts.Bounds != nil && !opts.Bounds.Contains(row.node.Coord()) {
					continue
				}
				if !yield(row.node.Clone(), nil) {
					return
				}
			}
		}
	}
}

// merged returns the partition's live rows sorted by the clustering key,
// without mutating partition state.
func (p *nodePartition) merged(profile layout.Profile) []versionedNode {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows := make([]versionedNode, 0, len(p.sealed)+len(p.mem))
	for _, row := range p.sealed {
		if p.dead.Contains(row.node.ID) {
			continue
		}
		if _, ok := p.mem[row.node.ID]; ok {
			continue
		}
		rows = append(rows, row)
	}
	for _, row := range p.mem {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return profile.NodeLess(rows[i].node, rows[j].node) })
	return rows
}

// Reconcile merges the partition's memtable into its sealed block, dropping
// superseded and deleted rows, and persists the new block when a blobstore is
// configured. Reconciling a partition with no pending changes is a no-op.
func (t *NodeTable) Reconcile(ctx context.Context, c cell.ID) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrTableClosed
	}
	part := t.parts[c]
	t.mu.RUnlock()

	if part == nil {
		return nil
	}

	part.mu.Lock()
	defer part.mu.Unlock()

	if len(part.mem) == 0 && part.dead.IsEmpty() {
		return nil
	}

	rows := make([]versionedNode, 0, len(part.sealed)+len(part.mem))
	for _, row := range part.sealed {
		if part.dead.Contains(row.node.ID) {
			continue
		}
		if mem, ok := part.mem[row.node.ID]; ok && mem.seq >= row.seq {
			continue
		}
		rows = append(rows, row)
	}
	for _, row := range part.mem {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return t.profile.NodeLess(rows[i].node, rows[j].node) })

	gen := part.gen + 1
	if t.opts.BlobStore != nil {
		data, err := encodeNodeBlock(t.profile, rows)
		if err != nil {
			return fmt.Errorf("engine: seal node partition %s: %w", part.cell, err)
		}
		if err := t.opts.BlobStore.Put(ctx, nodeBlobName(part.cell, gen), data); err != nil {
			return fmt.Errorf("engine: persist node partition %s: %w", part.cell, err)
		}
		if part.gen > 0 {
			if err := t.opts.BlobStore.Delete(ctx, nodeBlobName(part.cell, part.gen)); err != nil && t.opts.Logger != nil {
				t.opts.Logger.Warn("stale node block not deleted", "cell", part.cell.String(), "gen", part.gen, "error", err)
			}
		}
	}

	idx := make(map[int64]int, len(rows))
	for i, row := range rows {
		idx[row.node.ID] = i
	}
	part.sealed = rows
	part.sealedIdx = idx
	part.mem = make(map[int64]versionedNode)
	part.dead.Clear()
	part.gen = gen

	if t.opts.Logger != nil {
		t.opts.Logger.Debug("node partition reconciled", "cell", part.cell.String(), "rows", len(rows), "gen", gen)
	}
	return nil
}

// ReconcileAll reconciles every partition, bounded by the configured
// concurrency. Partition merges are independent, so order does not matter.
func (t *NodeTable) ReconcileAll(ctx context.Context) error {
	sem := semaphore.NewWeighted(int64(max(t.opts.ReconcileConcurrency, 1)))
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range t.Partitions() {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			return t.Reconcile(ctx, c)
		})
	}
	return g.Wait()
}

// Load rebuilds the table from persisted blocks. It must run on an empty
// table with a blobstore configured. The write-sequence counter resumes past
// the highest persisted sequence so new writes always win over loaded rows.
func (t *NodeTable) Load(ctx context.Context) error {
	if t.opts.BlobStore == nil {
		return fmt.Errorf("engine: load needs a blobstore")
	}

	names, err := t.opts.BlobStore.List(ctx, nodeBlobPrefix)
	if err != nil {
		return fmt.Errorf("engine: list node blocks: %w", err)
	}

	// A crash between Put and Delete can leave two generations of one
	// partition behind. The highest generation wins; older ones are removed.
	latest := make(map[cell.ID]uint64)
	for _, name := range names {
		c, gen, err := parseNodeBlobName(name)
		if err != nil {
			return err
		}
		if gen > latest[c] {
			latest[c] = gen
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTableClosed
	}
	if len(t.parts) != 0 {
		return fmt.Errorf("engine: load into a non-empty node table")
	}

	type loadedBlock struct {
		cell cell.ID
		gen  uint64
		rows []versionedNode
	}

	var maxSeq uint64
	blocks := make([]loadedBlock, 0, len(latest))
	// A node that moved partitions can survive in two blocks when the old
	// partition's rewrite never happened. Track the highest sequence per id
	// across all blocks so only the last written copy becomes visible.
	winner := make(map[int64]versionedNode)
	winnerCell := make(map[int64]cell.ID)
	for _, name := range names {
		c, gen, _ := parseNodeBlobName(name)
		if gen != latest[c] {
			if err := t.opts.BlobStore.Delete(ctx, name); err != nil && t.opts.Logger != nil {
				t.opts.Logger.Warn("stale node block not deleted", "name", name, "error", err)
			}
			continue
		}

		data, err := t.opts.BlobStore.Fetch(ctx, name)
		if err != nil {
			return fmt.Errorf("engine: fetch node block %s: %w", name, err)
		}
		rows, err := decodeNodeBlock(data)
		if err != nil {
			return fmt.Errorf("engine: decode node block %s: %w", name, err)
		}
		blocks = append(blocks, loadedBlock{cell: c, gen: gen, rows: rows})

		for _, row := range rows {
			if row.seq > maxSeq {
				maxSeq = row.seq
			}
			if best, ok := winner[row.node.ID]; !ok || row.seq > best.seq {
				winner[row.node.ID] = row
				winnerCell[row.node.ID] = c
			}
		}
	}

	duplicates := 0
	for _, blk := range blocks {
		part := newNodePartition(blk.cell)
		part.gen = blk.gen
		part.sealed = blk.rows
		part.sealedIdx = make(map[int64]int, len(blk.rows))
		for i, row := range blk.rows {
			part.sealedIdx[row.node.ID] = i
			if winnerCell[row.node.ID] != blk.cell {
				// Superseded copy. Shadow it so the next reconcile drops
				// it from the persisted block.
				part.dead.Add(row.node.ID)
				duplicates++
				continue
			}
			t.byID[row.node.ID] = blk.cell
		}
		t.parts[blk.cell] = part
	}
	if duplicates > 0 && t.opts.Logger != nil {
		t.opts.Logger.Warn("superseded node copies shadowed during load", "count", duplicates)
	}

	if cur := t.seq.Load(); maxSeq > cur {
		t.seq.Store(maxSeq)
	}
	if t.opts.Logger != nil {
		t.opts.Logger.Info("node table loaded", "partitions", len(t.parts), "nodes", len(t.byID))
	}
	return nil
}

// Close marks the table closed. Pending memtable contents are not flushed;
// call ReconcileAll first for durability.
func (t *NodeTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func nodeBlobName(c cell.ID, gen uint64) string {
	return fmt.Sprintf("%s%016x-%08d", nodeBlobPrefix, uint64(c), gen)
}

func parseNodeBlobName(name string) (cell.ID, uint64, error) {
	rest, ok := strings.CutPrefix(name, nodeBlobPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("engine: unexpected blob %q", name)
	}
	cellHex, genDec, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, 0, fmt.Errorf("engine: malformed node block name %q", name)
	}
	c, err := strconv.ParseUint(cellHex, 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("engine: malformed node block name %q: %w", name, err)
	}
	gen, err := strconv.ParseUint(genDec, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("engine: malformed node block name %q: %w", name, err)
	}
	return cell.ID(c), gen, nil
}
