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

	"github.com/hupe1980/geostore/idset"
	"github.com/hupe1980/geostore/layout"
	"github.com/hupe1980/geostore/model"
)

const pathBlobPrefix = "paths/"

// PathTable stores ordered node-reference sequences. Paths have no single
// coordinate to partition on, so the table is one memtable plus one sealed
// block ordered by id. All methods are safe for concurrent use.
type PathTable struct {
	profile layout.Profile
	opts    Options

	seq atomic.Uint64

	mu        sync.RWMutex
	mem       map[int64]versionedPath
	dead      *idset.Set
	sealed    []versionedPath
	sealedIdx map[int64]int
	gen       uint64
	closed    bool
}

// NewPathTable creates an empty path table using the given layout profile.
func NewPathTable(profile layout.Profile, optFns ...Option) (*PathTable, error) {
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

	return &PathTable{
		profile: profile,
		opts:    opts,
		mem:     make(map[int64]versionedPath),
		dead:    idset.New(),
	}, nil
}

// Upsert inserts or replaces the path. Replacement is whole-record: the new
// node sequence and tag set displace the old ones entirely, in order.
func (t *PathTable) Upsert(p model.Path) error {
	row := versionedPath{path: p.Clone(), seq: t.seq.Add(1)}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTableClosed
	}
	t.mem[p.ID] = row
	t.dead.Remove(p.ID)
	return nil
}

// Get returns the current version of the path with the given id. The node
// sequence comes back in exactly the stored order.
func (t *PathTable) Get(id int64) (model.Path, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return model.Path{}, ErrTableClosed
	}
	if row, ok := t.mem[id]; ok {
		return row.path.Clone(), nil
	}
	if t.dead.Contains(id) {
		return model.Path{}, ErrNotFound
	}
	if i, ok := t.sealedIdx[id]; ok {
		return t.sealed[i].path.Clone(), nil
	}
	return model.Path{}, ErrNotFound
}

// Delete removes the path with the given id. Deleting an absent id is a
// no-op.
func (t *PathTable) Delete(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTableClosed
	}
	delete(t.mem, id)
	t.dead.Add(id)
	return nil
}

// Len returns the number of live paths.
func (t *PathTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := len(t.mem)
	for _, row := range t.sealed {
		if t.dead.Contains(row.path.ID) {
			continue
		}
		if _, ok := t.mem[row.path.ID]; ok {
			continue
		}
		n++
	}
	return n
}

// Scan yields live paths ordered by id.
func (t *PathTable) Scan() iter.Seq2[model.Path, error] {
	return func(yield func(model.Path, error) bool) {
		t.mu.RLock()
		if t.closed {
			t.mu.RUnlock()
			yield(model.Path{}, ErrTableClosed)
			return
		}
		rows := t.mergedLocked()
		t.mu.RUnlock()

		for _, row := range rows {
			if !yield(row.path.Clone(), nil) {
				return
			}
		}
	}
}

// mergedLocked returns the live rows sorted by id. Callers hold t.mu.
func (t *PathTable) mergedLocked() []versionedPath {
	rows := make([]versionedPath, 0, len(t.sealed)+len(t.mem))
	for _, row := range t.sealed {
		if t.dead.Contains(row.path.ID) {
			continue
		}
		if _, ok := t.mem[row.path.ID]; ok {
			continue
		}
		rows = append(rows, row)
	}
	for _, row := range t.mem {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return t.profile.PathLess(rows[i].path, rows[j].path) })
	return rows
}

// Reconcile merges the memtable into the sealed block and persists the new
// block when a blobstore is configured. A no-op when nothing changed.
func (t *PathTable) Reconcile(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTableClosed
	}
	if len(t.mem) == 0 && t.dead.IsEmpty() {
		return nil
	}

	rows := t.mergedLocked()

	gen := t.gen + 1
	if t.opts.BlobStore != nil {
		data, err := encodePathBlock(t.profile, rows)
		if err != nil {
			return fmt.Errorf("engine: seal path block: %w", err)
		}
		if err := t.opts.BlobStore.Put(ctx, pathBlobName(gen), data); err != nil {
			return fmt.Errorf("engine: persist path block: %w", err)
		}
		if t.gen > 0 {
			if err := t.opts.BlobStore.Delete(ctx, pathBlobName(t.gen)); err != nil && t.opts.Logger != nil {
				t.opts.Logger.Warn("stale path block not deleted", "gen", t.gen, "error", err)
			}
		}
	}

	idx := make(map[int64]int, len(rows))
	for i, row := range rows {
		idx[row.path.ID] = i
	}
	t.sealed = rows
	t.sealedIdx = idx
	t.mem = make(map[int64]versionedPath)
	t.dead.Clear()
	t.gen = gen

	if t.opts.Logger != nil {
		t.opts.Logger.Debug("path table reconciled", "rows", len(rows), "gen", gen)
	}
	return nil
}

// Load rebuilds the table from its persisted block. It must run on an empty
// table with a blobstore configured.
func (t *PathTable) Load(ctx context.Context) error {
	if t.opts.BlobStore == nil {
		return fmt.Errorf("engine: load needs a blobstore")
	}

	names, err := t.opts.BlobStore.List(ctx, pathBlobPrefix)
	if err != nil {
		return fmt.Errorf("engine: list path blocks: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTableClosed
	}
	if len(t.sealed) != 0 || len(t.mem) != 0 {
		return fmt.Errorf("engine: load into a non-empty path table")
	}

	var latest uint64
	for _, name := range names {
		gen, err := parsePathBlobName(name)
		if err != nil {
			return err
		}
		if gen > latest {
			latest = gen
		}
	}
	if latest == 0 {
		return nil
	}

	for _, name := range names {
		if gen, _ := parsePathBlobName(name); gen != latest {
			if err := t.opts.BlobStore.Delete(ctx, name); err != nil && t.opts.Logger != nil {
				t.opts.Logger.Warn("stale path block not deleted", "name", name, "error", err)
			}
		}
	}

	data, err := t.opts.BlobStore.Fetch(ctx, pathBlobName(latest))
	if err != nil {
		return fmt.Errorf("engine: fetch path block: %w", err)
	}
	rows, err := decodePathBlock(data)
	if err != nil {
		return fmt.Errorf("engine: decode path block: %w", err)
	}

	var maxSeq uint64
	t.sealed = rows
	t.sealedIdx = make(map[int64]int, len(rows))
	for i, row := range rows {
		t.sealedIdx[row.path.ID] = i
		if row.seq > maxSeq {
			maxSeq = row.seq
		}
	}
	t.gen = latest

	if cur := t.seq.Load(); maxSeq > cur {
		t.seq.Store(maxSeq)
	}
	if t.opts.Logger != nil {
		t.opts.Logger.Info("path table loaded", "paths", len(rows))
	}
	return nil
}

// Close marks the table closed. Pending memtable contents are not flushed;
// call Reconcile first for durability.
func (t *PathTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func pathBlobName(gen uint64) string {
	return fmt.Sprintf("%s%08d", pathBlobPrefix, gen)
}

func parsePathBlobName(name string) (uint64, error) {
	rest, ok := strings.CutPrefix(name, pathBlobPrefix)
	if !ok {
		return 0, fmt.Errorf("engine: unexpected blob %q", name)
	}
	gen, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("engine: malformed path block name %q: %w", name, err)
	}
	return gen, nil
}
