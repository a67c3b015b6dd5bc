package bolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hupe1980/geostore/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func berlin(id int64, tags model.Tags) model.Node {
	return model.NewNode(id, model.GeoCoord{DecimicroLat: 525_219_184, DecimicroLon: 134_132_550}, tags)
}

func sydney(id int64, tags model.Tags) model.Node {
	return model.NewNode(id, model.GeoCoord{DecimicroLat: -338_688_000, DecimicroLon: 1_512_093_000}, tags)
}

func TestNodeUpsertGet(t *testing.T) {
	store := newTestStore(t)

	want := berlin(42, model.Tags{1: 2, 3: 4})
	if err := store.UpsertNode(want); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}

	got, err := store.GetNode(42)
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("GetNode = %+v, want %+v", got, want)
	}

	if _, err := store.GetNode(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNode(absent) = %v, want ErrNotFound", err)
	}
}

func TestNodeReplaceDropsOldTagsAndIndex(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertNode(berlin(1, model.Tags{1: 2, 3: 4})); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	// Replace with a different location and smaller tag set.
	replacement := sydney(1, model.Tags{5: 6})
	if err := store.UpsertNode(replacement); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}

	got, err := store.GetNode(1)
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if !got.Equal(replacement) {
		t.Errorf("GetNode = %+v, want %+v", got, replacement)
	}

	// The old spatial index entry must be gone: a scan yields one version.
	count := 0
	for n, err := range store.ScanNodes(nil) {
		if err != nil {
			t.Fatalf("ScanNodes failed: %v", err)
		}
		if n.ID == 1 {
			count++
			if n.Cell3 != replacement.Cell3 {
				t.Error("scan yielded the pre-replacement version")
			}
		}
	}
	if count != 1 {
		t.Errorf("scan yielded %d versions of node 1", count)
	}
}

func TestNodeDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertNode(berlin(1, model.Tags{1: 2})); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	if err := store.DeleteNode(1); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}
	if _, err := store.GetNode(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNode after delete = %v, want ErrNotFound", err)
	}

	for range store.ScanNodes(nil) {
		t.Fatal("scan yielded rows after the only node was deleted")
	}

	if err := store.DeleteNode(99); err != nil {
		t.Errorf("DeleteNode(absent) = %v, want nil", err)
	}
}

func TestScanNodesBounds(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertNode(berlin(1, nil)); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	if err := store.UpsertNode(berlin(2, nil)); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	if err := store.UpsertNode(sydney(3, nil)); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}

	box := &model.BoundingBox{
		MinDecimicroLat: 520_000_000, MaxDecimicroLat: 530_000_000,
		MinDecimicroLon: 130_000_000, MaxDecimicroLon: 140_000_000,
	}
	var ids []int64
	for n, err := range store.ScanNodes(box) {
		if err != nil {
			t.Fatalf("ScanNodes failed: %v", err)
		}
		ids = append(ids, n.ID)
	}
	if len(ids) != 2 {
		t.Fatalf("bounded scan = %v, want the two berlin nodes", ids)
	}
	if ids[0] >= ids[1] {
		t.Errorf("same-cell nodes not id-ordered: %v", ids)
	}
}

func TestScanNodesCellOrder(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertNode(sydney(1, nil)); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	if err := store.UpsertNode(berlin(2, nil)); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}

	var prev model.Node
	first := true
	for n, err := range store.ScanNodes(nil) {
		if err != nil {
			t.Fatalf("ScanNodes failed: %v", err)
		}
		if !first && prev.Cell3 > n.Cell3 {
			t.Error("scan not ordered by coarse cell")
		}
		prev, first = n, false
	}
}

func TestNegativeIDsSortSigned(t *testing.T) {
	store := newTestStore(t)

	// Ids straddling zero inside one cell: cursor order must be signed
	// numeric order, the same order the analytical engine produces.
	for _, id := range []int64{5, -3, 1} {
		if err := store.UpsertNode(berlin(id, nil)); err != nil {
			t.Fatalf("UpsertNode failed: %v", err)
		}
	}
	var ids []int64
	for n, err := range store.ScanNodes(nil) {
		if err != nil {
			t.Fatalf("ScanNodes failed: %v", err)
		}
		ids = append(ids, n.ID)
	}
	if len(ids) != 3 || ids[0] != -3 || ids[1] != 1 || ids[2] != 5 {
		t.Errorf("node scan order = %v, want [-3 1 5]", ids)
	}

	got, err := store.GetNode(-3)
	if err != nil {
		t.Fatalf("GetNode(-3) failed: %v", err)
	}
	if got.ID != -3 {
		t.Errorf("GetNode(-3) returned id %d", got.ID)
	}

	for _, id := range []int64{2, -7} {
		if err := store.UpsertPath(model.Path{ID: id, Nodes: []int64{1}}); err != nil {
			t.Fatalf("UpsertPath failed: %v", err)
		}
	}
	var pids []int64
	for p, err := range store.ScanPaths() {
		if err != nil {
			t.Fatalf("ScanPaths failed: %v", err)
		}
		pids = append(pids, p.ID)
	}
	if len(pids) != 2 || pids[0] != -7 || pids[1] != 2 {
		t.Errorf("path scan order = %v, want [-7 2]", pids)
	}
}

func TestPathRoundTripPreservesOrder(t *testing.T) {
	store := newTestStore(t)

	want := model.Path{ID: 1, Nodes: []int64{30, 10, 20, 10}, Tags: model.Tags{1: 2}}
	if err := store.UpsertPath(want); err != nil {
		t.Fatalf("UpsertPath failed: %v", err)
	}

	got, err := store.GetPath(1)
	if err != nil {
		t.Fatalf("GetPath failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("GetPath = %+v, want %+v", got, want)
	}
}

func TestPathReplaceShrinks(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertPath(model.Path{ID: 1, Nodes: []int64{1, 2, 3, 4, 5}, Tags: model.Tags{1: 2}}); err != nil {
		t.Fatalf("UpsertPath failed: %v", err)
	}
	// Shorter replacement: stale ordinals must not linger.
	if err := store.UpsertPath(model.Path{ID: 1, Nodes: []int64{9, 8}}); err != nil {
		t.Fatalf("UpsertPath failed: %v", err)
	}

	got, err := store.GetPath(1)
	if err != nil {
		t.Fatalf("GetPath failed: %v", err)
	}
	if len(got.Nodes) != 2 || got.Nodes[0] != 9 || got.Nodes[1] != 8 {
		t.Errorf("replacement nodes = %v, want [9 8]", got.Nodes)
	}
	if len(got.Tags) != 0 {
		t.Errorf("old tags survived replacement: %v", got.Tags)
	}
}

func TestPathDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertPath(model.Path{ID: 1, Nodes: []int64{1}}); err != nil {
		t.Fatalf("UpsertPath failed: %v", err)
	}
	if err := store.DeletePath(1); err != nil {
		t.Fatalf("DeletePath failed: %v", err)
	}
	if _, err := store.GetPath(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPath after delete = %v, want ErrNotFound", err)
	}
	if err := store.DeletePath(1); err != nil {
		t.Errorf("second DeletePath = %v, want nil", err)
	}
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)

	for i := int64(1); i <= 3; i++ {
		if err := store.UpsertNode(berlin(i, nil)); err != nil {
			t.Fatalf("UpsertNode failed: %v", err)
		}
	}
	if err := store.UpsertPath(model.Path{ID: 1, Nodes: []int64{1, 2}}); err != nil {
		t.Fatalf("UpsertPath failed: %v", err)
	}

	if n, _ := store.NodeCount(); n != 3 {
		t.Errorf("NodeCount = %d, want 3", n)
	}
	if n, _ := store.PathCount(); n != 1 {
		t.Errorf("PathCount = %d, want 1", n)
	}

	ids, err := store.NodeIDs()
	if err != nil {
		t.Fatalf("NodeIDs failed: %v", err)
	}
	if ids.Cardinality() != 3 || !ids.Contains(2) {
		t.Errorf("NodeIDs wrong: cardinality %d", ids.Cardinality())
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.UpsertNode(berlin(1, model.Tags{1: 2})); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	id, err := store.Interner().Intern("highway")
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetNode(1); err != nil {
		t.Errorf("node lost across reopen: %v", err)
	}
	again, err := reopened.Interner().Intern("highway")
	if err != nil {
		t.Fatalf("Intern after reopen failed: %v", err)
	}
	if again != id {
		t.Errorf("interned id changed across reopen: %d -> %d", id, again)
	}
}

func TestInterner(t *testing.T) {
	store := newTestStore(t)
	in := store.Interner()

	a, err := in.Intern("highway")
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}
	if a == 0 {
		t.Fatal("id 0 assigned; zero is reserved")
	}
	b, _ := in.Intern("highway")
	if a != b {
		t.Errorf("same text interned to %d and %d", a, b)
	}
	c, _ := in.Intern("residential")
	if c == a {
		t.Error("distinct strings share an id")
	}

	text, err := in.Resolve(a)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if text != "highway" {
		t.Errorf("Resolve = %q, want %q", text, "highway")
	}
	if _, err := in.Resolve(999); err == nil {
		t.Error("resolving an unknown id succeeded")
	}
	if n, _ := in.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}
