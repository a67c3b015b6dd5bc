package geostore

import (
	"context"
	"iter"

	"github.com/hupe1980/geostore/bolt"
	"github.com/hupe1980/geostore/idset"
	"github.com/hupe1980/geostore/model"
)

// embeddedBackend realizes the normalized profile on a bbolt database.
// Writes commit transactionally, so Flush only needs to sync the file when
// the database runs with NoSync.
type embeddedBackend struct {
	store *bolt.Store
}

// OpenEmbedded opens or creates a Geostore on the embedded transactional
// backend at the given database path. The string table is persisted inside
// the same database file.
func OpenEmbedded(path string, optFns ...Option) (*Geostore, error) {
	opts := applyOptions(optFns)

	store, err := bolt.Open(path, opts.boltOptions...)
	if err != nil {
		return nil, translateError(err)
	}

	return New(&embeddedBackend{store: store}, store.Interner(), optFns...), nil
}

func (b *embeddedBackend) UpsertNode(n model.Node) error { return b.store.UpsertNode(n) }

func (b *embeddedBackend) GetNode(id int64) (model.Node, error) { return b.store.GetNode(id) }

func (b *embeddedBackend) DeleteNode(id int64) error { return b.store.DeleteNode(id) }

func (b *embeddedBackend) ScanNodes(bounds *model.BoundingBox) iter.Seq2[model.Node, error] {
	return b.store.ScanNodes(bounds)
}

func (b *embeddedBackend) UpsertPath(p model.Path) error { return b.store.UpsertPath(p) }

func (b *embeddedBackend) GetPath(id int64) (model.Path, error) { return b.store.GetPath(id) }

func (b *embeddedBackend) DeletePath(id int64) error { return b.store.DeletePath(id) }

func (b *embeddedBackend) ScanPaths() iter.Seq2[model.Path, error] { return b.store.ScanPaths() }

func (b *embeddedBackend) NodeIDs() (*idset.Set, error) { return b.store.NodeIDs() }

func (b *embeddedBackend) Flush(ctx context.Context) error { return b.store.Sync() }

func (b *embeddedBackend) Close() error { return b.store.Close() }
