package geostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/hupe1980/geostore/blobstore"
	"github.com/hupe1980/geostore/engine"
	"github.com/hupe1980/geostore/idset"
	"github.com/hupe1980/geostore/layout"
	"github.com/hupe1980/geostore/model"
	"github.com/hupe1980/geostore/strtable"
)

const stringTableBlob = "strings/table"

// analyticalBackend realizes the analytical columnar profile on the engine
// tables. The string table lives in memory and is persisted alongside the
// sealed blocks on Flush.
type analyticalBackend struct {
	nodes *engine.NodeTable
	paths *engine.PathTable
	table *strtable.MemoryTable
	store blobstore.BlobStore
}

// NewAnalytical creates a Geostore on the analytical columnar backend. With
// a blobstore configured, previously flushed state is loaded before the
// store accepts writes.
func NewAnalytical(ctx context.Context, optFns ...Option) (*Geostore, error) {
	opts := applyOptions(optFns)

	var tableOpts []strtable.Option
	if opts.maxDictionarySize > 0 {
		tableOpts = append(tableOpts, strtable.WithMaxEntries(opts.maxDictionarySize))
	}
	table := strtable.NewMemoryTable(tableOpts...)

	engineOpts := []engine.Option{
		engine.WithLogger(opts.logger.Logger),
	}
	if opts.blobStore != nil {
		engineOpts = append(engineOpts, engine.WithBlobStore(opts.blobStore))
	}

	profile := layout.Analytical()
	nodes, err := engine.NewNodeTable(profile, engineOpts...)
	if err != nil {
		return nil, translateError(err)
	}
	paths, err := engine.NewPathTable(profile, engineOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	backend := &analyticalBackend{
		nodes: nodes,
		paths: paths,
		table: table,
		store: opts.blobStore,
	}

	if opts.blobStore != nil {
		if err := backend.load(ctx); err != nil {
			return nil, translateError(err)
		}
	}

	g := New(backend, table, optFns...)

	if opts.reconcileInterval > 0 {
		recOpts := []engine.ReconcilerOption{
			engine.WithInterval(opts.reconcileInterval),
			engine.WithReconcilerLogger(opts.logger.Logger),
		}
		if opts.mergesPerSecond > 0 {
			recOpts = append(recOpts, engine.WithMergeRate(opts.mergesPerSecond))
		}
		rec := engine.NewReconciler(nodes, paths, recOpts...)
		rec.Start()
		g.closers = append(g.closers, func() error {
			rec.Stop()
			return nil
		})
	}

	return g, nil
}

func (b *analyticalBackend) load(ctx context.Context) error {
	data, err := b.store.Fetch(ctx, stringTableBlob)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		// Fresh store, nothing to restore.
	case err != nil:
		return fmt.Errorf("fetch string table: %w", err)
	default:
		if err := b.table.Load(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("load string table: %w", err)
		}
	}

	if err := b.nodes.Load(ctx); err != nil {
		return err
	}
	return b.paths.Load(ctx)
}

func (b *analyticalBackend) UpsertNode(n model.Node) error { return b.nodes.Upsert(n) }

func (b *analyticalBackend) GetNode(id int64) (model.Node, error) { return b.nodes.Get(id) }

func (b *analyticalBackend) DeleteNode(id int64) error { return b.nodes.Delete(id) }

func (b *analyticalBackend) ScanNodes(bounds *model.BoundingBox) iter.Seq2[model.Node, error] {
	return b.nodes.Scan(engine.ScanOptions{Bounds: bounds})
}

func (b *analyticalBackend) UpsertPath(p model.Path) error { return b.paths.Upsert(p) }

func (b *analyticalBackend) GetPath(id int64) (model.Path, error) { return b.paths.Get(id) }

func (b *analyticalBackend) DeletePath(id int64) error { return b.paths.Delete(id) }

func (b *analyticalBackend) ScanPaths() iter.Seq2[model.Path, error] { return b.paths.Scan() }

func (b *analyticalBackend) NodeIDs() (*idset.Set, error) { return b.nodes.IDs(), nil }

// Flush reconciles every partition and persists the string table. After
// Flush returns, all previously accepted writes survive a restart.
func (b *analyticalBackend) Flush(ctx context.Context) error {
	if err := b.nodes.ReconcileAll(ctx); err != nil {
		return err
	}
	if err := b.paths.Reconcile(ctx); err != nil {
		return err
	}
	if b.store == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := b.table.Save(&buf); err != nil {
		return fmt.Errorf("save string table: %w", err)
	}
	if err := b.store.Put(ctx, stringTableBlob, buf.Bytes()); err != nil {
		return fmt.Errorf("persist string table: %w", err)
	}
	return nil
}

func (b *analyticalBackend) Close() error {
	if err := b.nodes.Close(); err != nil {
		return err
	}
	return b.paths.Close()
}
