package geostore

import (
	"context"
	"iter"

	"github.com/hupe1980/geostore/idset"
	"github.com/hupe1980/geostore/model"
	"github.com/hupe1980/geostore/strtable"
	"github.com/hupe1980/geostore/tagcodec"
)

// Backend is the storage engine behind a Geostore. Two implementations
// exist: the analytical columnar engine and the embedded bbolt store. Both
// must converge on identical logical contents for the same operations.
type Backend interface {
	UpsertNode(n model.Node) error
	GetNode(id int64) (model.Node, error)
	DeleteNode(id int64) error
	ScanNodes(bounds *model.BoundingBox) iter.Seq2[model.Node, error]

	UpsertPath(p model.Path) error
	GetPath(id int64) (model.Path, error)
	DeletePath(id int64) error
	ScanPaths() iter.Seq2[model.Path, error]

	// NodeIDs returns the set of live node ids, used by integrity checks.
	NodeIDs() (*idset.Set, error)

	// Flush makes all accepted writes durable.
	Flush(ctx context.Context) error

	Close() error
}

// NodeRecord is a point entity with raw text tags, the unit of the public
// API. Coordinates are decimicro-degrees.
type NodeRecord struct {
	ID    int64
	Coord model.GeoCoord
	Tags  map[string]string
}

// PathRecord is an ordered sequence of node references with raw text tags.
// The node order is semantic and preserved exactly.
type PathRecord struct {
	ID    int64
	Nodes []int64
	Tags  map[string]string
}

// Geostore stores nodes and paths with interned tags on a pluggable backend.
type Geostore struct {
	backend   Backend
	table     strtable.Interner
	tags      *tagcodec.Codec
	logger    *Logger
	bulkLimit int
	closers   []func() error
}

// New creates a Geostore over an explicit backend and string table. Most
// callers use NewAnalytical or OpenEmbedded instead.
func New(backend Backend, table strtable.Interner, optFns ...Option) *Geostore {
	opts := applyOptions(optFns)
	return &Geostore{
		backend:   backend,
		table:     table,
		tags:      tagcodec.New(table),
		logger:    opts.logger,
		bulkLimit: opts.bulkConcurrency,
	}
}

// UpsertNode validates the coordinate, interns the tags and writes the node.
// An existing node with the same id is replaced whole, including its derived
// spatial cells.
func (g *Geostore) UpsertNode(ctx context.Context, rec NodeRecord) error {
	err := g.upsertNode(rec)
	g.logger.LogUpsertNode(ctx, rec.ID, err)
	return err
}

func (g *Geostore) upsertNode(rec NodeRecord) error {
	if err := rec.Coord.Validate(); err != nil {
		return translateError(err)
	}
	tags, err := g.tags.Encode(rec.Tags)
	if err != nil {
		return translateError(err)
	}
	return translateError(g.backend.UpsertNode(model.NewNode(rec.ID, rec.Coord, tags)))
}

// GetNode returns the node with the given id, tags resolved back to text.
func (g *Geostore) GetNode(ctx context.Context, id int64) (NodeRecord, error) {
	n, err := g.backend.GetNode(id)
	if err != nil {
		return NodeRecord{}, translateError(err)
	}
	tags, err := g.decodeTags(n.Tags)
	if err != nil {
		return NodeRecord{}, err
	}
	return NodeRecord{ID: n.ID, Coord: n.Coord(), Tags: tags}, nil
}

// DeleteNode removes the node with the given id. Deleting an absent id is a
// no-op. Paths referencing the node are not touched; see VerifyIntegrity.
func (g *Geostore) DeleteNode(ctx context.Context, id int64) error {
	err := translateError(g.backend.DeleteNode(id))
	g.logger.LogDelete(ctx, "node", id, err)
	return err
}

// ScanNodes yields nodes in spatial cell order. With bounds set, only
// partitions intersecting the box are read.
func (g *Geostore) ScanNodes(ctx context.Context, bounds *model.BoundingBox) iter.Seq2[NodeRecord, error] {
	return func(yield func(NodeRecord, error) bool) {
		for n, err := range g.backend.ScanNodes(bounds) {
			if err != nil {
				yield(NodeRecord{}, translateError(err))
				return
			}
			if ctx.Err() != nil {
				yield(NodeRecord{}, ctx.Err())
				return
			}
			tags, err := g.decodeTags(n.Tags)
			if err != nil {
				yield(NodeRecord{}, err)
				return
			}
			if !yield(NodeRecord{ID: n.ID, Coord: n.Coord(), Tags: tags}, nil) {
				return
			}
		}
	}
}

// UpsertPath interns the tags and writes the path. An existing path with the
// same id is replaced whole: the new node sequence displaces the old one in
// order. Node references are not validated against the node table.
func (g *Geostore) UpsertPath(ctx context.Context, rec PathRecord) error {
	err := g.upsertPath(rec)
	g.logger.LogUpsertPath(ctx, rec.ID, len(rec.Nodes), err)
	return err
}

func (g *Geostore) upsertPath(rec PathRecord) error {
	tags, err := g.tags.Encode(rec.Tags)
	if err != nil {
		return translateError(err)
	}
	return translateError(g.backend.UpsertPath(model.Path{ID: rec.ID, Nodes: rec.Nodes, Tags: tags}))
}

// GetPath returns the path with the given id, node references in stored
// order and tags resolved back to text.
func (g *Geostore) GetPath(ctx context.Context, id int64) (PathRecord, error) {
	p, err := g.backend.GetPath(id)
	if err != nil {
		return PathRecord{}, translateError(err)
	}
	tags, err := g.decodeTags(p.Tags)
	if err != nil {
		return PathRecord{}, err
	}
	return PathRecord{ID: p.ID, Nodes: p.Nodes, Tags: tags}, nil
}

// DeletePath removes the path with the given id. Deleting an absent id is a
// no-op.
func (g *Geostore) DeletePath(ctx context.Context, id int64) error {
	err := translateError(g.backend.DeletePath(id))
	g.logger.LogDelete(ctx, "path", id, err)
	return err
}

// ScanPaths yields paths ordered by id.
func (g *Geostore) ScanPaths(ctx context.Context) iter.Seq2[PathRecord, error] {
	return func(yield func(PathRecord, error) bool) {
		for p, err := range g.backend.ScanPaths() {
			if err != nil {
				yield(PathRecord{}, translateError(err))
				return
			}
			if ctx.Err() != nil {
				yield(PathRecord{}, ctx.Err())
				return
			}
			tags, err := g.decodeTags(p.Tags)
			if err != nil {
				yield(PathRecord{}, err)
				return
			}
			if !yield(PathRecord{ID: p.ID, Nodes: p.Nodes, Tags: tags}, nil) {
				return
			}
		}
	}
}

// Intern returns the stable id for a tag string, assigning one on first
// sight. Exposed for callers that index interned ids directly.
func (g *Geostore) Intern(text string) (uint64, error) {
	id, err := g.table.Intern(text)
	return id, translateError(err)
}

// ResolveString returns the text for a previously assigned string id.
func (g *Geostore) ResolveString(id uint64) (string, error) {
	text, err := g.table.Resolve(id)
	return text, translateError(err)
}

// Flush makes all accepted writes durable.
func (g *Geostore) Flush(ctx context.Context) error {
	err := translateError(g.backend.Flush(ctx))
	g.logger.LogFlush(ctx, err)
	return err
}

// Close flushes nothing; call Flush first if durability matters.
func (g *Geostore) Close() error {
	var firstErr error
	for _, fn := range g.closers {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := g.backend.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return translateError(firstErr)
}

func (g *Geostore) decodeTags(tags model.Tags) (map[string]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	out, err := g.tags.Decode(tags)
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}
