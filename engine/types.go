package engine

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/geostore/blobstore"
	"github.com/hupe1980/geostore/model"
)

// ScanOptions restricts a table scan.
type ScanOptions struct {
	// Bounds limits a node scan to a bounding box. Partitions whose coarse
	// cell falls outside the box cover are pruned without being read.
	Bounds *model.BoundingBox
}

// Options configures a table.
type Options struct {
	// BlobStore persists sealed blocks. Nil keeps blocks in memory only.
	BlobStore blobstore.BlobStore

	// Logger receives reconcile and load events. Nil disables logging.
	Logger *slog.Logger

	// ReconcileConcurrency bounds how many partitions merge in parallel.
	ReconcileConcurrency int
}

// DefaultOptions returns the default table options.
func DefaultOptions() Options {
	return Options{
		ReconcileConcurrency: runtime.GOMAXPROCS(0),
	}
}

// Option mutates Options.
type Option func(*Options)

// WithBlobStore persists sealed blocks to the given store.
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *Options) {
		o.BlobStore = store
	}
}

// WithLogger sets the logger for background activity.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithReconcileConcurrency bounds concurrent partition merges.
func WithReconcileConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.ReconcileConcurrency = n
		}
	}
}

type versionedNode struct {
	node model.Node
	seq  uint64
}

type versionedPath struct {
	path model.Path
	seq  uint64
}
