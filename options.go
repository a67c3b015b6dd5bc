package geostore

import (
	"log/slog"
	"time"

	"github.com/hupe1980/geostore/blobstore"
	"github.com/hupe1980/geostore/bolt"
)

type options struct {
	logger            *Logger
	blobStore         blobstore.BlobStore
	reconcileInterval time.Duration
	mergesPerSecond   float64
	bulkConcurrency   int
	maxDictionarySize uint64
	boltOptions       []bolt.Option
}

// Option configures constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface with
// backend-specific constructor variants.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithBlobStore persists the analytical backend's sealed blocks and string
// table to the given store. Without it the analytical backend is in-memory
// only. Ignored by the embedded backend, which persists through its own
// database file.
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobStore = store
	}
}

// WithAutoReconcile starts a background reconciler that merges write buffers
// into sealed blocks at the given interval. Analytical backend only.
func WithAutoReconcile(interval time.Duration) Option {
	return func(o *options) {
		o.reconcileInterval = interval
	}
}

// WithMergeRate caps background partition merges per second. Zero means
// unlimited. Only meaningful together with WithAutoReconcile.
func WithMergeRate(perSecond float64) Option {
	return func(o *options) {
		o.mergesPerSecond = perSecond
	}
}

// WithBulkConcurrency bounds how many records BulkLoad processes in
// parallel. Non-positive falls back to GOMAXPROCS.
func WithBulkConcurrency(n int) Option {
	return func(o *options) {
		o.bulkConcurrency = n
	}
}

// WithMaxDictionarySize bounds the number of distinct tag strings the
// analytical backend's in-memory string table accepts. Zero means unbounded.
func WithMaxDictionarySize(n uint64) Option {
	return func(o *options) {
		o.maxDictionarySize = n
	}
}

// WithBoltOptions passes options through to the embedded backend's database.
func WithBoltOptions(optFns ...bolt.Option) Option {
	return func(o *options) {
		o.boltOptions = append(o.boltOptions, optFns...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
