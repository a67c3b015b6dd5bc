package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore persists sealed column blocks. Blocks are immutable: a name is
// written once by a reconcile pass and replaced only by a newer generation
// under a different name, so stores never need append or in-place update.
type BlobStore interface {
	// Put writes a blob atomically under the given name.
	Put(ctx context.Context, name string, data []byte) error

	// Fetch reads a whole blob. Returns ErrNotFound if it does not exist.
	Fetch(ctx context.Context, name string) ([]byte, error)

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}
