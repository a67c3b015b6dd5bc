// Package engine implements the analytical columnar backend.
//
// # Layout
//
// Node records are partitioned by their coarse spatial cell and clustered by
// (fine cell, id) inside each partition; path records form a single table
// ordered by id. Each partition holds:
//
//   - a memtable of sequence-stamped upserts (the write path never blocks on
//     other partitions)
//   - at most one sealed, immutable columnar block, encoded per the layout
//     profile's per-column codecs and compressed
//
// # Duplicate resolution
//
// Upserts are stamped with a monotonic sequence number. Until a reconcile
// pass runs, a superseded record may still exist physically inside a sealed
// block; readers filter by recency, and Reconcile merges memtable and block
// into a single deduplicated, re-sorted, re-encoded block. The merge is
// last-write-wins, commutative and idempotent, so reconciliation can run
// lazily, in any order, and concurrently across partitions.
//
// # Persistence
//
// With a blobstore configured, sealed blocks are persisted one blob per
// partition generation and can be reloaded with Load. Blocks are
// self-describing: column names, codec names and the compression scheme are
// recorded in the block header.
package engine
