// Package blobstore abstracts where sealed column blocks live.
//
// The analytical backend treats block persistence as an interchangeable
// concern: in-memory for tests, local files for single-machine deployments,
// S3 or MinIO for shared object storage. All implementations expose the same
// write-once semantics.
package blobstore
