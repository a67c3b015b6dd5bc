// Package s3 provides an S3-backed blobstore.BlobStore for sealed column
// blocks, suitable for sharing reconciled partitions between readers.
package s3
