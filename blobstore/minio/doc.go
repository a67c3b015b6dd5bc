// Package minio provides a MinIO-backed blobstore.BlobStore for deployments
// on self-hosted S3-compatible object storage.
package minio
