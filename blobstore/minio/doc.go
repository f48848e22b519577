// Package minio implements blobstore.BlobStore for MinIO and other
// S3-compatible object stores using the native MinIO client.
//
// Use this package for self-hosted deployments; for AWS S3 itself,
// prefer the s3 package, which uses the official SDK and its managed
// multipart uploader.
package minio
