// Package s3 implements blobstore.BlobStore on Amazon S3.
//
// Reads use ranged GetObject requests so partial loads of large
// snapshots avoid fetching the full object. Writes go through the
// SDK's upload manager, which switches to multipart uploads for
// large snapshots automatically.
package s3
