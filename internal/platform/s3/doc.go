// Package s3 provides an object client for AWS S3 and S3-compatible storage
// such as Hetzner Object Storage. It backs the s3 certificate store.
package s3
