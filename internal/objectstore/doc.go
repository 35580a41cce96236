// Package objectstore publishes compiled pipeline documents to object
// storage, either a MinIO/S3 bucket or a local directory.
package objectstore
