/*
Package storage writes retention archives to S3-compatible object storage.
*/
package storage

import (
	"context"
	"io"
)

// ServiceConfig holds the settings needed to reach the archive bucket.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// ArchiveStore accepts archive objects.
type ArchiveStore interface {
	// Upload writes body under key.
	Upload(ctx context.Context, key string, contentType string, body io.Reader) error
}

// NewArchiveStore returns the S3-backed ArchiveStore for cfg.
func NewArchiveStore(ctx context.Context, cfg ServiceConfig) (ArchiveStore, error) {
	return newS3Client(ctx, cfg)
}
