/*
Package storage is the blob-store collaborator. Message attachments live in
an S3-compatible bucket; this package only hands out presigned URLs and
deletes orphaned objects. Upload and download bytes never pass through
the chat service.
*/
package storage

import (
	"context"
	"time"
)

// PresignedURLDuration is how long a presigned upload or download URL
// stays valid.
const PresignedURLDuration = 5 * time.Minute

// ServiceConfig holds the settings required to reach the bucket.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// BlobService is the public interface for attachment blob operations.
type BlobService interface {
	// PresignUpload generates a presigned URL for uploading a blob.
	PresignUpload(ctx context.Context, key, mimeType string, fileSize int64, duration time.Duration) (string, error)

	// PresignDownload generates a presigned URL for downloading a blob.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the blob with the given key.
	Delete(ctx context.Context, key string) error
}

// NewBlobService builds the S3-backed implementation.
func NewBlobService(cfg ServiceConfig) (BlobService, error) {
	return newS3Client(cfg)
}
