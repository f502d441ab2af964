// Package storage archives completed metadata files to remote object
// storage. Archival is optional; a nil Service disables it.
package storage

import (
	"context"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// UploadOptions conveys the archive destination.
type UploadOptions struct {
	Bucket    string
	KeyPrefix string
}

// Service copies downloaded files to remote object storage.
type Service interface {
	UploadFile(ctx context.Context, localPath string, opts UploadOptions) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, bucket, prefix string) error
}
