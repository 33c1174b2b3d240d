package blobstore

import (
	"context"
	"fmt"

	"github.com/localnerve/itsm-api/internal/config"
)

// New creates the blob store selected by STORAGE_TYPE.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageType {
	case "local", "":
		basePath := cfg.StorageLocalPath
		if basePath == "" {
			basePath = "attachment_storage"
		}
		return NewLocalStore(basePath)

	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:   cfg.StorageS3Bucket,
			Region:   cfg.StorageS3Region,
			Endpoint: cfg.StorageS3Endpoint,
		})
	}

	return nil, fmt.Errorf("unknown storage type: %s", cfg.StorageType)
}
