package services_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/config"
	"github.com/localnerve/itsm-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "health.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	dir := t.TempDir()
	blobs, err := blobstore.NewLocalStore(dir)
	require.NoError(t, err)
	cfg := &config.Config{DBType: "sqlite", DBDatabase: "health.db", StorageType: "local"}

	result := services.HealthCheck(ctx, cfg, db, blobs)
	assert.True(t, result.Healthy())
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "ok", result.BlobStore)
	assert.Equal(t, "sqlite", result.Details["database_type"])

	require.NoError(t, os.RemoveAll(dir))
	result = services.HealthCheck(ctx, cfg, db, blobs)
	assert.False(t, result.Healthy())
	assert.Equal(t, "unreachable", result.BlobStore)
	assert.Contains(t, result.ErrorMessage, "Blob store ping failed")
}

func TestHealthCheckUnreachableEndpoint(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "health.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{DBType: "sqlite", StorageType: "s3", StorageS3Endpoint: "http://127.0.0.1:1"}
	result := services.HealthCheck(ctx, cfg, db, blobs)
	assert.False(t, result.Healthy())
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "unreachable", result.BlobStore)
}
