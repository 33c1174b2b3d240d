package config_test

import (
	"testing"

	"github.com/localnerve/itsm-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DATABASE", "itsm.db")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 5, cfg.DBConnectionLimit)
	assert.Equal(t, "local", cfg.StorageType)
	assert.Equal(t, "attachment_storage", cfg.StorageLocalPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DATABASE", "itsm")
	t.Setenv("DB_TYPE", "Postgres")
	t.Setenv("DB_CONNECTION_LIMIT", "12")
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("STORAGE_S3_BUCKET", "attachments")
	t.Setenv("STORAGE_S3_REGION", "us-east-1")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, 12, cfg.DBConnectionLimit)
	assert.Equal(t, "s3", cfg.StorageType)
	assert.Equal(t, "attachments", cfg.StorageS3Bucket)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "missing database", env: map[string]string{"DB_DATABASE": ""}, want: "DB_DATABASE is required"},
		{name: "bad db type", env: map[string]string{"DB_DATABASE": "x", "DB_TYPE": "oracle"}, want: "unsupported DB_TYPE: oracle"},
		{name: "bad storage type", env: map[string]string{"DB_DATABASE": "x", "STORAGE_TYPE": "ftp"}, want: "unsupported STORAGE_TYPE: ftp"},
		{name: "s3 without bucket", env: map[string]string{"DB_DATABASE": "x", "STORAGE_TYPE": "s3", "STORAGE_S3_BUCKET": ""}, want: "STORAGE_S3_BUCKET is required for s3 storage"},
		{name: "s3 without region", env: map[string]string{"DB_DATABASE": "x", "STORAGE_TYPE": "s3", "STORAGE_S3_BUCKET": "b", "STORAGE_S3_REGION": ""}, want: "STORAGE_S3_REGION is required for s3 storage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.EqualError(t, err, tt.want)
		})
	}
}
