package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/config"
	"github.com/localnerve/itsm-api/internal/handlers"
	"github.com/localnerve/itsm-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestHealthCheck(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "health.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	app := fiber.New()
	h := &handlers.HealthHandler{
		Config: &config.Config{DBType: "sqlite", StorageType: "local"},
		DB:     db,
		Blobs:  blobs,
	}
	app.Get("/health", h.Check)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var result services.HealthCheckResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "healthy", result.Status)
	assert.Equal(t, "ok", result.BlobStore)
}
