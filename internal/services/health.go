package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/config"
	"github.com/localnerve/itsm-api/internal/utils"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	BlobStore    string            `json:"blobStore"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// Healthy reports whether every dependency answered.
func (r HealthCheckResult) Healthy() bool {
	return r.Status == "healthy"
}

func (r *HealthCheckResult) fail(message string) {
	r.Status = "unhealthy"
	if r.ErrorMessage == "" {
		r.ErrorMessage = message
	} else {
		r.ErrorMessage += "; " + message
	}
}

// HealthCheck checks the document database and the attachment blob store
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, blobs blobstore.Store) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.fail(fmt.Sprintf("Database connection error: %v", err))
		slog.WarnContext(ctx, "health check failed - database connection", "error", err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Database = "unreachable"
		result.Details["database_ping_error"] = err.Error()
		result.fail(fmt.Sprintf("Database ping failed: %v", err))
		slog.WarnContext(ctx, "health check failed - database ping", "error", err)
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	// Check blob store, the endpoint first so an unreachable host fails fast
	result.Details["storage_type"] = cfg.StorageType
	if cfg.StorageType == "s3" && cfg.StorageS3Endpoint != "" {
		if err := utils.PingService(cfg.StorageS3Endpoint, 1500*time.Millisecond); err != nil {
			result.BlobStore = "unreachable"
			result.Details["blob_store_error"] = err.Error()
			result.fail(fmt.Sprintf("Blob store ping failed: %v", err))
			slog.WarnContext(ctx, "health check failed - blob store endpoint", "error", err)
			return result
		}
	}
	if err := blobs.Ping(ctx); err != nil {
		result.BlobStore = "unreachable"
		result.Details["blob_store_error"] = err.Error()
		result.fail(fmt.Sprintf("Blob store ping failed: %v", err))
		slog.WarnContext(ctx, "health check failed - blob store", "error", err)
	} else {
		result.BlobStore = "ok"
	}

	if result.Healthy() {
		slog.DebugContext(ctx, "health check passed - all systems operational")
	}

	return result
}
