package devcontainers

import (
	"context"
	"testing"
	"time"

	"github.com/localnerve/itsm-api/data"
	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/config"
	"github.com/localnerve/itsm-api/internal/database"
	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Run("mariadb defaults", func(t *testing.T) {
		t.Setenv("DB_TYPE", "")
		t.Setenv("DB_IMAGE", "")
		t.Setenv("DB_PORT", "")
		t.Setenv("STORAGE_TYPE", "local")

		opts := OptionsFromEnv()
		assert.Equal(t, "mariadb", opts.DBType)
		assert.Equal(t, "mariadb:11", opts.DBImage)
		assert.Equal(t, "3306", opts.DBPort)
		assert.True(t, opts.Tmpfs)
		assert.False(t, opts.MinIO)
	})

	t.Run("postgres with minio", func(t *testing.T) {
		t.Setenv("DB_TYPE", "postgres")
		t.Setenv("DB_IMAGE", "")
		t.Setenv("DB_PORT", "")
		t.Setenv("DB_TMPFS", "false")
		t.Setenv("STORAGE_TYPE", "s3")
		t.Setenv("STORAGE_S3_BUCKET", "tickets")

		opts := OptionsFromEnv()
		assert.Equal(t, "postgres:16-alpine", opts.DBImage)
		assert.Equal(t, "5432", opts.DBPort)
		assert.False(t, opts.Tmpfs)
		assert.True(t, opts.MinIO)
		assert.Equal(t, "tickets", opts.S3Bucket)
	})
}

func TestDBInitEnv(t *testing.T) {
	opts := Options{DBDatabase: "itsm", DBUser: "app", DBPassword: "secret", DBRootPassword: "root"}

	opts.DBType = "mariadb"
	env := dbInitEnv(opts)
	assert.Equal(t, "root", env["MYSQL_ROOT_PASSWORD"])
	assert.Equal(t, "itsm", env["MYSQL_DATABASE"])
	assert.Equal(t, "app", env["MYSQL_USER"])

	opts.DBType = "postgresql"
	env = dbInitEnv(opts)
	assert.Equal(t, "itsm", env["POSTGRES_DB"])
	assert.Equal(t, "secret", env["POSTGRES_PASSWORD"])
	assert.NotContains(t, env, "MYSQL_ROOT_PASSWORD")
}

func TestConfigAndEnv(t *testing.T) {
	cs := &Containers{
		opts:   Options{DBType: "mariadb", DBDatabase: "itsm", DBUser: "app", DBPassword: "secret"},
		dbHost: "localhost",
		dbPort: "32768",
	}

	cfg := cs.Config(config.Config{Port: "8080", StorageType: "local", StorageLocalPath: "/tmp/x"})
	assert.Equal(t, "mariadb", cfg.DBType)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "32768", cfg.DBPort)
	assert.Equal(t, 5, cfg.DBConnectionLimit)
	assert.Equal(t, "local", cfg.StorageType)
	assert.Equal(t, "8080", cfg.Port)

	env := cs.Env()
	assert.Equal(t, "32768", env["DB_PORT"])
	assert.NotContains(t, env, "STORAGE_S3_ENDPOINT")
}

func TestSeedOnContainers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	opts := OptionsFromEnv()
	opts.MinIO = false
	cs, err := Start(ctx, opts, t.Logf)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, cs.Terminate(context.Background()))
	})

	cfg := cs.Config(config.Config{LogLevel: "warn", StorageType: "local", StorageLocalPath: t.TempDir()})
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.AutoMigrate(db))

	blobs, err := blobstore.New(ctx, cfg)
	require.NoError(t, err)

	fixture, err := resources.ParseFixture(data.Fixture)
	require.NoError(t, err)

	svc := resources.NewService(docstore.New(db), blobs)
	seeded, err := svc.SeedIfEmpty(ctx, fixture)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = svc.SeedIfEmpty(ctx, fixture)
	require.NoError(t, err)
	assert.False(t, seeded)

	tickets, err := docstore.New(db).Table("tickets").Search(ctx,
		docstore.Where("status").Equals(resources.StatusOpen))
	require.NoError(t, err)
	assert.NotEmpty(t, tickets)
}
