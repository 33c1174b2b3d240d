package blobstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentKey(t *testing.T) {
	assert.Equal(t, "1/3__test.txt", blobstore.AttachmentKey(1, 3, "test.txt"))
	assert.Equal(t, "2/4____etc_passwd", blobstore.AttachmentKey(2, 4, "../etc/passwd"))
	assert.Equal(t, "2/5__a_b", blobstore.AttachmentKey(2, 5, "a\\b"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "attachments")
	store, err := blobstore.NewLocalStore(base)
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))

	key := blobstore.AttachmentKey(1, 1, "test.txt")
	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Read(ctx, key)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, store.Write(ctx, key, []byte("hello"), "text/plain"))
	data, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = os.Stat(filepath.Join(base, "1", "1__test.txt"))
	assert.NoError(t, err)

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))
	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Write(ctx, "../outside.txt", []byte("x"), "text/plain"))
	_, err = store.Read(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, blobstore.ErrNotFound)
}

func TestLocalStorePingMissingDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "gone")
	store, err := blobstore.NewLocalStore(base)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(base))
	assert.Error(t, store.Ping(context.Background()))
}

func TestFactory(t *testing.T) {
	ctx := context.Background()

	store, err := blobstore.New(ctx, &config.Config{StorageType: "local", StorageLocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, store)

	store, err = blobstore.New(ctx, &config.Config{
		StorageType: "s3", StorageS3Bucket: "attachments", StorageS3Region: "us-east-1",
		StorageS3Endpoint: "http://localhost:9000",
	})
	require.NoError(t, err)
	assert.IsType(t, &blobstore.S3Store{}, store)

	_, err = blobstore.New(ctx, &config.Config{StorageType: "ftp"})
	assert.EqualError(t, err, "unknown storage type: ftp")
}
