package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps blobs as files below a base directory.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	// Ensure base path exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStore{
		basePath: basePath,
	}, nil
}

// resolve maps key to a path, refusing keys that escape the base directory.
func (ls *LocalStore) resolve(key string) (string, error) {
	absBasePath, err := filepath.Abs(ls.basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	absFullPath, err := filepath.Abs(filepath.Join(ls.basePath, key))
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}

	if !strings.HasPrefix(absFullPath, absBasePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path: path traversal detected")
	}
	return absFullPath, nil
}

// Write stores data under key, replacing any previous blob.
func (ls *LocalStore) Write(ctx context.Context, key string, data []byte, contentType string) error {
	fullPath, err := ls.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		os.Remove(fullPath) // Cleanup on error
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Read returns the blob stored under key.
func (ls *LocalStore) Read(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := ls.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Delete removes the blob under key. Deleting a missing blob is not an error.
func (ls *LocalStore) Delete(ctx context.Context, key string) error {
	fullPath, err := ls.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether a blob is stored under key.
func (ls *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := ls.resolve(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ping checks that the base directory is still there.
func (ls *LocalStore) Ping(ctx context.Context) error {
	info, err := os.Stat(ls.basePath)
	if err != nil {
		return fmt.Errorf("storage directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", ls.basePath)
	}
	return nil
}
