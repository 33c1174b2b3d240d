// Package blobstore keeps attachment payloads outside the document store.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no blob exists under a key.
var ErrNotFound = errors.New("blob not found")

// Store reads and writes byte blobs by key.
type Store interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// AttachmentKey is the blob key of an attachment payload:
// <ticket id>/<attachment id>__<filename>.
func AttachmentKey(ticketID, attachmentID int64, filename string) string {
	return fmt.Sprintf("%d/%d__%s", ticketID, attachmentID, sanitizeFilename(filename))
}

func sanitizeFilename(filename string) string {
	// Remove path separators and other dangerous characters
	return strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	).Replace(filename)
}
