package filestorage

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by callers when no storage backend is wired
var ErrNotConfigured = errors.New("file storage is not configured")

// ContentTypeXLSX is the MIME type of generated statements
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FileInfo represents information about a stored file
type FileInfo struct {
	Key         string    // Key relative to the storage root
	URL         string    // Location a client can fetch the file from
	FileSize    int64     // Size in bytes
	ContentType string    // MIME type of the file
	ExpiresAt   time.Time // Zero when the URL does not expire
}

// FileStorage defines the interface for file storage operations
type FileStorage interface {
	// Save stores data under key and returns where it was stored
	Save(ctx context.Context, key string, data []byte, contentType string) (*FileInfo, error)

	// Delete removes a file. Missing files are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a location valid for at least ttl
	URL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}
