package filestorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yigit/bursar/internal/pkg/logger"
)

// LocalStorage handles saving files to the local filesystem.
type LocalStorage struct {
	basePath string // The root directory where files will be stored
	baseURL  string // The base URL to access the stored files (optional, for generating full URLs)
}

var _ FileStorage = (*LocalStorage)(nil)

// NewLocalStorage creates a new LocalStorage instance.
// basePath is the required directory path on the server.
// baseURL is optional; if provided, it will be prepended to returned file paths.
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	// Ensure the base path exists
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		logger.Error().Err(err).Str("path", basePath).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	logger.Info().Str("path", basePath).Msg("Local storage directory ensured")

	return &LocalStorage{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

// resolve maps key to a path under basePath, rejecting keys that escape it
func (ls *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid file key: %q", key)
	}
	return filepath.Join(ls.basePath, clean), nil
}

// Save writes data under key, creating intermediate directories
func (ls *LocalStorage) Save(_ context.Context, key string, data []byte, contentType string) (*FileInfo, error) {
	dstPath, err := ls.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		logger.Error().Err(err).Str("path", dstPath).Msg("Failed to create subdirectory")
		return nil, fmt.Errorf("failed to create subdirectory: %w", err)
	}

	// Write to a temp file first so readers never see a partial statement
	tmp := dstPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logger.Error().Err(err).Str("path", tmp).Msg("Failed to write file content")
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to save file content: %w", err)
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	logger.Info().Str("key", key).Int("size", len(data)).Msg("File saved successfully")
	return &FileInfo{
		Key:         key,
		URL:         ls.accessiblePath(key),
		FileSize:    int64(len(data)),
		ContentType: contentType,
	}, nil
}

// Delete removes a file from the storage filesystem.
// Returns nil if deletion is successful or if the file doesn't exist.
func (ls *LocalStorage) Delete(_ context.Context, key string) error {
	physicalPath, err := ls.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(physicalPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", physicalPath).Msg("File to delete does not exist")
			return nil
		}
		logger.Error().Err(err).Str("path", physicalPath).Msg("Failed to delete file")
		return fmt.Errorf("failed to delete file: %w", err)
	}

	logger.Info().Str("path", physicalPath).Msg("File deleted successfully")
	return nil
}

// URL returns the accessible path of key. Local files do not expire.
func (ls *LocalStorage) URL(_ context.Context, key string, _ time.Duration) (string, time.Time, error) {
	physicalPath, err := ls.resolve(key)
	if err != nil {
		return "", time.Time{}, err
	}
	if _, err := os.Stat(physicalPath); err != nil {
		return "", time.Time{}, fmt.Errorf("stat %q failed: %w", key, err)
	}
	return ls.accessiblePath(key), time.Time{}, nil
}

func (ls *LocalStorage) accessiblePath(key string) string {
	key = strings.TrimLeft(filepath.ToSlash(key), "/")
	if ls.baseURL != "" {
		// Make sure we don't have double slashes
		return strings.TrimRight(ls.baseURL, "/") + "/" + key
	}
	return filepath.Join(ls.basePath, key)
}
