package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/wifi-provisioning-portal/interfaces"
)

// FileBackend implements a storage backend using the local file system.
// The region image is kept in a single file and replaced atomically.
type FileBackend struct {
	path        string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file storage backend for the image at path.
// It creates the parent directory if it doesn't exist.
func NewFileBackend(path string, log *slog.Logger) (*FileBackend, error) {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	// Format the URI for tracking
	uri := fmt.Sprintf("file://%s", path)

	return &FileBackend{
		path:        path,
		log:         log,
		locationURI: uri,
	}, nil
}

// Fetch reads the image from the file system.
// Returns ErrContentNotFound if the file doesn't exist.
func (b *FileBackend) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched image from file",
		slog.String("path", b.path),
		slog.Int("size", len(data)))

	return data, nil
}

// Store writes the image next to its final location and renames it into
// place, so a crash never leaves a half-written region behind.
func (b *FileBackend) Store(ctx context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("failed to replace image: %w", err)
	}

	b.log.Debug("Stored image in file",
		slog.String("path", b.path),
		slog.Int("size", len(data)))

	return nil
}

// Available checks if the file backend is accessible by verifying the image directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(filepath.Dir(b.path))
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.path))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}
