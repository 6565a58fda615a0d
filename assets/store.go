package assets

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

//go:embed static
var embedded embed.FS

// ErrNotMounted is returned by Open before Mount or after Unmount.
var ErrNotMounted = errors.New("asset store not mounted")

// Store serves the portal's static files. The embedded defaults can be
// overridden file by file from a directory on disk.
type Store struct {
	mu      sync.RWMutex
	dir     string
	mounted *layeredFS
}

// NewStore creates a store. dir may be empty to serve only the defaults.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Mount makes the files readable. It fails when the override directory is
// configured but missing.
func (s *Store) Mount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults, err := fs.Sub(embedded, "static")
	if err != nil {
		return fmt.Errorf("failed to open embedded assets: %w", err)
	}

	layers := &layeredFS{}
	layers.add(defaults)

	if s.dir != "" {
		info, err := os.Stat(s.dir)
		if err != nil {
			return fmt.Errorf("failed to mount asset directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("failed to mount asset directory: %s is not a directory", s.dir)
		}
		layers.add(os.DirFS(s.dir))
	}

	s.mounted = layers
	return nil
}

// Unmount makes the files unreadable until the next Mount.
func (s *Store) Unmount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted = nil
	return nil
}

// Open implements fs.FS.
func (s *Store) Open(name string) (fs.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.mounted == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: ErrNotMounted}
	}
	return s.mounted.Open(name)
}
