package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/wifi-provisioning-portal/interfaces"
)

// DefaultRegionSize matches the emulated EEPROM size of common WiFi
// microcontrollers.
const DefaultRegionSize = 4096

var (
	// ErrOutOfRange is returned for accesses that do not fit in the region.
	ErrOutOfRange = errors.New("access outside of non-volatile region")

	// ErrNotBegun is returned when the region is used before Begin.
	ErrNotBegun = errors.New("non-volatile region not loaded")
)

// EEPROM implements interfaces.NVStore on top of a StorageBackend.
// The image lives in memory between Begin and Commit.
type EEPROM struct {
	mu      sync.Mutex
	backend interfaces.StorageBackend
	image   []byte
	begun   bool
	dirty   bool
	log     *slog.Logger
}

// NewEEPROM creates a region of size bytes persisted through backend.
func NewEEPROM(backend interfaces.StorageBackend, size int, log *slog.Logger) *EEPROM {
	if size <= 0 {
		size = DefaultRegionSize
	}
	return &EEPROM{
		backend: backend,
		image:   make([]byte, size),
		log:     log,
	}
}

// Begin loads the image from the backend. A backend that was never written
// to yields a zeroed region. A stored image of another size is truncated or
// zero-extended.
func (e *EEPROM) Begin(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.begun {
		return nil
	}

	data, err := e.backend.Fetch(ctx)
	switch {
	case errors.Is(err, interfaces.ErrContentNotFound):
		e.log.Info("Non-volatile region is blank", "backend", e.backend.Name(), "size", len(e.image))
	case err != nil:
		return fmt.Errorf("failed to load non-volatile region: %w", err)
	default:
		if len(data) != len(e.image) {
			e.log.Warn("Non-volatile image size mismatch",
				"backend", e.backend.Name(),
				"stored", len(data),
				"size", len(e.image))
		}
		copy(e.image, data)
	}

	e.begun = true
	return nil
}

// ReadAt copies len(p) bytes at off out of the image.
func (e *EEPROM) ReadAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.check(len(p), off); err != nil {
		return 0, err
	}
	return copy(p, e.image[off:]), nil
}

// WriteAt copies p into the image at off. Nothing is persisted until Commit.
func (e *EEPROM) WriteAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.check(len(p), off); err != nil {
		return 0, err
	}
	e.dirty = true
	return copy(e.image[off:], p), nil
}

// Commit persists the image if it changed since the last commit.
func (e *EEPROM) Commit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.begun {
		return ErrNotBegun
	}
	if !e.dirty {
		return nil
	}

	if err := e.backend.Store(ctx, append([]byte(nil), e.image...)); err != nil {
		return fmt.Errorf("failed to commit non-volatile region: %w", err)
	}
	e.dirty = false

	e.log.Debug("Committed non-volatile region", "backend", e.backend.Name())
	return nil
}

// Size returns the region size in bytes.
func (e *EEPROM) Size() int64 {
	return int64(len(e.image))
}

func (e *EEPROM) check(n int, off int64) error {
	if !e.begun {
		return ErrNotBegun
	}
	size := int64(len(e.image))
	if off < 0 || off > size || int64(n) > size-off {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfRange, off, n, len(e.image))
	}
	return nil
}
