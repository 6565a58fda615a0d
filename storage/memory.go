package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ruteri/wifi-provisioning-portal/interfaces"
)

// MemoryBackend keeps the image in process memory. It backs the simulated
// device and tests.
type MemoryBackend struct {
	mu   sync.Mutex
	name string
	data []byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(name string) *MemoryBackend {
	return &MemoryBackend{name: name}
}

func (b *MemoryBackend) Fetch(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return nil, interfaces.ErrContentNotFound
	}
	return append([]byte(nil), b.data...), nil
}

func (b *MemoryBackend) Store(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(make([]byte, 0, len(data)), data...)
	return nil
}

func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

func (b *MemoryBackend) Name() string {
	return fmt.Sprintf("mem-%s", b.name)
}

func (b *MemoryBackend) LocationURI() string {
	return "mem://" + b.name
}
