package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/wifi-provisioning-portal/interfaces"
)

// Store loads and saves a Record at a byte offset of a non-volatile region.
type Store struct {
	mu     sync.Mutex
	nv     interfaces.NVStore
	offset int64
	log    *slog.Logger
}

// NewStore creates a Store at offset 0 of nv.
func NewStore(nv interfaces.NVStore, log *slog.Logger) *Store {
	return &Store{nv: nv, log: log}
}

// SetOffset changes where the record lives. Data at the old offset is not moved.
func (s *Store) SetOffset(offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
}

// Offset returns the configured offset.
func (s *Store) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Load reads the record. A corrupt record is logged and loads as empty.
func (s *Store) Load(ctx context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("Loading credentials", "offset", s.offset)

	if err := s.nv.Begin(ctx); err != nil {
		return Record{}, err
	}

	buf := make([]byte, RecordSize)
	if _, err := s.nv.ReadAt(buf, s.offset); err != nil {
		return Record{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	var rec Record
	if err := rec.UnmarshalBinary(buf); err != nil {
		if errors.Is(err, ErrCorruptRecord) {
			s.log.Warn("Stored credentials are unreadable, ignoring", "offset", s.offset, "err", err)
			return Record{}, nil
		}
		return Record{}, err
	}

	s.log.Debug("Loaded credentials", "ssid", rec.SSID)
	return rec, nil
}

// Save writes rec at the configured offset and commits the region.
func (s *Store) Save(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("Saving credentials", "offset", s.offset, "ssid", rec.SSID)

	if err := s.nv.Begin(ctx); err != nil {
		return err
	}

	buf, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := s.nv.WriteAt(buf, s.offset); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return s.nv.Commit(ctx)
}
