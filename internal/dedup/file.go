package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists the record set as a single JSON snapshot per
// namespace. Writes go to a temp file followed by an atomic rename, so a
// crash mid-write leaves the previous snapshot intact.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]time.Time
	now     func() time.Time
}

// NewFileStore creates a file-backed store for one dedup namespace.
// The snapshot lives at <dir>/<namespace>.json.
func NewFileStore(dir, namespace string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:    filepath.Join(dir, namespace+".json"),
		logger:  logger,
		records: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Load implements Store. A missing snapshot starts empty; a corrupt one is
// logged and replaced on the next persist rather than failing startup.
func (s *FileStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.records = make(map[string]time.Time)
		return nil
	case err != nil:
		s.logger.Warn("dedup snapshot unreadable, starting empty",
			slog.String("path", s.path),
			slog.Any("error", err))
		s.records = make(map[string]time.Time)
		return nil
	}

	loaded := make(map[string]time.Time)
	if err := json.Unmarshal(raw, &loaded); err != nil {
		s.logger.Warn("dedup snapshot corrupt, starting empty",
			slog.String("path", s.path),
			slog.Any("error", err))
		s.records = make(map[string]time.Time)
		return nil
	}

	cutoff := s.now().Add(-Retention)
	pruned := 0
	for k, sentAt := range loaded {
		if sentAt.Before(cutoff) {
			delete(loaded, k)
			pruned++
		}
	}
	s.records = loaded

	// Persist the pruned set back so stale entries don't accumulate across
	// restarts. Failure here is non-fatal: the in-memory set is authoritative
	// for this process lifetime.
	if pruned > 0 {
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("failed to persist pruned dedup snapshot",
				slog.String("path", s.path),
				slog.Any("error", err))
		}
	}

	s.logger.Info("dedup store loaded",
		slog.String("path", s.path),
		slog.Int("records", len(s.records)),
		slog.Int("pruned", pruned))
	return ctx.Err()
}

// Contains implements Store.
func (s *FileStore) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Record implements Store. The in-memory record is kept even when the
// durable write fails (see package doc for the policy).
func (s *FileStore) Record(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; ok {
		return nil
	}
	s.records[key] = s.now()

	if err := s.persistLocked(); err != nil {
		s.logger.Warn("dedup record not durably persisted; duplicate possible after restart",
			slog.String("key", key),
			slog.String("path", s.path),
			slog.Any("error", err))
		return fmt.Errorf("persist dedup record: %w", err)
	}
	return nil
}

// Len implements Store.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// persistLocked writes the full snapshot with an atomic rename.
// Caller must hold s.mu.
func (s *FileStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create dedup dir: %w", err)
	}

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dedup snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write dedup snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace dedup snapshot: %w", err)
	}
	return nil
}
