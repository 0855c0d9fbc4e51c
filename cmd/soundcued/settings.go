package main

import (
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

// ============================================================================
// Settings Store - Debounced JSON Key/Value Persistence
// ============================================================================
// One JSON document per key, stored under a data directory. Writes are
// coalesced: every Queue schedules a write after the debounce interval, and
// a newer Queue for the same key cancels the pending one. At most one write
// happens per quiet period, and only the latest value is ever persisted.
//
// Persistence failures are logged and never surfaced to the user; in-memory
// state is always ahead of disk.
// ============================================================================

// SettingsStore is a debounced key/value file store.
type SettingsStore struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]any
	timers  map[string]*time.Timer
}

// NewSettingsStore creates the data directory and returns a store writing
// into it.
func NewSettingsStore(dir string, debounce time.Duration, logger *slog.Logger) (*SettingsStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	return &SettingsStore{
		dir:      dir,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]any),
		timers:   make(map[string]*time.Timer),
	}, nil
}

func (s *SettingsStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get loads the document for key into out. Returns (false, nil) when the
// key has never been written.
func (s *SettingsStore) Get(key string, out any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Queue schedules a debounced write of value under key. A later Queue for
// the same key supersedes the pending value and restarts the quiet period.
func (s *SettingsStore) Queue(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[key] = value
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(s.debounce, func() {
		s.flushKey(key)
	})
}

func (s *SettingsStore) flushKey(key string) {
	s.mu.Lock()
	value, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
		delete(s.timers, key)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	if err := s.write(key, value); err != nil {
		// Non-fatal: in-memory state stays authoritative.
		s.logger.Error("settings write failed", "key", key, "error", err)
	}
}

// write marshals value and replaces the key's file atomically.
func (s *SettingsStore) write(key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Flush writes all pending values immediately. Called on shutdown so the
// debounce window cannot swallow the final state.
func (s *SettingsStore) Flush() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.pending))
	for key, t := range s.timers {
		t.Stop()
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.flushKey(key)
	}
}
