// Package store persists the active run identifier across process
// restarts. The store is an injected capability so session code never
// touches global mutable state and tests can substitute doubles.
package store

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/relayproj/relay/internal/fileutil"
	"github.com/relayproj/relay/internal/logging"
)

// RunStore persists a single opaque run identifier.
//
// Get reads the currently persisted identifier, returning false when none
// is persisted. Implementations must read fresh state on every call: the
// identifier may be cleared or replaced between calls (by this process or,
// for file-backed stores, by another client instance).
type RunStore interface {
	Get() (string, bool)
	Set(id string) error
	Clear() error
}

// runFile is the on-disk form of the persisted run identifier.
type runFile struct {
	RunID     string    `json:"run_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore persists the run identifier in a single JSON file. It survives
// process restarts and is visible to other client instances sharing the
// same data directory. Safe for concurrent use.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ RunStore = (*FileStore)(nil)

// NewFileStore creates a file-backed run store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file path backing this store.
func (s *FileStore) Path() string {
	return s.path
}

// Get reads the persisted run identifier from disk. Each call re-reads the
// file so callers always observe the latest persisted state.
func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rf runFile
	if err := fileutil.ReadJSON(s.path, &rf); err != nil {
		if !os.IsNotExist(err) {
			logging.Store().Warn("failed to read run file", "path", s.path, "error", err)
		}
		return "", false
	}
	if rf.RunID == "" {
		return "", false
	}
	return rf.RunID, true
}

// Set persists the run identifier atomically.
func (s *FileStore) Set(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		return fmt.Errorf("run id must not be empty")
	}
	rf := runFile{RunID: id, UpdatedAt: time.Now()}
	if err := fileutil.WriteJSONAtomic(s.path, rf, 0644); err != nil {
		return fmt.Errorf("failed to persist run id: %w", err)
	}
	logging.Store().Debug("run id persisted", "run_id", id, "path", s.path)
	return nil
}

// Clear removes the persisted run identifier. Clearing an already-empty
// store is not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear run id: %w", err)
	}
	logging.Store().Debug("run id cleared", "path", s.path)
	return nil
}

// MemStore is an in-memory RunStore for tests and ephemeral sessions.
// Safe for concurrent use.
type MemStore struct {
	mu  sync.Mutex
	id  string
	set bool
}

var _ RunStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory run store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.set
}

func (s *MemStore) Set(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		return fmt.Errorf("run id must not be empty")
	}
	s.id = id
	s.set = true
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.set = false
	return nil
}
