// Package credentials abstracts where the tracker API key lives. The core
// only ever reads the key to attach it to outgoing requests.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the minimal secret-storage contract.
type Store interface {
	Get() (string, error)
	Set(key string) error
	Delete() error
}

// FileStore keeps the key in a mode-0600 file under the data directory.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create credentials dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read API key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) Set(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, []byte(key), 0o600); err != nil {
		return fmt.Errorf("write API key: %w", err)
	}
	return nil
}

func (s *FileStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete API key: %w", err)
	}
	return nil
}

// MemoryStore is an in-process store used by tests.
type MemoryStore struct {
	mu  sync.Mutex
	key string
}

func (s *MemoryStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, nil
}

func (s *MemoryStore) Set(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	return nil
}

func (s *MemoryStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = ""
	return nil
}
