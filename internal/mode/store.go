package mode

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// IndexStore persists the selected mode index.
type IndexStore interface {
	LoadIndex() (int, error)
	SaveIndex(i int) error
}

// FileIndexStore keeps the index as a decimal number in a text file,
// active.txt by default.
type FileIndexStore struct {
	Path string
}

func (s FileIndexStore) LoadIndex() (int, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return i, nil
}

func (s FileIndexStore) SaveIndex(i int) error {
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.Path, []byte(strconv.Itoa(i)), 0o644)
}

// MemoryIndexStore is an in-process IndexStore.
type MemoryIndexStore struct {
	mu    sync.Mutex
	index int
	saves int
	err   error
}

func NewMemoryIndexStore(index int) *MemoryIndexStore {
	return &MemoryIndexStore{index: index}
}

func (s *MemoryIndexStore) LoadIndex() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.err
}

func (s *MemoryIndexStore) SaveIndex(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.index = i
	s.saves++
	return nil
}

// Fail makes every later call return err.
func (s *MemoryIndexStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Saved reports the last saved index and how many saves happened.
func (s *MemoryIndexStore) Saved() (index, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.saves
}
