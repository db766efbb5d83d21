package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Progress is the advisory client-side wizard state. The server never reads it.
type Progress struct {
	CompletedSteps []Step      `json:"completedSteps"`
	RegisterData   CardPayload `json:"registerData"`
}

// ProgressStore holds Progress between sessions.
type ProgressStore interface {
	Load() (Progress, error)
	Save(p Progress) error
}

// MemoryStore keeps Progress in process memory.
type MemoryStore struct {
	mu sync.Mutex
	p  Progress
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p, nil
}

func (s *MemoryStore) Save(p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
	return nil
}

// FileStore keeps Progress in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns empty Progress when the file does not exist.
func (s *FileStore) Load() (Progress, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, err
	}
	var p Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return Progress{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return p, nil
}

func (s *FileStore) Save(p Progress) error {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
