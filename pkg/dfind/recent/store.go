package recent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// FileStore persists the list as a JSON array in one file. Writes go to a
// temp file in the same directory and are renamed into place.
type FileStore struct {
	Path string

	// Key names the configuration key that set Path, for error messages.
	Key string
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, Key: "CONFIG_FILE"}
}

// Load reads the list. A missing file is an empty list; unreadable or
// malformed content is a *types.ConfigError.
func (s *FileStore) Load() ([]string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewConfigError(s.Key, s.Path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var folders []string
	if err := json.Unmarshal(data, &folders); err != nil {
		return nil, types.NewConfigError(s.Key, s.Path, fmt.Errorf("corrupt recent-folder file: %w", err))
	}
	return folders, nil
}

// Save writes the list atomically.
func (s *FileStore) Save(folders []string) (err error) {
	if folders == nil {
		folders = []string{}
	}
	data, err := json.MarshalIndent(folders, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("saving recent folders: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("saving recent folders: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("saving recent folders: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("saving recent folders: %w", err)
	}
	return nil
}

// MemoryStore keeps the list in memory.
type MemoryStore struct {
	mu      sync.Mutex
	folders []string
	Saves   int
}

// Load implements Store.
func (m *MemoryStore) Load() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.folders...), nil
}

// Save implements Store.
func (m *MemoryStore) Save(folders []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders = append([]string(nil), folders...)
	m.Saves++
	return nil
}
