package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileStore persists each key as a pretty-printed JSON file under a data
// directory. Keys may contain ':' separators which map to '_' on disk.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger *logrus.Logger
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string, logger *logrus.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (fs *FileStore) path(key string) string {
	name := strings.ReplaceAll(key, ":", "_") + ".json"
	return filepath.Join(fs.dir, name)
}

func (fs *FileStore) keyFromFile(name string) string {
	name = strings.TrimSuffix(name, ".json")
	return strings.Replace(name, "_", ":", 1)
}

// Load reads the blob for key, or ErrKeyNotFound.
func (fs *FileStore) Load(key string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return data, nil
}

// Save writes the blob atomically via a temp file rename so a crashed write
// never leaves a truncated payload behind.
func (fs *FileStore) Save(key string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	target := fs.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	fs.logger.WithFields(logrus.Fields{
		"component": "file_store",
		"key":       key,
		"bytes":     len(data),
	}).Debug("Data saved")
	return nil
}

// Delete removes the blob; deleting an absent key is not an error.
func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key.
func (fs *FileStore) Keys() ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		keys = append(keys, fs.keyFromFile(entry.Name()))
	}
	return keys, nil
}
