package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileKV persists all keys in a single JSON document on local disk.
// Writes go to a temporary file that is renamed over the original.
type FileKV struct {
	path string
	mu   sync.Mutex
}

// NewFileKV returns a store rooted at path. The file is created lazily.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// Path returns the backing file location.
func (f *FileKV) Path() string {
	return f.path
}

// Get reads one key.
func (f *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

// Put writes one key, preserving the others.
func (f *FileKV) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		// a corrupt document is replaced rather than blocking every save
		doc = make(map[string]string)
	}
	doc[key] = string(value)
	return f.save(doc)
}

func (f *FileKV) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read kv file: %w", err)
	}
	doc := make(map[string]string)
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse kv file: %w", err)
	}
	return doc, nil
}

func (f *FileKV) save(doc map[string]string) error {
	dir := filepath.Dir(f.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create kv dir: %w", err)
		}
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal kv file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".kv-*.tmp")
	if err != nil {
		return fmt.Errorf("create kv temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write kv temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close kv temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace kv file: %w", err)
	}
	return nil
}

var _ KV = (*FileKV)(nil)
