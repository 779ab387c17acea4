package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"flexilims/pkg/domain"
)

// FileStore persists the document to a single JSON or YAML file. The
// encoding follows the file extension: .yaml and .yml select YAML,
// anything else JSON. Saves write a sibling temp file and rename it into
// place so a crash mid-write never truncates the previous snapshot.
type FileStore struct {
	mu   sync.Mutex
	path string
	yaml bool
}

// NewFileStore constructs a file-backed store at path, creating parent
// directories as needed. An empty path defaults to flexilims.json in the
// working directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = "flexilims.json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	return &FileStore{path: path, yaml: ext == ".yaml" || ext == ".yml"}, nil
}

// Path returns the configured snapshot path.
func (s *FileStore) Path() string { return s.path }

// Load implements Store. A missing file yields an empty document.
func (s *FileStore) Load(context.Context) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	doc := domain.Document{}
	if s.yaml {
		err = yaml.Unmarshal(raw, &doc)
	} else {
		err = json.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return doc, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw []byte
	var err error
	if s.yaml {
		raw, err = yaml.Marshal(doc)
	} else {
		raw, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
