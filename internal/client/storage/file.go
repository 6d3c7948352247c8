package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps values in a JSON document on disk. The file is rewritten
// atomically on every change and is readable by the owner only.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDoc struct {
	Values  map[string]string `json:"values"`
	Version int64             `json:"version"`
}

const storageFile = "kongtze.json"

// DefaultPath returns kongtze.json under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "kongtze", storageFile), nil
}

// NewFileStore returns a store backed by path. The file is created on the
// first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Get(_ context.Context, key string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return "", err
	}
	v, ok := doc.Values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (fs *FileStore) Set(_ context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return err
	}
	doc.Values[key] = value
	doc.Version++
	return fs.save(doc)
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Values[key]; !ok {
		return nil
	}
	delete(doc.Values, key)
	doc.Version++
	return fs.save(doc)
}

func (fs *FileStore) Close() error { return nil }

func (fs *FileStore) load() (*fileDoc, error) {
	doc := &fileDoc{Values: map[string]string{}}
	f, err := os.Open(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fs.path, err)
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc, nil
}

func (fs *FileStore) save(doc *fileDoc) error {
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".kongtze-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fs.path)
}
