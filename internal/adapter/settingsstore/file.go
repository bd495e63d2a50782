// Package settingsstore persists settings documents.
package settingsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"filedeck/internal/adapter/filesystem"
	"filedeck/internal/domain"
)

// PathValidator confines document paths, e.g. to a sandbox root.
type PathValidator interface {
	ValidatePath(requested string) (string, error)
}

// FileStore keeps each document in its own file; the key is the file path.
type FileStore struct {
	fs    filesystem.Backend
	paths PathValidator

	mu sync.Mutex // serializes writes
}

var _ domain.SettingsStore = (*FileStore)(nil)

// NewFileStore returns a FileStore backed by fsys.
func NewFileStore(fsys filesystem.Backend) *FileStore {
	return &FileStore{fs: fsys}
}

// SetPathValidator confines keys. Without one, keys are used as given.
func (s *FileStore) SetPathValidator(v PathValidator) { s.paths = v }

func (s *FileStore) Name() string { return "file" }

func (s *FileStore) Load(_ context.Context, key string) (domain.SettingsDocument, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, domain.NewDomainError("FileStore.Load", domain.ErrNotFound, "Config not found")
	}
	data, err := s.fs.ReadFile(path, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewDomainError("FileStore.Load", domain.ErrNotFound, "Config not found")
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	return data, nil
}

func (s *FileStore) Save(_ context.Context, key string, doc domain.SettingsDocument) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.WriteFileAtomic(path, doc, 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}

// Resolve returns the path a key maps to.
func (s *FileStore) Resolve(key string) (string, error) { return s.resolve(key) }

func (s *FileStore) resolve(key string) (string, error) {
	if s.paths == nil {
		return key, nil
	}
	return s.paths.ValidatePath(key)
}
