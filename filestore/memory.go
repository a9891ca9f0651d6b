package filestore

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
)

// MemoryFileStore is an in-memory FileStore used by tests and local
// experiments. Safe for concurrent use.
type MemoryFileStore struct {
	mu    sync.RWMutex
	files map[string]*File
	data  map[string][]byte
}

// NewMemoryFileStore creates an empty in-memory store.
func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{
		files: make(map[string]*File),
		data:  make(map[string][]byte),
	}
}

// Put adds or replaces a file. The path doubles as the id; mime is derived
// from the extension when not given.
func (s *MemoryFileStore) Put(p, mimeType string, data []byte) *File {
	if mimeType == "" {
		mimeType = MimeByPath(p)
	}
	f := &File{ID: p, Path: p, Mime: mimeType, Size: int64(len(data))}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = f
	s.data[p] = data
	return f
}

// Remove deletes a file.
func (s *MemoryFileStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
	delete(s.data, id)
}

// Move relocates a file to a new path, keeping its id stable.
func (s *MemoryFileStore) Move(id, newPath string) *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil
	}
	f.Path = newPath
	f.Mime = MimeByPath(newPath)
	return f
}

// GetByID returns the file, or (nil, nil) when absent.
func (s *MemoryFileStore) GetByID(_ context.Context, id string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.files[id]; ok {
		clone := *f
		return &clone, nil
	}
	return nil, nil
}

// ReadAll returns the file's bytes, or (nil, nil) when absent.
func (s *MemoryFileStore) ReadAll(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.data[id]; ok {
		return append([]byte(nil), data...), nil
	}
	return nil, nil
}

// SearchByMime returns files under a path whose mime starts with the prefix.
func (s *MemoryFileStore) SearchByMime(_ context.Context, mimePrefix, underPath string) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []*File
	for _, f := range s.files {
		if !InScope(f.Path, underPath) {
			continue
		}
		if strings.HasPrefix(f.Mime, mimePrefix) {
			clone := *f
			files = append(files, &clone)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Siblings returns the files in the same folder, the file itself included.
func (s *MemoryFileStore) Siblings(_ context.Context, id string) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, nil
	}
	dir := path.Dir(f.Path)

	var files []*File
	for _, other := range s.files {
		if path.Dir(other.Path) == dir {
			clone := *other
			files = append(files, &clone)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
