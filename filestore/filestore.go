// Package filestore is the narrow view of the external file store the
// engine consumes. The engine never stores bytes itself; it only reads
// files, resolves paths, and reacts to change notifications.
package filestore

import (
	"context"
	"path"
	"strings"
)

// File describes one stored file. ID is the store's stable identifier and
// survives moves; Path is the current location within the store.
type File struct {
	ID   string
	Path string
	Mime string
	Size int64
}

// Name returns the base name of the file.
func (f *File) Name() string {
	return path.Base(f.Path)
}

// Parent returns the folder containing the file.
func (f *File) Parent() string {
	return path.Dir(f.Path)
}

// Grandparent returns the folder two levels above the file.
func (f *File) Grandparent() string {
	return path.Dir(path.Dir(f.Path))
}

// FileStore is the consumed interface of the external file store.
// Implementations must return (nil, nil) from GetByID for a missing file;
// files routinely disappear between enumeration and processing.
type FileStore interface {
	GetByID(ctx context.Context, id string) (*File, error)
	ReadAll(ctx context.Context, id string) ([]byte, error)
	SearchByMime(ctx context.Context, mimePrefix, underPath string) ([]*File, error)
	Siblings(ctx context.Context, id string) ([]*File, error)
}

// InScope reports whether p lies under the library root.
func InScope(p, root string) bool {
	p = path.Clean(p)
	root = path.Clean(root)
	if root == "/" || root == "." {
		return true
	}
	return p == root || strings.HasPrefix(p, root+"/")
}
