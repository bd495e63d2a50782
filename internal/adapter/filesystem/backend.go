// Package filesystem provides the storage primitives behind file operations.
package filesystem

import "io/fs"

// Backend abstracts the filesystem calls used by the file and settings
// services.
type Backend interface {
	// Stat follows symlinks.
	Stat(path string) (fs.FileInfo, error)
	// Lstat does not follow symlinks.
	Lstat(path string) (fs.FileInfo, error)
	// ReadDir returns the entries of a directory sorted by name.
	ReadDir(path string) ([]fs.DirEntry, error)
	// ReadFile reads a whole file. A positive limit makes files larger than
	// limit fail with an error wrapping domain.ErrLimitReached.
	ReadFile(path string, limit int64) ([]byte, error)
	// Rename renames within one filesystem.
	Rename(oldPath, newPath string) error
	// Move renames, falling back to copy and remove across filesystems.
	Move(src, dst string) error
	// WriteFileAtomic replaces path with data so readers never observe a
	// partially written file.
	WriteFileAtomic(path string, data []byte, perm fs.FileMode) error
	// SameFile reports whether a and b name the same file.
	SameFile(a, b fs.FileInfo) bool
}
