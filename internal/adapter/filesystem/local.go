package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"filedeck/internal/domain"
)

// Local is a Backend over the host filesystem.
type Local struct {
	rename func(oldPath, newPath string) error
}

var _ Backend = (*Local)(nil)

// NewLocal returns a Backend that uses the host filesystem.
func NewLocal() *Local {
	return &Local{rename: os.Rename}
}

func (l *Local) Stat(path string) (fs.FileInfo, error)      { return os.Stat(path) }
func (l *Local) Lstat(path string) (fs.FileInfo, error)     { return os.Lstat(path) }
func (l *Local) ReadDir(path string) ([]fs.DirEntry, error) { return os.ReadDir(path) }
func (l *Local) SameFile(a, b fs.FileInfo) bool             { return os.SameFile(a, b) }

func (l *Local) ReadFile(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if limit <= 0 {
		return io.ReadAll(f)
	}

	// Read one byte past the limit to detect oversize files without
	// trusting the size reported by stat.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, domain.NewDomainError("Local.ReadFile", domain.ErrLimitReached,
			fmt.Sprintf("%s is larger than %d bytes", path, limit))
	}
	return data, nil
}

func (l *Local) Rename(oldPath, newPath string) error {
	return l.rename(oldPath, newPath)
}

func (l *Local) Move(src, dst string) error {
	err := l.rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("cross-device move: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("cross-device move: remove source: %w", err)
	}
	return nil
}

// copyFile copies src to a temp file beside dst and renames it into place,
// keeping the source mode bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	return writeViaTemp(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func (l *Local) WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	return writeViaTemp(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func writeViaTemp(path string, perm fs.FileMode, fill func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
