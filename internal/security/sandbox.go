package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filedeck/internal/domain"
)

// Sandbox confines file operations to a directory tree.
type Sandbox struct {
	root string // absolute, symlink-free
}

// NewSandbox roots a sandbox at dir, which must be an existing directory.
func NewSandbox(dir string) (*Sandbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("eval symlinks for sandbox root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %q is not a directory", resolved)
	}
	return &Sandbox{root: resolved}, nil
}

func (s *Sandbox) Root() string { return s.root }

// ValidatePath resolves requested against the root and checks that its
// symlink-resolved target stays inside the root. A path that is lexically
// inside the root is returned as is, so operations act on a symlink itself
// rather than on what it points to; otherwise the resolved path is returned.
// Paths that do not exist yet are checked through their nearest existing
// ancestor.
func (s *Sandbox) ValidatePath(requested string) (string, error) {
	const op = "Sandbox.ValidatePath"

	if strings.ContainsRune(requested, 0) {
		return "", domain.NewDomainError(op, domain.ErrInvalidInput, "path contains NUL byte")
	}

	p := requested
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)

	resolved, err := resolveExisting(p)
	if err != nil {
		return "", domain.NewDomainError(op, domain.ErrPathOutsideSandbox, err.Error())
	}
	if !s.contains(resolved) {
		return "", domain.NewDomainError(op, domain.ErrPathOutsideSandbox,
			fmt.Sprintf("%q resolves to %q outside root %q", requested, resolved, s.root))
	}
	if s.contains(p) {
		return p, nil
	}
	return resolved, nil
}

func (s *Sandbox) contains(path string) bool {
	return path == s.root || strings.HasPrefix(path, s.root+string(os.PathSeparator))
}

// resolveExisting evaluates symlinks in the longest existing prefix of p and
// re-appends the missing tail.
func resolveExisting(p string) (string, error) {
	var tail []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}
