package filesystem

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedeck/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLocal_ReadDirSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	entries, err := NewLocal().ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, names)
}

func TestLocal_ReadFileLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	writeFile(t, path, "0123456789")
	l := NewLocal()

	data, err := l.ReadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	data, err = l.ReadFile(path, 10)
	require.NoError(t, err, "exactly at the limit is allowed")
	assert.Len(t, data, 10)

	_, err = l.ReadFile(path, 9)
	assert.ErrorIs(t, err, domain.ErrLimitReached)

	_, err = l.ReadFile(filepath.Join(dir, "missing"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocal_MoveSameDevice(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "dest", "a.txt")
	writeFile(t, src, "payload")
	require.NoError(t, os.Mkdir(filepath.Dir(dst), 0o755))

	require.NoError(t, NewLocal().Move(src, dst))

	assert.NoFileExists(t, src)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestLocal_MoveCrossDeviceFallback(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "script.sh")
	dst := filepath.Join(dir, "other", "script.sh")
	writeFile(t, src, "#!/bin/sh\necho hi\n")
	require.NoError(t, os.Chmod(src, 0o751))
	require.NoError(t, os.Mkdir(filepath.Dir(dst), 0o755))

	l := &Local{rename: func(oldPath, newPath string) error {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: syscall.EXDEV}
	}}

	require.NoError(t, l.Move(src, dst))

	assert.NoFileExists(t, src)
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o751), info.Mode().Perm())
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(got))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(dst), ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLocal_MoveOtherErrorsPassThrough(t *testing.T) {
	l := &Local{rename: func(string, string) error { return syscall.EACCES }}
	err := l.Move("/a", "/b")
	assert.ErrorIs(t, err, syscall.EACCES)
}

func TestLocal_WriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, "old content that is longer")

	l := NewLocal()
	require.NoError(t, l.WriteFileAtomic(path, []byte(`{"a": 1}`), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestLocal_WriteFileAtomicMissingDir(t *testing.T) {
	err := NewLocal().WriteFileAtomic(filepath.Join(t.TempDir(), "nope", "x.json"), []byte("{}"), 0o644)
	assert.Error(t, err)
}

func TestLocal_SameFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	writeFile(t, a, "x")
	l := NewLocal()

	i1, err := l.Stat(a)
	require.NoError(t, err)
	i2, err := l.Stat(filepath.Join(dir, ".", "a"))
	require.NoError(t, err)
	assert.True(t, l.SameFile(i1, i2))
}
