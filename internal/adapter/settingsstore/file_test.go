package settingsstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedeck/internal/adapter/filesystem"
	"filedeck/internal/domain"
	"filedeck/internal/security"
)

func TestFileStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.json")
	s := NewFileStore(filesystem.NewLocal())
	assert.Equal(t, "file", s.Name())

	require.NoError(t, s.Save(ctx, path, domain.SettingsDocument(`{"z": 1, "a": 2}`)))
	got, err := s.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, `{"z": 1, "a": 2}`, string(got))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"z": 1, "a": 2}`, string(onDisk))
}

func TestFileStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.json")
	s := NewFileStore(filesystem.NewLocal())

	require.NoError(t, s.Save(ctx, path, domain.SettingsDocument(`{"long": "value that is long"}`)))
	require.NoError(t, s.Save(ctx, path, domain.SettingsDocument(`{}`)))

	got, err := s.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))
}

func TestFileStore_NotFound(t *testing.T) {
	s := NewFileStore(filesystem.NewLocal())
	dir := t.TempDir()

	_, err := s.Load(context.Background(), filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Load(context.Background(), dir)
	assert.ErrorIs(t, err, domain.ErrNotFound, "a directory is not a document")
}

func TestFileStore_SaveMissingParent(t *testing.T) {
	s := NewFileStore(filesystem.NewLocal())
	err := s.Save(context.Background(), filepath.Join(t.TempDir(), "no", "dir.json"), domain.SettingsDocument(`{}`))
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnknown, domain.ErrorCodeOf(err))
}

func TestFileStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.json")
	s := NewFileStore(filesystem.NewLocal())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Save(ctx, path, domain.SettingsDocument(`{"k": "v"}`)))
		}()
	}
	wg.Wait()

	got, err := s.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, `{"k": "v"}`, string(got))
}

func TestFileStore_Sandboxed(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	sb, err := security.NewSandbox(root)
	require.NoError(t, err)

	s := NewFileStore(filesystem.NewLocal())
	s.SetPathValidator(sb)

	require.NoError(t, s.Save(context.Background(), "config.json", domain.SettingsDocument(`{}`)))
	assert.FileExists(t, filepath.Join(root, "config.json"))

	resolved, err := s.Resolve("config.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "config.json"), resolved)

	err = s.Save(context.Background(), filepath.Join(t.TempDir(), "x.json"), domain.SettingsDocument(`{}`))
	assert.ErrorIs(t, err, domain.ErrPathOutsideSandbox)
	_, err = s.Load(context.Background(), "/etc/hostname")
	assert.ErrorIs(t, err, domain.ErrPathOutsideSandbox)
}
