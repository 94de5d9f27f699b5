package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	// Test MkdirAll
	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, lfs.MkdirAll(dir, 0755))

	// Test OpenFile (Create)
	fpath := filepath.Join(dir, "test.txt")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	assert.NoError(t, err)
	_, err = f.WriteAt([]byte("J"), 0)
	assert.NoError(t, err)
	assert.NoError(t, f.Sync())
	assert.NoError(t, f.Close())

	info, err := lfs.Stat(fpath)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	// ReadDir
	entries, err := lfs.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)

	// Rename
	newPath := filepath.Join(dir, "renamed.txt")
	assert.NoError(t, lfs.Rename(fpath, newPath))
	data, err := os.ReadFile(newPath)
	require.NoError(t, err)
	assert.Equal(t, "Jello", string(data))

	// Remove
	assert.NoError(t, lfs.Remove(newPath))
	_, err = lfs.Stat(newPath)
	assert.True(t, os.IsNotExist(err))

	// RemoveAll
	assert.NoError(t, lfs.RemoveAll(dir))
	_, err = lfs.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS_Write(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("limited", Fault{FailAfterBytes: 4})

	f, err := ffs.OpenFile(filepath.Join(tmp, "limited.bin"), os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)

	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = f.Write([]byte("de"))
	assert.ErrorIs(t, err, ErrInjected)
	_, err = f.WriteAt([]byte("xyz"), 2)
	assert.ErrorIs(t, err, ErrInjected)
	require.NoError(t, f.Close())

	// Files without a rule are untouched
	g, err := ffs.OpenFile(filepath.Join(tmp, "free.bin"), os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = g.Write(make([]byte, 1024))
	assert.NoError(t, err)
	assert.NoError(t, g.Close())
}

func TestFaultyFS_CloseAndRename(t *testing.T) {
	tmp := t.TempDir()
	custom := os.ErrPermission
	ffs := NewFaultyFS(nil)
	ffs.AddRule("close", Fault{FailAfterBytes: -1, FailOnClose: true})
	ffs.AddRule("staging", Fault{FailAfterBytes: -1, FailOnRename: true, Err: custom})

	f, err := ffs.OpenFile(filepath.Join(tmp, "close.bin"), os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Close(), ErrInjected)

	src := filepath.Join(tmp, "staging")
	require.NoError(t, ffs.MkdirAll(src, 0755))
	assert.ErrorIs(t, ffs.Rename(src, filepath.Join(tmp, "final")), custom)

	require.NoError(t, ffs.Rename(filepath.Join(tmp, "close.bin"), filepath.Join(tmp, "moved.bin")))
	_, err = ffs.Stat(filepath.Join(tmp, "moved.bin"))
	assert.NoError(t, err)
}

func TestFaultyFS_ReadAndCloseCount(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "unreadable")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("42"), 0644))

	ffs := NewFaultyFS(nil)
	ffs.AddRule("unreadable", Fault{FailAfterBytes: -1, FailOnRead: true})

	_, err := ffs.ReadDir(dir)
	assert.ErrorIs(t, err, ErrInjected)

	f, err := ffs.OpenFile(filepath.Join(dir, "marker"), os.O_RDONLY, 0)
	require.NoError(t, err)
	_, err = f.Read(make([]byte, 2))
	assert.ErrorIs(t, err, ErrInjected)

	assert.Equal(t, 0, ffs.Closes("unreadable"))
	require.NoError(t, f.Close())
	assert.Equal(t, 1, ffs.Closes("unreadable"))

	// Other directories read normally
	entries, err := ffs.ReadDir(tmp)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
