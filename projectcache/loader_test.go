package projectcache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/lockingcache/blobstore"
	vfs "github.com/hupe1980/lockingcache/internal/fs"
	"github.com/hupe1980/lockingcache/resource"
	"github.com/hupe1980/lockingcache/testutil"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleProject = map[string][]byte{
	"bin/":          nil,
	"bin/run.sh":    []byte("echo hi"),
	"conf/app.conf": []byte("x=1"),
}

const sampleProjectSize = 10

func putProject(t *testing.T, store blobstore.BlobStore, key Key, files map[string][]byte) {
	t.Helper()
	data, err := testutil.ZipArchive(files)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), key.archiveName(), data))
}

func stagingLeftovers(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, stagingPrefix+"*"))
	require.NoError(t, err)
	return matches
}

// downloaderStore adds blobstore.Downloader to a MemoryStore.
type downloaderStore struct {
	*blobstore.MemoryStore
	downloads atomic.Int32
}

func (s *downloaderStore) Download(ctx context.Context, name string, w io.WriterAt) (int64, error) {
	s.downloads.Add(1)
	blob, err := s.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer blob.Close()
	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func TestKey(t *testing.T) {
	k := Key{ProjectID: 12, Version: 3}
	assert.Equal(t, "12.3", k.String())
	assert.Equal(t, "12/3.zip", k.archiveName())

	parsed, err := ParseKey("12.3")
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	for _, s := range []string{"12", "a.3", "12.b", "-1.2", "1.-2", "+1.2", "1.+2", " 1.2", "1.", ".2", "", "99999999999999999999.1"} {
		_, err := ParseKey(s)
		require.Error(t, err, s)
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err), s)
	}
}

func TestSizer(t *testing.T) {
	assert.Equal(t, int64(1), Sizer.Size(DirInfo{}))
	assert.Equal(t, int64(42), Sizer.Size(DirInfo{Size: 42}))
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("DownloadsAndUnpacks", func(t *testing.T) {
		dir := t.TempDir()
		store := blobstore.NewMemoryStore()
		key := Key{ProjectID: 1, Version: 2}
		putProject(t, store, key, sampleProject)

		l := NewLoader(dir, store, resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20}), nil)
		info, err := l.Load(ctx, key)
		require.NoError(t, err)

		assert.Equal(t, key, info.Key)
		assert.Equal(t, filepath.Join(dir, "1.2"), info.Dir)
		assert.Equal(t, int64(sampleProjectSize), info.Size)

		script, err := os.ReadFile(filepath.Join(info.Dir, "bin", "run.sh"))
		require.NoError(t, err)
		assert.Equal(t, "echo hi", string(script))

		marker, err := os.ReadFile(filepath.Join(info.Dir, sizeMarkerFile))
		require.NoError(t, err)
		assert.Equal(t, "10", string(marker))

		assert.Empty(t, stagingLeftovers(t, dir))
	})

	t.Run("UsesDownloader", func(t *testing.T) {
		dir := t.TempDir()
		store := &downloaderStore{MemoryStore: blobstore.NewMemoryStore()}
		key := Key{ProjectID: 7, Version: 1}
		putProject(t, store, key, sampleProject)

		info, err := NewLoader(dir, store, nil, nil).Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(sampleProjectSize), info.Size)
		assert.Equal(t, int32(1), store.downloads.Load())
	})

	t.Run("ReusesExistingDirectory", func(t *testing.T) {
		dir := t.TempDir()
		store := blobstore.NewMemoryStore()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "3.1"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "3.1", "f"), []byte("12345"), 0o644))

		info, err := NewLoader(dir, store, nil, nil).Load(ctx, Key{ProjectID: 3, Version: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size)
		assert.Equal(t, 0, store.Opens("3/1.zip"))
	})

	t.Run("NotADirectory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "4.1"), nil, 0o644))

		_, err := NewLoader(dir, blobstore.NewMemoryStore(), nil, nil).Load(ctx, Key{ProjectID: 4, Version: 1})
		require.Error(t, err)
		assert.Equal(t, errors.CodeConflict, errors.GetCode(err))
	})

	t.Run("MissingArchive", func(t *testing.T) {
		dir := t.TempDir()

		_, err := NewLoader(dir, blobstore.NewMemoryStore(), nil, nil).Load(ctx, Key{ProjectID: 5, Version: 1})
		require.Error(t, err)
		assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
		assert.Empty(t, stagingLeftovers(t, dir))
		assert.NoDirExists(t, filepath.Join(dir, "5.1"))
	})

	t.Run("RejectsPathTraversal", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "cache")
		require.NoError(t, os.Mkdir(dir, 0o755))

		store := blobstore.NewMemoryStore()
		key := Key{ProjectID: 6, Version: 1}
		putProject(t, store, key, map[string][]byte{"../evil.txt": []byte("boom")})

		_, err := NewLoader(dir, store, nil, nil).Load(ctx, key)
		require.Error(t, err)
		assert.NoFileExists(t, filepath.Join(root, "evil.txt"))
		assert.NoDirExists(t, filepath.Join(dir, "6.1"))
		assert.Empty(t, stagingLeftovers(t, dir))
	})

	t.Run("CorruptArchive", func(t *testing.T) {
		dir := t.TempDir()
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, "8/1.zip", []byte("not a zip")))

		_, err := NewLoader(dir, store, nil, nil).Load(ctx, Key{ProjectID: 8, Version: 1})
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		assert.Empty(t, stagingLeftovers(t, dir))
	})
}

func TestLoader_Load_DiskFaults(t *testing.T) {
	ctx := context.Background()
	key := Key{ProjectID: 9, Version: 4}

	tests := []struct {
		name    string
		pattern string
		fault   vfs.Fault
		code    errors.ErrorCode
	}{
		{"DiskFullWhileUnpacking", "run.sh", vfs.Fault{FailAfterBytes: 0}, errors.CodeInvalidInput},
		{"ArchiveCloseFails", ".zip", vfs.Fault{FailAfterBytes: -1, FailOnClose: true}, errors.CodeInternal},
		{"SizeMarkerWriteFails", sizeMarkerFile, vfs.Fault{FailAfterBytes: 0}, errors.CodeInternal},
		{"InstallRenameFails", stagingPrefix, vfs.Fault{FailAfterBytes: -1, FailOnRename: true}, errors.CodeInternal},
		{"SizingWalkFails", "conf", vfs.Fault{FailAfterBytes: -1, FailOnRead: true}, errors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store := blobstore.NewMemoryStore()
			putProject(t, store, key, sampleProject)

			ffs := vfs.NewFaultyFS(nil)
			ffs.AddRule(tt.pattern, tt.fault)
			l := NewLoader(dir, store, nil, nil)
			l.fsys = ffs

			_, err := l.Load(ctx, key)
			require.Error(t, err)
			assert.ErrorIs(t, err, vfs.ErrInjected)
			assert.Equal(t, tt.code, errors.GetCode(err))
			if tt.fault.FailOnClose {
				assert.Equal(t, 1, ffs.Closes(tt.pattern), "archive must be closed exactly once")
			}
			assert.Empty(t, stagingLeftovers(t, dir))
			assert.NoDirExists(t, filepath.Join(dir, key.String()))

			// The fault is gone, so the next attempt succeeds.
			l.fsys = vfs.Default
			info, err := l.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, int64(sampleProjectSize), info.Size)
		})
	}
}

func TestLoader_Load_MarkerReadFails(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "3.1")
	require.NoError(t, os.MkdirAll(project, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, sizeMarkerFile), []byte("42"), 0o644))

	ffs := vfs.NewFaultyFS(nil)
	ffs.AddRule(sizeMarkerFile, vfs.Fault{FailAfterBytes: -1, FailOnRead: true})
	l := NewLoader(dir, blobstore.NewMemoryStore(), nil, nil)
	l.fsys = ffs

	_, err := l.Load(context.Background(), Key{ProjectID: 3, Version: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, vfs.ErrInjected)
	assert.Equal(t, errors.CodeInternal, errors.GetCode(err))
	assert.Equal(t, 1, ffs.Closes(sizeMarkerFile))

	l.fsys = vfs.Default
	info, err := l.Load(context.Background(), Key{ProjectID: 3, Version: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Size)
}

func TestLoader_ArchiveClosedOnce(t *testing.T) {
	dir := t.TempDir()
	store := &downloaderStore{MemoryStore: blobstore.NewMemoryStore()}
	key := Key{ProjectID: 2, Version: 2}
	putProject(t, store, key, sampleProject)

	ffs := vfs.NewFaultyFS(nil)
	ffs.AddRule(".zip", vfs.Fault{FailAfterBytes: -1})
	l := NewLoader(dir, store, nil, nil)
	l.fsys = ffs

	_, err := l.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, ffs.Closes(".zip"))
}

func TestLoader_LoadAll(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "1.1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.1", "a"), []byte("abc"), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2.3"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.3", sizeMarkerFile), []byte("42"), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "5.5"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "_temp.9.9.x"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "notes"), 0o755))

	projects, err := NewLoader(dir, blobstore.NewMemoryStore(), nil, nil).LoadAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[Key]DirInfo{
		{ProjectID: 1, Version: 1}: {Key: Key{ProjectID: 1, Version: 1}, Dir: filepath.Join(dir, "1.1"), Size: 3},
		{ProjectID: 2, Version: 3}: {Key: Key{ProjectID: 2, Version: 3}, Dir: filepath.Join(dir, "2.3"), Size: 42},
	}, projects)

	// Size was persisted for next time
	assert.FileExists(t, filepath.Join(dir, "1.1", sizeMarkerFile))
}

func TestLoader_Remove(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "1.1")
	require.NoError(t, os.MkdirAll(filepath.Join(project, "bin"), 0o755))

	l := NewLoader(dir, blobstore.NewMemoryStore(), nil, nil)
	require.NoError(t, l.Remove(context.Background(), Key{ProjectID: 1, Version: 1}, DirInfo{Dir: project}))
	assert.NoDirExists(t, project)
}

func TestRemoveStaging(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "_temp.1.1.abc", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_temp.1.1.abc.zip"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "1.1"), 0o755))

	require.NoError(t, NewLoader(dir, nil, nil, nil).removeStaging(context.Background()))

	assert.Empty(t, stagingLeftovers(t, dir))
	assert.DirExists(t, filepath.Join(dir, "1.1"))
}
