package projectcache

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	vfs "github.com/hupe1980/lockingcache/internal/fs"
)

// sizeMarkerFile caches a directory's computed size inside the directory.
const sizeMarkerFile = "___project_dir_size_in_bytes___"

// dirSizeAndSave returns the size recorded in dir's marker file, computing
// and recording it first if the marker is missing.
func dirSizeAndSave(fsys vfs.FileSystem, dir string) (int64, error) {
	marker := filepath.Join(dir, sizeMarkerFile)

	b, err := readFile(fsys, marker)
	if err == nil {
		return strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}

	size, err := dirSize(fsys, dir)
	if err != nil {
		return 0, err
	}
	if err := writeFile(fsys, marker, []byte(strconv.FormatInt(size, 10))); err != nil {
		return 0, err
	}
	return size, nil
}

func readFile(fsys vfs.FileSystem, name string) ([]byte, error) {
	f, err := fsys.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeFile(fsys vfs.FileSystem, name string, data []byte) error {
	f, err := fsys.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// dirSize sums the sizes of all regular files below dir.
func dirSize(fsys vfs.FileSystem, dir string) (int64, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var size int64
	for _, e := range entries {
		switch {
		case e.IsDir():
			n, err := dirSize(fsys, filepath.Join(dir, e.Name()))
			if err != nil {
				return 0, err
			}
			size += n
		case e.Type().IsRegular():
			info, err := e.Info()
			if err != nil {
				return 0, err
			}
			size += info.Size()
		}
	}
	return size, nil
}
