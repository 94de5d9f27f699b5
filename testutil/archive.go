package testutil

import (
	"bytes"
	"sort"

	"github.com/klauspost/compress/zip"
)

// ZipArchive builds a zip archive in memory. Names ending in "/" become
// directory entries. Entries are written in sorted order so the output is
// deterministic.
func ZipArchive(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
