package projectcache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/lockingcache"
	"github.com/jmgilman/go/errors"
)

// Key identifies one version of a project.
type Key struct {
	ProjectID int
	Version   int
}

// String returns the directory name, "<projectID>.<version>".
func (k Key) String() string {
	return fmt.Sprintf("%d.%d", k.ProjectID, k.Version)
}

// archiveName is the blob name of the project archive.
func (k Key) archiveName() string {
	return fmt.Sprintf("%d/%d.zip", k.ProjectID, k.Version)
}

// ParseKey parses a directory name produced by Key.String.
func ParseKey(s string) (Key, error) {
	id, ver, ok := strings.Cut(s, ".")
	if !ok {
		return Key{}, errors.Newf(errors.CodeInvalidInput, "invalid project key %q", s)
	}
	projectID, err := parseNumber(id)
	if err != nil {
		return Key{}, errors.Wrapf(err, errors.CodeInvalidInput, "invalid project id in %q", s)
	}
	version, err := parseNumber(ver)
	if err != nil {
		return Key{}, errors.Wrapf(err, errors.CodeInvalidInput, "invalid version in %q", s)
	}
	return Key{ProjectID: projectID, Version: version}, nil
}

// parseNumber accepts unsigned decimal digits only.
func parseNumber(s string) (int, error) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, errors.Newf(errors.CodeInvalidInput, "%q is not a number", s)
	}
	return strconv.Atoi(s)
}

// DirInfo describes an unpacked project directory.
type DirInfo struct {
	Key  Key
	Dir  string
	Size int64
}

// Sizer reports a directory's size in bytes. Empty projects count as one byte
// so that every cached directory has a positive size.
var Sizer = lockingcache.SizerFunc[DirInfo](func(d DirInfo) int64 {
	return max(d.Size, 1)
})
