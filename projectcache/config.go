package projectcache

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"time"

	vfs "github.com/hupe1980/lockingcache/internal/fs"
	"github.com/jmgilman/go/errors"
	"github.com/naoina/toml"
)

// Config configures a project cache.
type Config struct {
	// Dir is the cache directory.
	Dir string

	// MinSizeBytes and MaxSizeBytes are the low- and high-water marks.
	// Ignored when SizePercentageOfDisk is set.
	MinSizeBytes int64
	MaxSizeBytes int64

	// SizePercentageOfDisk derives MaxSizeBytes from the disk holding Dir:
	// the given percentage of free space plus what the cache already uses.
	// 0 disables.
	SizePercentageOfDisk float64

	// LowWaterRatio derives MinSizeBytes as a fraction of the derived
	// MaxSizeBytes. Only used with SizePercentageOfDisk.
	LowWaterRatio float64

	// CleanupInterval is how often the background cleaner checks the size.
	// 0 disables the cleaner.
	CleanupInterval Duration

	// MaxConcurrentDownloads bounds parallel archive downloads. 0 is unlimited.
	MaxConcurrentDownloads int64

	// DownloadBytesPerSec caps total download bandwidth. 0 is unlimited.
	DownloadBytesPerSec int64
}

// DefaultConfig contains reasonable default settings.
var DefaultConfig = Config{
	Dir:                    "projects",
	MinSizeBytes:           8 << 30,
	MaxSizeBytes:           10 << 30,
	LowWaterRatio:          0.9,
	CleanupInterval:        Duration(time.Minute),
	MaxConcurrentDownloads: 4,
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch {
	case c.Dir == "":
		return errors.New(errors.CodeInvalidConfig, "Dir must be set")
	case c.MinSizeBytes < 0 || c.MaxSizeBytes < 0:
		return errors.New(errors.CodeInvalidConfig, "size thresholds cannot be negative")
	case c.SizePercentageOfDisk == 0 && c.MinSizeBytes > c.MaxSizeBytes:
		return errors.Newf(errors.CodeInvalidConfig, "MinSizeBytes %d must not exceed MaxSizeBytes %d", c.MinSizeBytes, c.MaxSizeBytes)
	case c.SizePercentageOfDisk < 0 || c.SizePercentageOfDisk > 100:
		return errors.Newf(errors.CodeInvalidConfig, "SizePercentageOfDisk %v must be within [0, 100]", c.SizePercentageOfDisk)
	case c.SizePercentageOfDisk > 0 && (c.LowWaterRatio <= 0 || c.LowWaterRatio > 1):
		return errors.Newf(errors.CodeInvalidConfig, "LowWaterRatio %v must be within (0, 1]", c.LowWaterRatio)
	case c.CleanupInterval < 0:
		return errors.New(errors.CodeInvalidConfig, "CleanupInterval cannot be negative")
	case c.MaxConcurrentDownloads < 0 || c.DownloadBytesPerSec < 0:
		return errors.New(errors.CodeInvalidConfig, "download limits cannot be negative")
	}
	return nil
}

// thresholds returns the low- and high-water marks for the cache in c.Dir.
func (c *Config) thresholds(fsys vfs.FileSystem) (minSize, maxSize int64, err error) {
	if c.SizePercentageOfDisk == 0 {
		return c.MinSizeBytes, c.MaxSizeBytes, nil
	}

	free, err := usableBytes(c.Dir)
	if err != nil {
		return 0, 0, errors.Wrapf(err, errors.CodeInvalidConfig, "determine free space of %s", c.Dir)
	}
	used, err := dirSize(fsys, c.Dir)
	if err != nil {
		return 0, 0, errors.Wrapf(err, errors.CodeInternal, "determine size of %s", c.Dir)
	}

	maxSize = int64(float64(free+used) * c.SizePercentageOfDisk / 100)
	minSize = int64(float64(maxSize) * c.LowWaterRatio)
	return minSize, maxSize, nil
}

// Duration is a time.Duration written as a string ("90s", "5m") in TOML.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// LoadConfig reads a TOML file on top of DefaultConfig and validates the result.
func LoadConfig(file string) (Config, error) {
	cfg := DefaultConfig

	f, err := os.Open(file)
	if err != nil {
		return Config{}, errors.Wrap(err, errors.CodeInvalidConfig, "open config")
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	if err != nil {
		// Add file name to errors that have a line number.
		if _, ok := err.(*toml.LineError); ok {
			err = fmt.Errorf("%s, %w", file, err)
		}
		return Config{}, errors.Wrap(err, errors.CodeInvalidConfig, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
