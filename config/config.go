// Package config loads file system settings from an optional configuration
// file and QUOTAFS_* environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dargueta/quotafs"
	"github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/dargueta/quotafs/tree"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable. The key
// `limits.block_size` is read from QUOTAFS_LIMITS_BLOCK_SIZE.
const EnvPrefix = "QUOTAFS"

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreNone   = "none"
)

type StoreConfig struct {
	// Backend is one of [StoreMemory], [StoreFile], or [StoreNone].
	Backend string
	// Path is the image file used by [StoreFile].
	Path string
}

// Config is everything needed to create a file system.
type Config struct {
	Limits     common.Limits
	Resolution tree.ResolutionMode
	Store      StoreConfig
	LogLevel   logrus.Level
}

func setDefaults(v *viper.Viper) {
	defaults := common.DefaultLimits()
	v.SetDefault("limits.max_filename_length", defaults.MaxFilenameLength)
	v.SetDefault("limits.max_path_length", defaults.MaxPathLength)
	v.SetDefault("limits.max_entries_per_directory", defaults.MaxEntriesPerDirectory)
	v.SetDefault("limits.max_file_size", defaults.MaxFileSize)
	v.SetDefault("limits.block_size", defaults.BlockSize)
	v.SetDefault("limits.total_blocks", defaults.TotalBlocks)
	v.SetDefault("resolution", tree.ResolveRecursive.String())
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.path", "")
	v.SetDefault("log.level", logrus.InfoLevel.String())
}

// New returns a viper instance with every key defaulted and environment
// variables bound.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file at `path`, if given, on top of the
// defaults. Environment variables override both. The file's format is
// determined from its extension.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return nil, errors.ErrInvalidArgument.Wrap(
				fmt.Errorf("can't read configuration file %q: %w", path, err),
			)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	limits := common.Limits{
		MaxFilenameLength:      v.GetInt("limits.max_filename_length"),
		MaxPathLength:          v.GetInt("limits.max_path_length"),
		MaxEntriesPerDirectory: v.GetInt("limits.max_entries_per_directory"),
		MaxFileSize:            v.GetInt64("limits.max_file_size"),
		BlockSize:              v.GetUint("limits.block_size"),
		TotalBlocks:            v.GetUint("limits.total_blocks"),
	}
	err := limits.Validate()
	if err != nil {
		return nil, err
	}

	resolution, err := tree.ParseResolutionMode(v.GetString("resolution"))
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return nil, errors.ErrInvalidArgument.Wrap(err)
	}

	store := StoreConfig{
		Backend: strings.ToLower(v.GetString("store.backend")),
		Path:    v.GetString("store.path"),
	}
	switch store.Backend {
	case StoreMemory, StoreNone:
	case StoreFile:
		if store.Path == "" {
			return nil, errors.ErrInvalidArgument.WithMessage(
				"store.path is required for the file backend",
			)
		}
	default:
		return nil, errors.ErrNotSupported.WithMessage(
			fmt.Sprintf("unknown store backend %q", store.Backend),
		)
	}

	return &Config{
		Limits:     limits,
		Resolution: resolution,
		Store:      store,
		LogLevel:   level,
	}, nil
}

// Options converts the configuration into options for [quotafs.New]. The
// logger isn't configured here; pass [quotafs.WithLogger] separately.
func (cfg *Config) Options() []quotafs.Option {
	options := []quotafs.Option{
		quotafs.WithLimits(cfg.Limits),
		quotafs.WithResolution(cfg.Resolution),
	}

	switch cfg.Store.Backend {
	case StoreNone:
		options = append(options, quotafs.WithoutBlockStore())
	case StoreFile:
		directory, name := filepath.Split(cfg.Store.Path)
		if directory == "" {
			directory = "."
		}
		options = append(options, quotafs.WithFileStore(osfs.New(directory), name))
	}
	return options
}
