package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the inputs of a single packaging run.
type Config struct {
	// BaseDir is the directory that contains the plugin directory.
	// Defaults to the directory of the running executable.
	BaseDir string
	// PluginName names both the directory to package and the archive base filename.
	PluginName string
	// OutputDir is where the archive is written. Defaults to BaseDir.
	OutputDir string
	// Excludes are ignore-file style patterns matched against paths relative to the plugin directory.
	Excludes []string
	// WriteManifest enables the YAML release manifest next to the archive.
	WriteManifest bool
}

const (
	// DefaultPluginName is the plugin directory packaged when no name is given.
	DefaultPluginName = "plugin.video.cricfy"

	// ArchiveExtension is appended to the plugin name to form the archive filename.
	ArchiveExtension = ".zip"

	// ManifestExtension is appended to the plugin name to form the manifest filename.
	ManifestExtension = ".yaml"

	// DefaultDirPermissions is used when creating the output directory.
	DefaultDirPermissions os.FileMode = 0o755

	// DefaultFilePermissions is used for the archive and the manifest.
	DefaultFilePermissions os.FileMode = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidPluginName is returned for names that cannot be a single directory entry.
	errInvalidPluginName = errors.New("plugin name must be a single directory name")
)

// executable is swapped in tests.
//
//nolint:gochecknoglobals // Test seam for os.Executable.
var executable = os.Executable

// Validate fills defaults and resolves every path in cfg to an absolute one.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	cfg.PluginName = strings.TrimSpace(cfg.PluginName)
	if cfg.PluginName == "" {
		cfg.PluginName = DefaultPluginName
	}

	if err := validatePluginName(cfg.PluginName); err != nil {
		return err
	}

	var err error

	if cfg.BaseDir == "" {
		if cfg.BaseDir, err = ExecutableDir(); err != nil {
			return err
		}
	} else if cfg.BaseDir, err = filepath.Abs(cfg.BaseDir); err != nil {
		return fmt.Errorf("resolve base directory: %w", err)
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.BaseDir
	} else if cfg.OutputDir, err = filepath.Abs(cfg.OutputDir); err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}

	excludes := cfg.Excludes[:0]

	for _, pattern := range cfg.Excludes {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			excludes = append(excludes, pattern)
		}
	}

	cfg.Excludes = excludes

	return nil
}

// SourceDir returns the plugin directory to package.
func (c *Config) SourceDir() string {
	return filepath.Join(c.BaseDir, c.PluginName)
}

// ArchivePath returns the archive target: <OutputDir>/<PluginName>.zip.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.OutputDir, c.PluginName+ArchiveExtension)
}

// ManifestPath returns the manifest location: <OutputDir>/<PluginName>.yaml.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.OutputDir, c.PluginName+ManifestExtension)
}

// ExecutableDir returns the directory holding the running binary, symlinks resolved.
func ExecutableDir() (string, error) {
	path, err := executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}

	if resolved, evalErr := filepath.EvalSymlinks(path); evalErr == nil {
		path = resolved
	}

	return filepath.Dir(path), nil
}

func validatePluginName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", errInvalidPluginName, name)
	}

	return nil
}
