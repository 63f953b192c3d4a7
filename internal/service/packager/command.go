package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/moby/patternmatcher"
	"go.uber.org/multierr"

	"github.com/oshokin/plugin-packager/internal/config"
	"github.com/oshokin/plugin-packager/internal/domain/archive"
	"github.com/oshokin/plugin-packager/internal/logger"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// BaseDir is the directory holding the plugin directory (defaults to the executable's directory).
	BaseDir string
	// PluginName is the plugin directory name and the archive base filename.
	PluginName string
	// OutputDir is where the archive is created (defaults to BaseDir). Missing directories are created.
	OutputDir string
	// Excludes are optional ignore patterns relative to the plugin directory.
	Excludes []string
	// WriteManifest enables the YAML release manifest.
	WriteManifest bool
}

var (
	// ErrNotFound is returned when the plugin directory does not exist.
	ErrNotFound = errors.New("plugin directory not found")
	// ErrInvalidTarget is returned when the plugin path exists but is not a directory.
	ErrInvalidTarget = errors.New("path exists but is not a directory")
	// ErrPackaging wraps every I/O failure while creating the output directory or writing the archive.
	ErrPackaging = errors.New("failed to create ZIP file")

	// errTargetNotRegular is returned when the archive path is taken by a link, directory or device.
	errTargetNotRegular = errors.New("archive target exists and is not a regular file")
)

// packager holds one packaging run.
// Callers go through Run, which validates the options first.
type packager struct {
	// cfg holds the normalized run settings.
	cfg *config.Config
	// matcher filters excluded paths; nil when no patterns were given.
	matcher *patternmatcher.PatternMatcher
	// openFile opens a source file for reading.
	openFile func(name string) (io.ReadCloser, error)
	// wrapOutput wraps the archive file before the zip writer uses it.
	wrapOutput func(w io.Writer) io.Writer
}

// Run packages the plugin directory and returns the produced archive.
func Run(ctx context.Context, opts *Options) (*archive.Result, error) {
	ctx = logger.WithName(ctx, "plugin-packager")

	cfg := &config.Config{
		BaseDir:       opts.BaseDir,
		PluginName:    opts.PluginName,
		OutputDir:     opts.OutputDir,
		Excludes:      append([]string(nil), opts.Excludes...),
		WriteManifest: opts.WriteManifest,
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	pkg, err := newPackager(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize packager: %w", err)
	}

	return pkg.Run(logger.WithKV(ctx, "plugin", cfg.PluginName))
}

// newPackager creates a packager for an already validated configuration.
func newPackager(cfg *config.Config) (*packager, error) {
	pkg := &packager{
		cfg: cfg,
		openFile: func(name string) (io.ReadCloser, error) {
			return os.Open(name) //nolint:gosec // Paths come from walking the plugin directory.
		},
		wrapOutput: func(w io.Writer) io.Writer {
			return w
		},
	}

	if len(cfg.Excludes) > 0 {
		matcher, err := patternmatcher.New(cfg.Excludes)
		if err != nil {
			return nil, fmt.Errorf("parse exclude patterns: %w", err)
		}

		pkg.matcher = matcher
	}

	return pkg, nil
}

// Run validates inputs, writes the archive and, if requested, its manifest.
func (p *packager) Run(ctx context.Context) (*archive.Result, error) {
	source := p.cfg.SourceDir()
	if err := validateSource(source); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.cfg.OutputDir, config.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("%w: create output directory: %w", ErrPackaging, err)
	}

	target := p.cfg.ArchivePath()

	logger.InfoKV(ctx, "Packaging plugin", "source", source)
	logger.InfoKV(ctx, "Creating ZIP file", "path", target)

	entries, err := p.writeArchive(ctx, source, target)
	if err != nil {
		return nil, rollback(ctx, err, target)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, rollback(ctx, fmt.Errorf("stat archive: %w", err), target)
	}

	result := &archive.Result{
		ArchivePath: target,
		Size:        info.Size(),
		Entries:     entries,
	}

	if p.cfg.WriteManifest {
		manifestPath := p.cfg.ManifestPath()

		logger.InfoKV(ctx, "Saving release manifest", "path", manifestPath)

		if err = p.saveManifest(result, manifestPath); err != nil {
			return nil, rollback(ctx, err, target, manifestPath)
		}

		result.ManifestPath = manifestPath
	}

	logger.InfoKV(ctx, "Archive created",
		"path", target,
		"entries", len(entries),
		"size_kb", fmt.Sprintf("%.2f", result.SizeKB()),
	)

	return result, nil
}

// rollback removes partially written outputs and wraps cause into ErrPackaging.
// Only regular files are removed; removal failures are appended to the returned error.
func rollback(ctx context.Context, cause error, paths ...string) error {
	err := fmt.Errorf("%w: %w", ErrPackaging, cause)

	for _, path := range paths {
		info, statErr := os.Lstat(path)
		if errors.Is(statErr, fs.ErrNotExist) || (statErr == nil && !info.Mode().IsRegular()) {
			continue
		}

		if statErr == nil {
			statErr = os.Remove(path)
		}

		if statErr != nil {
			err = multierr.Append(err, fmt.Errorf("remove partial output %s: %w", path, statErr))
			continue
		}

		logger.WarnKV(ctx, "Removed partial output", "path", path)
	}

	return err
}

// validateSource checks that source exists and is a directory.
func validateSource(source string) error {
	info, err := os.Stat(source)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, source)
	case err != nil:
		return fmt.Errorf("%w: stat plugin directory: %w", ErrPackaging, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s", ErrInvalidTarget, source)
	}

	return nil
}
