package packager

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/oshokin/plugin-packager/internal/config"
	"github.com/oshokin/plugin-packager/internal/domain/archive"
	"github.com/oshokin/plugin-packager/internal/logger"
)

// writeArchive creates target and stores every regular file under source in it.
// The zip writer and the file are closed on every return path; a close failure
// is reported like any other write failure.
func (p *packager) writeArchive(ctx context.Context, source, target string) (entries []archive.Entry, err error) {
	// The plugin directory itself may be a link; WalkDir never descends into a linked root.
	root, err := filepath.EvalSymlinks(source)
	if err != nil {
		return nil, fmt.Errorf("resolve plugin directory: %w", err)
	}

	if err = ensureWritableTarget(target); err != nil {
		return nil, err
	}

	//nolint:gosec // The target path is built from validated settings.
	file, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	writer := zip.NewWriter(p.wrapOutput(file))

	defer func() {
		err = multierr.Combine(err, writer.Close(), file.Close())
	}()

	targetInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	// A manifest from an earlier run is only skipped when this run rewrites it.
	var manifestInfo fs.FileInfo
	if p.cfg.WriteManifest {
		manifestInfo, _ = os.Stat(p.cfg.ManifestPath())
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if path == root {
			return nil
		}

		if p.isExcluded(root, path) {
			logger.DebugKV(ctx, "Skipping excluded path", "path", path)

			if d.IsDir() && !p.matcher.Exclusions() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			return nil
		}

		info, ok, err := regularFileInfo(path, d)
		if err != nil {
			return err
		}

		if !ok {
			logger.DebugKV(ctx, "Skipping non-regular entry", "path", path, "type", d.Type().String())
			return nil
		}

		// The archive or manifest may live inside the plugin directory.
		if os.SameFile(info, targetInfo) || (manifestInfo != nil && os.SameFile(info, manifestInfo)) {
			return nil
		}

		name, err := archive.EntryName(root, p.cfg.PluginName, path)
		if err != nil {
			return err
		}

		entry := archive.Entry{
			Name:       name,
			SourcePath: path,
			Size:       info.Size(),
			Mode:       info.Mode().Perm(),
			ModTime:    info.ModTime(),
		}

		if err = p.addEntry(writer, &entry); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Adding", "entry", entry.Name)

		entries = append(entries, entry)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// ensureWritableTarget refuses a target that exists but is not a regular file,
// so nothing is ever written through a link or into a special file.
func ensureWritableTarget(target string) error {
	info, err := os.Lstat(target)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("stat archive target: %w", err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("%w: %s", errTargetNotRegular, target)
	}

	return nil
}

// addEntry copies the source file into a new deflated archive entry.
// The content checksum is computed on the fly when a manifest is requested.
func (p *packager) addEntry(writer *zip.Writer, entry *archive.Entry) error {
	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: entry.ModTime,
	}
	header.SetMode(entry.Mode)

	dst, err := writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", entry.Name, err)
	}

	src, err := p.openFile(entry.SourcePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.SourcePath, err)
	}

	defer func() {
		_ = src.Close()
	}()

	var hasher hash.Hash

	if p.cfg.WriteManifest {
		if hasher, err = newHasher(); err != nil {
			return err
		}

		dst = io.MultiWriter(dst, hasher)
	}

	if _, err = io.Copy(dst, src); err != nil {
		return fmt.Errorf("write entry %s: %w", entry.Name, err)
	}

	if hasher != nil {
		entry.Checksum = encodeChecksum(hasher.Sum(nil))
	}

	return nil
}

// isExcluded reports whether path (inside source) matches an exclude pattern.
func (p *packager) isExcluded(source, path string) bool {
	if p.matcher == nil {
		return false
	}

	rel, err := filepath.Rel(source, path)
	if err != nil {
		return false
	}

	excluded, err := p.matcher.MatchesOrParentMatches(rel)

	return err == nil && excluded
}

// regularFileInfo returns file info for regular files and for symlinks that
// resolve to regular files. Other entries, dangling links included, report false.
func regularFileInfo(path string, d fs.DirEntry) (fs.FileInfo, bool, error) {
	switch mode := d.Type(); {
	case mode.IsRegular():
		info, err := d.Info()
		if err != nil {
			return nil, false, fmt.Errorf("stat %s: %w", path, err)
		}

		return info, true, nil
	case mode&fs.ModeSymlink != 0:
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}

		if err != nil {
			return nil, false, fmt.Errorf("stat %s: %w", path, err)
		}

		return info, info.Mode().IsRegular(), nil
	default:
		return nil, false, nil
	}
}
