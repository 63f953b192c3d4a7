package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// bytesPerKilobyte converts archive sizes for reporting.
const bytesPerKilobyte = 1024

// errOutsideBase is returned when a path does not live under the base directory.
var errOutsideBase = errors.New("path is outside of the plugin directory")

// Entry is one regular file scheduled for the archive.
type Entry struct {
	// Name is the slash-separated path inside the archive, relative to the
	// parent of the source directory (it starts with the plugin directory name).
	Name string
	// SourcePath is the file on disk whose bytes become the entry contents.
	SourcePath string
	// Size is the uncompressed size in bytes.
	Size int64
	// Mode holds the permission bits recorded in the entry header.
	Mode fs.FileMode
	// ModTime is the modification time recorded in the entry header.
	ModTime time.Time
	// Checksum is the base64 SHA-512 of the contents; empty unless a manifest was requested.
	Checksum string
}

// Result describes an archive written by a successful run.
type Result struct {
	// ArchivePath is the absolute location of the archive.
	ArchivePath string
	// ManifestPath is set when a release manifest was written alongside.
	ManifestPath string
	// Size is the archive size on disk in bytes.
	Size int64
	// Entries lists the files stored in the archive, in write order.
	Entries []Entry
}

// SizeKB returns the archive size in kilobytes.
func (r *Result) SizeKB() float64 {
	return float64(r.Size) / bytesPerKilobyte
}

// EntryName computes the archive name of path, a file below root, as
// rootName followed by the path relative to root, using forward slashes on
// every platform. Callers pass the plugin name as rootName so the archive
// stays rooted at it even when root is the resolved target of a link.
func EntryName(root, rootName, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", path, err)
	}

	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, errOutsideBase)
	}

	return rootName + "/" + filepath.ToSlash(rel), nil
}
