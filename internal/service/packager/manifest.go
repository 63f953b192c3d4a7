package packager

import (
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/plugin-packager/internal/config"
	"github.com/oshokin/plugin-packager/internal/domain/archive"
	"github.com/oshokin/plugin-packager/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

// DefaultChecksumFunction is used to calculate archive and entry hashes.
const DefaultChecksumFunction crypto.Hash = crypto.SHA512

// defaultMapCapacity is the initial capacity for manifest file maps.
const defaultMapCapacity = 16

var errHashUnavailable = errors.New("hash function unavailable")

// Manifest describes a published plugin archive.
type Manifest struct {
	// Version is the plugin-packager version that produced the archive.
	Version string `yaml:"version"`
	// Plugin is the packaged plugin directory name.
	Plugin string `yaml:"plugin"`
	// Archive is the archive filename, relative to the manifest.
	Archive string `yaml:"archive"`
	// Size is the archive size in bytes.
	Size int64 `yaml:"size"`
	// Checksum is the base64-encoded SHA-512 of the archive.
	Checksum string `yaml:"checksum"`
	// Files maps archive entry names to their size and checksum.
	Files map[string]FileDigest `yaml:"files"`
}

// FileDigest is the size and checksum of a single archive entry.
type FileDigest struct {
	// Size is the uncompressed size in bytes.
	Size int64 `yaml:"size"`
	// Checksum is the base64-encoded SHA-512 of the entry contents.
	Checksum string `yaml:"checksum"`
}

// NewManifest produces a Manifest initialized with defaults.
func NewManifest(plugin string) *Manifest {
	return &Manifest{
		Version: version.Short(),
		Plugin:  plugin,
		Files:   make(map[string]FileDigest, defaultMapCapacity),
	}
}

// LoadManifest reads a manifest written by a previous run.
func LoadManifest(path string) (*Manifest, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err = yaml.Unmarshal(contents, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	return &manifest, nil
}

// GetFileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func GetFileChecksum(path string) ([]byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher, err := newHasher()
	if err != nil {
		return nil, err
	}

	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// saveManifest fills a manifest from result and writes it as YAML to path.
func (p *packager) saveManifest(result *archive.Result, path string) error {
	manifest := NewManifest(p.cfg.PluginName)
	manifest.Archive = filepath.Base(result.ArchivePath)
	manifest.Size = result.Size

	checksum, err := GetFileChecksum(result.ArchivePath)
	if err != nil {
		return fmt.Errorf("archive checksum: %w", err)
	}

	manifest.Checksum = encodeChecksum(checksum)

	for _, entry := range result.Entries {
		manifest.Files[entry.Name] = FileDigest{
			Size:     entry.Size,
			Checksum: entry.Checksum,
		}
	}

	contents, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err = os.WriteFile(path, contents, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

func newHasher() (hash.Hash, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	return DefaultChecksumFunction.New(), nil
}

func encodeChecksum(sum []byte) string {
	return base64.StdEncoding.EncodeToString(sum)
}
