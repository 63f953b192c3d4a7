package packager

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/plugin-packager/internal/config"
)

const testPlugin = "plugin.video.cricfy"

// TestRun_PackagesPluginTree checks the reference layout: every file is stored once,
// under a name rooted at the plugin directory, with identical bytes.
func TestRun_PackagesPluginTree(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeTree(t, filepath.Join(base, testPlugin), map[string]string{
		"addon.xml":              "<addon id=\"plugin.video.cricfy\"/>\n",
		"resources/settings.xml": "<settings>\r\n</settings>\r\n",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(base, testPlugin, "resources", "empty"), 0o755))

	result, err := Run(context.Background(), &Options{BaseDir: base})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, testPlugin+".zip"), result.ArchivePath)
	require.Len(t, result.Entries, 2)
	require.Empty(t, result.ManifestPath)

	info, err := os.Stat(result.ArchivePath)
	require.NoError(t, err)
	require.Equal(t, info.Size(), result.Size)

	entries := readArchive(t, result.ArchivePath)
	require.Equal(t, map[string][]byte{
		testPlugin + "/addon.xml":              []byte("<addon id=\"plugin.video.cricfy\"/>\n"),
		testPlugin + "/resources/settings.xml": []byte("<settings>\r\n</settings>\r\n"),
	}, entries)
}

// TestRun_PreservesBinaryContents verifies non-text bytes survive compression unchanged.
func TestRun_PreservesBinaryContents(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	payload := make([]byte, 256*1024)

	for i := range payload {
		payload[i] = byte(i*31 + i/7)
	}

	writeTree(t, filepath.Join(base, "plugin.audio.bin"), map[string]string{
		"resources/media/icon.png": string(payload),
	})

	result, err := Run(context.Background(), &Options{BaseDir: base, PluginName: "plugin.audio.bin"})
	require.NoError(t, err)

	entries := readArchive(t, result.ArchivePath)
	require.Equal(t, payload, entries["plugin.audio.bin/resources/media/icon.png"])
}

// TestRun_CreatesOutputDirectory ensures missing output directories are created, including parents.
func TestRun_CreatesOutputDirectory(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeTree(t, filepath.Join(base, testPlugin), map[string]string{"addon.xml": "a"})

	out := filepath.Join(t.TempDir(), "dist", "nightly")

	result, err := Run(context.Background(), &Options{BaseDir: base, OutputDir: out})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, testPlugin+".zip"), result.ArchivePath)
	require.FileExists(t, result.ArchivePath)
	require.NoFileExists(t, filepath.Join(base, testPlugin+".zip"))

	// An existing output directory is fine too.
	_, err = Run(context.Background(), &Options{BaseDir: base, OutputDir: out})
	require.NoError(t, err)
}

// TestRun_OverwritesPreviousArchive checks that a second run replaces the archive without stale entries.
func TestRun_OverwritesPreviousArchive(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	source := filepath.Join(base, testPlugin)
	writeTree(t, source, map[string]string{
		"addon.xml":        "v1",
		"resources/old.py": "print('old')",
	})

	first, err := Run(context.Background(), &Options{BaseDir: base})
	require.NoError(t, err)
	require.Len(t, readArchive(t, first.ArchivePath), 2)

	require.NoError(t, os.RemoveAll(filepath.Join(source, "resources")))
	writeTree(t, source, map[string]string{"addon.xml": "v2"})

	second, err := Run(context.Background(), &Options{BaseDir: base})
	require.NoError(t, err)
	require.Equal(t, first.ArchivePath, second.ArchivePath)
	require.Equal(t, map[string][]byte{testPlugin + "/addon.xml": []byte("v2")}, readArchive(t, second.ArchivePath))
}

// TestRun_MissingSource verifies a missing plugin directory yields ErrNotFound and no archive.
func TestRun_MissingSource(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	out := filepath.Join(base, "dist")

	_, err := Run(context.Background(), &Options{BaseDir: base, PluginName: "plugin.missing", OutputDir: out})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoFileExists(t, filepath.Join(out, "plugin.missing.zip"))
	require.NoDirExists(t, out)
}

// TestRun_SourceIsFile verifies a file at the plugin path yields ErrInvalidTarget.
func TestRun_SourceIsFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, testPlugin), []byte("not a dir"), 0o644))

	_, err := Run(context.Background(), &Options{BaseDir: base})
	require.ErrorIs(t, err, ErrInvalidTarget)
	require.NoFileExists(t, filepath.Join(base, testPlugin+".zip"))
}

// TestRun_OutputDirIsFile verifies that an output path occupied by a file is a packaging error.
func TestRun_OutputDirIsFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeTree(t, filepath.Join(base, testPlugin), map[string]string{"addon.xml": "a"})

	out := filepath.Join(base, "dist")
	require.NoError(t, os.WriteFile(out, nil, 0o644))

	_, err := Run(context.Background(), &Options{BaseDir: base, OutputDir: out})
	require.ErrorIs(t, err, ErrPackaging)
}

// TestPackager_RollsBackOnWriteFailure injects an I/O error mid-entry and checks the partial archive is gone.
func TestPackager_RollsBackOnWriteFailure(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeTree(t, filepath.Join(base, testPlugin), map[string]string{
		"addon.xml":              "<addon/>",
		"resources/settings.xml": "<settings/>",
	})

	// A previous archive must not survive a failed run either.
	target := filepath.Join(base, testPlugin+".zip")
	require.NoError(t, os.WriteFile(target, []byte("stale"), 0o644))

	cfg := &config.Config{BaseDir: base}
	require.NoError(t, config.Validate(cfg))

	pkg, err := newPackager(cfg)
	require.NoError(t, err)

	errDiskFull := errors.New("no space left on device")
	pkg.openFile = func(name string) (io.ReadCloser, error) {
		if filepath.Base(name) == "settings.xml" {
			return &failingReader{limit: 4, err: errDiskFull}, nil
		}

		return os.Open(name)
	}

	_, err = pkg.Run(context.Background())
	require.ErrorIs(t, err, ErrPackaging)
	require.ErrorIs(t, err, errDiskFull)
	require.NoFileExists(t, target)
}

// TestPackager_RollsBackOnOpenFailure checks that a source file that cannot be opened aborts the run.
func TestPackager_RollsBackOnOpenFailure(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeTree(t, filepath.Join(base, testPlugin), map[string]string{"addon.xml": "<addon/>"})

	cfg := &config.Config{BaseDir: base}
	require.NoError(t, config.Validate(cfg))

	pkg, err := newPackager(cfg)
	require.NoError(t, err)

	pkg.openFile = func(string) (io.ReadCloser, error) {
		return nil, os.ErrPermission
	}

	_, err = pkg.Run(context.Background())
	require.ErrorIs(t, err, ErrPackaging)
	require.ErrorIs(t, err, os.ErrPermission)
	require.NoFileExists(t, cfg.ArchivePath())
}

// TestRun_ArchiveInsideSource ensures an archive written into the plugin directory does not include itself.
func TestRun_ArchiveInsideSource(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	source := filepath.Join(base, testPlugin)
	writeTree(t, source, map[string]string{"addon.xml": "a"})

	result, err := Run(context.Background(), &Options{BaseDir: base, OutputDir: source})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{testPlugin + "/addon.xml": []byte("a")}, readArchive(t, result.ArchivePath))
}

// TestRun_InvalidOptions covers configuration errors surfaced before any filesystem work.
func TestRun_InvalidOptions(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	_, err := Run(context.Background(), &Options{BaseDir: base, PluginName: "../escape"})
	require.Error(t, err)

	writeTree(t, filepath.Join(base, testPlugin), map[string]string{"addon.xml": "a"})

	_, err = Run(context.Background(), &Options{BaseDir: base, Excludes: []string{"!"}})
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(base, testPlugin+".zip"))
}
