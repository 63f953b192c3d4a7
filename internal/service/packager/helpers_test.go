package packager

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTree creates files (slash-separated names relative to root) with the given contents.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
}

// readArchive returns every entry of the zip at path keyed by name.
func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()

	reader, err := zip.OpenReader(path)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, reader.Close())
	}()

	entries := make(map[string][]byte, len(reader.File))

	for _, file := range reader.File {
		require.NotContains(t, entries, file.Name, "duplicate entry")
		require.Equal(t, zip.Deflate, file.Method)

		rc, err := file.Open()
		require.NoError(t, err)

		contents, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		entries[file.Name] = contents
	}

	return entries
}

// failingReader yields limit bytes and then fails with err.
type failingReader struct {
	limit int
	err   error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.limit <= 0 {
		return 0, r.err
	}

	n := min(len(p), r.limit)
	for i := 0; i < n; i++ {
		p[i] = 'x'
	}

	r.limit -= n

	return n, nil
}

func (r *failingReader) Close() error {
	return nil
}

// failingWriter rejects every write with err.
type failingWriter struct {
	err error
}

func (w *failingWriter) Write([]byte) (int, error) {
	return 0, w.err
}
