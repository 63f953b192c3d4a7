// Package packager builds the distributable zip archive of a plugin directory.
//
// Run validates the plugin directory, creates the output directory, walks the
// tree and stores every regular file under a name relative to the plugin's
// parent directory, so the archive root is the plugin directory itself. Any
// failure while writing removes the partial archive before it is reported.
// Optionally a YAML release manifest with SHA-512 checksums is written next to
// the archive.
package packager
