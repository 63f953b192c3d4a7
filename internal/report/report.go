package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/oshokin/plugin-packager/internal/domain/archive"
)

var (
	//nolint:gochecknoglobals // Color printers are stateless.
	successMarker = color.New(color.FgGreen, color.Bold).SprintFunc()
	//nolint:gochecknoglobals // Color printers are stateless.
	failureMarker = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Success writes the archive path and its size in kilobytes.
func Success(w io.Writer, result *archive.Result) error {
	_, err := fmt.Fprintf(w, "\n%s Successfully created: %s\n  Size: %.2f KB\n",
		successMarker("✓"), result.ArchivePath, result.SizeKB())
	if err != nil {
		return err
	}

	if result.ManifestPath != "" {
		_, err = fmt.Fprintf(w, "  Manifest: %s\n", result.ManifestPath)
	}

	return err
}

// Failure writes a single error line.
func Failure(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "\n%s Error: %v\n", failureMarker("✗"), err)
}
