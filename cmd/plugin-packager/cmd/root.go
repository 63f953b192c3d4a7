package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/plugin-packager/internal/config"
	"github.com/oshokin/plugin-packager/internal/logger"
	"github.com/oshokin/plugin-packager/internal/report"
	"github.com/oshokin/plugin-packager/internal/service/packager"
	"github.com/oshokin/plugin-packager/internal/version"
)

// errUnknownLogLevel is returned for --log-level values zap does not know.
var errUnknownLogLevel = errors.New("unknown log level")

// flags collects the values bound to the root command's flags.
type flags struct {
	// outputDir is where the archive is created.
	outputDir string
	// pluginName is the plugin directory and the archive base name.
	pluginName string
	// baseDir is the directory that holds the plugin directory.
	baseDir string
	// excludes are ignore patterns relative to the plugin directory.
	excludes []string
	// manifest enables the YAML release manifest.
	manifest bool
	// logLevel is the minimum level of progress logs.
	logLevel string
}

// newRootCommand builds the plugin-packager command with its own flag set.
func newRootCommand() *cobra.Command {
	f := new(flags)

	root := &cobra.Command{
		Use:   "plugin-packager",
		Short: "Package a Kodi plugin directory into an installable ZIP file",
		Long: `Packages the plugin directory into <plugin-name>.zip so it can be installed in Kodi.

Every regular file of the plugin directory is stored under a path that starts
with the plugin directory name (for example plugin.video.cricfy/addon.xml).
A partially written archive is removed when packaging fails.`,
		Example: `  plugin-packager                     # create plugin.video.cricfy.zip next to the executable
  plugin-packager -o dist             # create the ZIP in dist/
  plugin-packager --output-dir dist   # same as above
  plugin-packager --manifest --exclude '**/*.pyc'`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(f.logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, f.logLevel)
			}

			logger.SetLevel(level)

			options := &packager.Options{
				BaseDir:       f.baseDir,
				PluginName:    f.pluginName,
				OutputDir:     f.outputDir,
				Excludes:      f.excludes,
				WriteManifest: f.manifest,
			}

			result, err := packager.Run(cmd.Context(), options)
			if err != nil {
				return err
			}

			return report.Success(cmd.OutOrStdout(), result)
		},
	}

	root.Flags().StringVarP(&f.outputDir, "output-dir", "o", "",
		"directory where the ZIP file will be created (default: directory of the executable)")
	root.Flags().StringVar(&f.pluginName, "plugin-name", config.DefaultPluginName,
		"name of the plugin directory to package")
	root.Flags().StringVar(&f.baseDir, "base-dir", "",
		"directory containing the plugin directory (default: directory of the executable)")
	root.Flags().StringArrayVar(&f.excludes, "exclude", nil,
		"ignore pattern relative to the plugin directory, may be repeated")
	root.Flags().BoolVar(&f.manifest, "manifest", false,
		"write <plugin-name>.yaml with SHA-512 checksums next to the ZIP file")
	root.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	version.AttachCobraVersionCommand(root)

	return root
}

// run executes the command with args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		report.Failure(stderr, err)
		return 1
	}

	return 0
}

// Execute runs the plugin-packager CLI and exits with non-zero status on error.
func Execute() {
	if code := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}
