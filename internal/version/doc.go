// Package version exposes build metadata for plugin-packager.
//
// Version, Commit and BuildTime are injected via -ldflags at release time.
// Short is stamped into release manifests, Full is printed by the `version` subcommand.
package version
