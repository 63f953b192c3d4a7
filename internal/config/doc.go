// Package config defines the settings of a packaging run and normalizes them.
//
// There is no configuration file: Config is filled from command-line flags and
// Validate applies defaults (plugin name, base and output directories) and turns
// every path into an absolute one.
package config
