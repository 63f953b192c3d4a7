// Package report prints the human-facing outcome of a packaging run:
// a success marker with the archive path and size on stdout, or a failure
// marker with the error on stderr.
package report
