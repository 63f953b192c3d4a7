// Package archive contains the core domain types of a packaging run.
//
// Entry maps one regular file on disk to its slash-separated name inside the
// archive, and Result describes the archive a successful run produced.
package archive
