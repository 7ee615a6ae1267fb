package models

import (
	"time"
)

// FileRecord describes a single file in a scanned release tree
type FileRecord struct {
	// Path is the slash-separated path relative to the tree root
	Path string

	// Size in bytes
	Size int64

	// ModTime is the last modification time
	ModTime time.Time

	// Hash is the lowercase hex SHA-256 of the file contents
	Hash string
}

// ModifiedPair holds the old and new records for a file that exists in
// both trees with differing content hashes
type ModifiedPair struct {
	Old FileRecord
	New FileRecord
}

// DiffResult classifies every file of two release trees into exactly one
// of four disjoint sets
type DiffResult struct {
	// Modified are files present in both trees with different hashes
	Modified []ModifiedPair

	// Added are files present only in the new tree
	Added []FileRecord

	// Deleted are files present only in the old tree. Informational only:
	// the install step never removes files from a live tree.
	Deleted []FileRecord

	// Unchanged are files present in both trees with identical hashes
	Unchanged []FileRecord
}

// TotalPaths returns the number of unique paths across both trees
func (d *DiffResult) TotalPaths() int {
	return len(d.Modified) + len(d.Added) + len(d.Deleted) + len(d.Unchanged)
}

// HasChanges reports whether the trees differ at all
func (d *DiffResult) HasChanges() bool {
	return len(d.Modified) > 0 || len(d.Added) > 0 || len(d.Deleted) > 0
}
