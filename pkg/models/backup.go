package models

import (
	"time"
)

// BackupRecord describes one full-tree backup archive
type BackupRecord struct {
	// Name is the archive file name inside the backup directory
	Name string `json:"name"`

	// Version is the installed version the archive backs up
	Version string `json:"version"`

	// CreatedAt is when the archive was written
	CreatedAt time.Time `json:"created_at"`

	// Size is the archive size in bytes
	Size int64 `json:"size"`
}
