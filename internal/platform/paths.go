// Package platform resolves the directories the updater works with: the
// install root, and the staging and backup areas that default to living
// under it.
package platform

import (
	"os"
	"path/filepath"
)

// ResolveUnder resolves path against root. Absolute paths are kept as-is;
// relative paths are anchored under root rather than the process working
// directory, so configured staging/backup locations travel with the
// install tree.
func ResolveUnder(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// ValidateInstallRoot checks that path exists and is a directory
func ValidateInstallRoot(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &PathError{Path: path, Message: "path does not exist"}
	}
	if err != nil {
		return &PathError{Path: path, Message: err.Error()}
	}
	if !info.IsDir() {
		return &PathError{Path: path, Message: "path is not a directory"}
	}

	return nil
}

// SamePath reports whether two paths resolve to the same absolute
// location
func SamePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
