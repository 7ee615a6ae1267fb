package update

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// VersionFileName is the marker file recording the installed version. It
// lives inside the install tree so backups snapshot it together with the
// code it describes.
const VersionFileName = "version.json"

// VersionInfo is the content of the version marker file
type VersionInfo struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReadVersion returns the installed version recorded under installRoot,
// or empty when no marker exists yet
func ReadVersion(installRoot string) (string, error) {
	data, err := os.ReadFile(filepath.Join(installRoot, VersionFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read version file: %w", err)
	}

	var info VersionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("failed to parse version file: %w", err)
	}
	return info.Version, nil
}

// WriteVersion records version under installRoot via a temp file and an
// atomic rename. Written only after an install has been verified.
func WriteVersion(installRoot, version string) error {
	data, err := json.MarshalIndent(VersionInfo{Version: version, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode version file: %w", err)
	}

	path := filepath.Join(installRoot, VersionFileName)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write version file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace version file: %w", err)
	}
	return nil
}
