package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveRoot normalizes the daemon root directory: empty means the current
// directory, relative paths are absolutized, and the directory is created
// if missing. Config and data live under the returned path.
func ResolveRoot(rootDir string) (string, error) {
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for root directory: %w", err)
	}

	info, err := os.Stat(absRoot)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(absRoot, 0o750); err != nil {
			return "", fmt.Errorf("failed to create root directory: %w", err)
		}
	case err != nil:
		return "", err
	case !info.IsDir():
		return "", fmt.Errorf("root directory %s is not a directory", absRoot)
	}

	return absRoot, nil
}
