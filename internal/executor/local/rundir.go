package local

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// setupRunDir creates a fresh directory for one execution under baseDir and
// returns it with a cleanup function that removes it and everything in it.
func setupRunDir(baseDir string) (runDir string, cleanup func() error, err error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating base temp directory %s: %w", baseDir, err)
	}

	runDir = filepath.Join(baseDir, "run-"+uuid.NewString())
	// Mkdir (not MkdirAll) fails if the directory exists, so the run owns it.
	if err := os.Mkdir(runDir, 0o700); err != nil {
		return "", nil, fmt.Errorf("creating run directory %s: %w", runDir, err)
	}

	cleanup = func() error {
		if err := os.RemoveAll(runDir); err != nil {
			return fmt.Errorf("removing run directory %s: %w", runDir, err)
		}
		return nil
	}
	return runDir, cleanup, nil
}
