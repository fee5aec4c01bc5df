package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/apperr"
)

var ErrInvalidOutputDir = fmt.Errorf("invalid output_dir: %w", apperr.ErrInvalidState)

// ValidateOutputDir rejects empty, unclean and traversing paths, and paths
// that exist but are not directories. A missing directory is allowed; the
// exporter creates it.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: output_dir is required", ErrInvalidOutputDir)
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%w: output_dir cannot contain path traversal", ErrInvalidOutputDir)
		}
	}

	cleaned := filepath.Clean(dir)
	if cleaned != dir {
		return fmt.Errorf("%w: output_dir must be clean path", ErrInvalidOutputDir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidOutputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: output_dir is not a directory", ErrInvalidOutputDir)
	}

	return nil
}
