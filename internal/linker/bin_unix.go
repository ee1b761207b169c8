//go:build !windows

package linker

import (
	"os"
	"path/filepath"
)

func writeBinEntry(binDir, cmd, scriptPath string) error {
	linkPath := filepath.Join(binDir, cmd)
	if existing, err := os.Readlink(linkPath); err == nil {
		if existing == scriptPath {
			return nil
		}
		if err := os.Remove(linkPath); err != nil {
			return err
		}
	}
	return os.Symlink(scriptPath, linkPath)
}
