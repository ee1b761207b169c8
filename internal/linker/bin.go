package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/voltpkg/volt/internal/layout"
)

// WriteBinLinks creates launcher entries in "<nodeModulesRoot>/.bin" for
// each (command -> script) pair in bin, pointing at the package's already
// materialized directory at packageRoot. On unix this is a plain symlink
// to the script; nothing here changes the script's mode, and materialize
// writes every file with mode 0o666, so the target is not marked
// executable. On Windows, which can't execute an arbitrary file directly
// from PATH, it's a small .cmd shim that delegates to node.
func WriteBinLinks(nodeModulesRoot string, packageRoot string, bin map[string]string) error {
	if len(bin) == 0 {
		return nil
	}

	binDir := layout.BinDir(nodeModulesRoot)
	if err := os.MkdirAll(binDir, 0o777); err != nil {
		return fmt.Errorf("linker: create bin directory: %w", err)
	}

	for cmd, scriptRelPath := range bin {
		scriptPath := filepath.Join(packageRoot, scriptRelPath)
		if err := writeBinEntry(binDir, cmd, scriptPath); err != nil {
			return fmt.Errorf("linker: write bin entry %q: %w", cmd, err)
		}
	}

	return nil
}
