// Package linker creates the symlinks (or, on Windows, junctions) that
// wire a package's node_modules/<dep> entries to each dependency's
// materialized directory, plus the .bin launcher shims for a package's
// declared commands. The OS-specific primitive is abstracted behind
// linkDirectory and readLinkDirectory, implemented per-platform in
// linker_unix.go / linker_windows.go, so this file never branches on OS.
package linker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voltpkg/volt/internal/layout"
	"github.com/voltpkg/volt/internal/model"
)

// errNotALink is returned by readLinkDirectory when linkPath exists but
// is some other kind of entry (a plain directory, typically) rather than
// a link this package created. It is deliberately distinct from any
// os.IsNotExist-satisfying error so Link can tell "nothing here yet"
// apart from "something else is already here" instead of conflating the
// two and overwriting whatever occupies the slot.
var errNotALink = errors.New("linker: existing entry is not a link")

// Link creates the link described by slot, creating its parent directory
// first. A dangling target is fine: the filesystem accepts a symlink (or
// junction) to a path that doesn't exist yet. The orchestrator links each
// package right after its own materialization, so a link may briefly
// dangle until its target is materialized; cyclic dependencies resolve
// because every package is materialized before Install returns.
func Link(slot layout.LinkSlot) error {
	if err := os.MkdirAll(filepath.Dir(slot.LinkPath), 0o777); err != nil {
		return fmt.Errorf("linker: create parent of %q: %w", slot.LinkPath, err)
	}

	existingTarget, err := readLinkDirectory(slot.LinkPath)
	switch {
	case err == nil:
		if existingTarget == slot.TargetPath {
			return nil
		}
		return &model.LinkConflict{Path: slot.LinkPath, Expected: slot.TargetPath, Actual: existingTarget}
	case errors.Is(err, errNotALink):
		return &model.LinkConflict{Path: slot.LinkPath, Expected: slot.TargetPath, Actual: "existing non-link entry"}
	case os.IsNotExist(err):
		// Nothing at linkPath yet; fall through to create it below.
	default:
		return fmt.Errorf("linker: inspect existing entry at %q: %w", slot.LinkPath, err)
	}

	if err := linkDirectory(slot.TargetPath, slot.LinkPath); err != nil {
		return fmt.Errorf("linker: create link %q -> %q: %w", slot.LinkPath, slot.TargetPath, err)
	}
	return nil
}
