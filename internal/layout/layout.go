// Package layout computes on-disk directory paths and link targets for
// a package. Every function here is pure: given a package name/version
// and the install root, it returns a path string with no filesystem
// side effects, leaving the actual creation to cas, materialize, and
// linker.
package layout

import (
	"path/filepath"
	"strings"

	"github.com/voltpkg/volt/internal/voltconfig"
)

// Escape replaces "/" with "+" in a (possibly scoped) package name, so
// a scoped name like "@types/node" becomes a single flat path segment
// ("@types+node") instead of an extra nested directory.
func Escape(name string) string {
	return strings.ReplaceAll(name, "/", "+")
}

// StoreRoot returns "<nodeModulesRoot>/.volt".
func StoreRoot(nodeModulesRoot string) string {
	return filepath.Join(nodeModulesRoot, voltconfig.StoreDirName)
}

// PackageDir returns "<store>/<name+>@<version>".
func PackageDir(nodeModulesRoot, name, version string) string {
	return filepath.Join(StoreRoot(nodeModulesRoot), Escape(name)+"@"+version)
}

// MaterializationRoot returns the directory a package's tarball contents
// are written into: "<store>/<name+>@<version>/node_modules/<name>".
// filepath.Join on a scoped name (containing "/") produces the right
// nested "<scope>/<pkg>" directories without any extra handling.
func MaterializationRoot(nodeModulesRoot, name, version string) string {
	return filepath.Join(PackageDir(nodeModulesRoot, name, version), "node_modules", name)
}

// LinkSlot is one planned (link_path, target_path) pair for the linker
// to create.
type LinkSlot struct {
	DepName    string
	LinkPath   string
	TargetPath string
}

// DependencyLinkSlots returns one LinkSlot per dependency edge declared
// by the package at (name, version) with dependencies deps.
func DependencyLinkSlots(nodeModulesRoot, name, version string, deps map[string]string) []LinkSlot {
	ownNodeModules := filepath.Join(PackageDir(nodeModulesRoot, name, version), "node_modules")

	slots := make([]LinkSlot, 0, len(deps))
	for depName, depVersion := range deps {
		slots = append(slots, LinkSlot{
			DepName:    depName,
			LinkPath:   filepath.Join(ownNodeModules, depName),
			TargetPath: MaterializationRoot(nodeModulesRoot, depName, depVersion),
		})
	}
	return slots
}

// TopLevelLinkSlot returns the root-of-request link:
// "node_modules/<requested_name>" -> the package's materialized
// directory.
func TopLevelLinkSlot(nodeModulesRoot, name, version string) LinkSlot {
	return LinkSlot{
		DepName:    name,
		LinkPath:   filepath.Join(nodeModulesRoot, name),
		TargetPath: MaterializationRoot(nodeModulesRoot, name, version),
	}
}

// BinDir returns "<nodeModulesRoot>/.bin", the directory holding launcher
// scripts for every installed package's declared bin entries.
func BinDir(nodeModulesRoot string) string {
	return filepath.Join(nodeModulesRoot, ".bin")
}
