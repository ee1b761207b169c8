// Package model holds the data types shared across the install engine's
// internal packages: the flattened dependency-graph input and the
// install report output. Kept separate from the public volt package so
// internal/orchestrator and friends can depend on these types without
// creating an import cycle back through the root package that wires
// them together.
package model

import "time"

// VersionSpec tags how a registry PackageSpec pins a version. Exact
// resolution of tags and ranges happens upstream of this package; the
// install engine only ever sees FlatPackage, whose Version is already
// exact.
type VersionSpec struct {
	Tag   string // e.g. "latest"
	Exact string // e.g. "1.2.3"
	Range string // e.g. "^1.2.0"
}

// PackageSpec is the input a resolver consumes before producing a
// FlatPackage. It is part of the engine's external interface but is not
// itself processed by the install engine.
type PackageSpec struct {
	Scope   string
	Name    string
	Version VersionSpec
}

// Bin maps a command name to the script path inside the package that
// implements it.
type Bin map[string]string

// FlatPackage is the unit the install engine processes: one exact
// (name, version) pair, fully resolved, with its own dependency edges
// already pointing at other exact versions in the same set.
type FlatPackage struct {
	Name         string
	Version      string
	TarballURL   string
	Integrity    string
	OS           []string
	CPU          []string
	Bin          Bin
	Dependencies map[string]string // dependency name -> exact version
}

// Key identifies this package's entry in the flattened tree. The
// (name, version) pair is unique within a tree. The CAS file-map key is
// PackageKey, which also includes the integrity string.
type Key struct {
	Name    string
	Version string
}

func (k Key) String() string {
	return k.Name + "@" + k.Version
}

// KeyOf returns the Key for p.
func KeyOf(p FlatPackage) Key {
	return Key{Name: p.Name, Version: p.Version}
}

// PackageKey derives the CAS file-map key from (name, version, integrity),
// so two packages sharing (name, version) but differing in tarball bytes
// never collide.
func PackageKey(p FlatPackage) string {
	return p.Name + "@" + p.Version + "#" + p.Integrity
}

// InstallReport summarizes the outcome of one Install call.
type InstallReport struct {
	Installed       []Key
	SkippedExisting []Key
	Incompatible    []Key
	Failed          map[Key]error
	Durations       map[Key]time.Duration
}

// NewInstallReport returns an InstallReport with its maps initialized.
func NewInstallReport() *InstallReport {
	return &InstallReport{
		Failed:    make(map[Key]error),
		Durations: make(map[Key]time.Duration),
	}
}
