// Package volt is the public entry point of the install engine: it wires
// the content-addressed store, HTTP fetcher, and orchestrator together
// behind a single Install call.
package volt

import (
	"context"
	"fmt"

	"github.com/voltpkg/volt/internal/cas"
	"github.com/voltpkg/volt/internal/fetch"
	"github.com/voltpkg/volt/internal/model"
	"github.com/voltpkg/volt/internal/orchestrator"
)

// Re-exported so callers outside this module never need to import
// internal/model directly.
type (
	VersionSpec   = model.VersionSpec
	PackageSpec   = model.PackageSpec
	Bin           = model.Bin
	FlatPackage   = model.FlatPackage
	Key           = model.Key
	InstallReport = model.InstallReport

	NetworkError    = model.NetworkError
	RegistryError   = model.RegistryError
	IntegrityError  = model.IntegrityError
	DecompressError = model.DecompressError
	TarError        = model.TarError
	FilesystemError = model.FilesystemError
	LinkConflict    = model.LinkConflict
	CasError        = model.CasError
)

// KeyOf and PackageKey are re-exported for callers building a tree by
// hand (e.g. in tests) rather than receiving one from a resolver.
var (
	KeyOf      = model.KeyOf
	PackageKey = model.PackageKey
)

// Options configures one Install call. A zero Options applies no rate
// limit and falls back to the orchestrator's defaults (32 in-flight
// packages, runtime.NumCPU() blocking workers); it does not read
// internal/voltconfig.
type Options struct {
	// RateLimit, if RequestsPerSecond > 0, caps outbound tarball fetches.
	RateLimit struct {
		RequestsPerSecond float64
		Burst             int
	}
	MaxInFlightPackages int
	MaxBlockingWorkers  int
}

// Install runs the install engine end to end: given a flattened,
// already-resolved dependency tree and the set of directly requested
// packages, it populates the content-addressed store, materializes
// every reachable package under root, links dependency edges, and
// creates the top-level request links. Once the store is open it
// returns a report even when it also returns a non-nil error, so a
// caller can inspect partial progress after a fatal (store-level)
// failure; if the store cannot be opened the report is nil.
func Install(ctx context.Context, casRoot, root string, tree map[Key]FlatPackage, requestedRoots []Key, opts Options) (*InstallReport, error) {
	store, err := cas.Open(casRoot)
	if err != nil {
		return nil, fmt.Errorf("volt: open store: %w", err)
	}

	var fetchOpts []fetch.Option
	if opts.RateLimit.RequestsPerSecond > 0 {
		fetchOpts = append(fetchOpts, fetch.WithRateLimit(opts.RateLimit.RequestsPerSecond, opts.RateLimit.Burst))
	}
	fetcher := fetch.New(fetch.NewClient(), fetchOpts...)

	return orchestrator.Install(ctx, store, fetcher, root, tree, requestedRoots, orchestrator.Options{
		MaxInFlightPackages: opts.MaxInFlightPackages,
		MaxBlockingWorkers:  opts.MaxBlockingWorkers,
	})
}
