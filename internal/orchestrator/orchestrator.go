// Package orchestrator drives the per-package fetch/verify/decompress/
// extract/materialize/link pipeline concurrently over a flattened
// dependency tree, then links the requested top-level packages into
// place once every package has settled.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voltpkg/volt/internal/cas"
	"github.com/voltpkg/volt/internal/dlog"
	"github.com/voltpkg/volt/internal/fetch"
	"github.com/voltpkg/volt/internal/gzipx"
	"github.com/voltpkg/volt/internal/integrity"
	"github.com/voltpkg/volt/internal/layout"
	"github.com/voltpkg/volt/internal/linker"
	"github.com/voltpkg/volt/internal/materialize"
	"github.com/voltpkg/volt/internal/model"
	"github.com/voltpkg/volt/internal/platform"
	"github.com/voltpkg/volt/internal/tarextract"
)

// Options bounds the orchestrator's concurrency: how many packages run
// their pipelines at once, and how many blocking (CPU/syscall-heavy)
// workers each materialization step may use.
type Options struct {
	MaxInFlightPackages int
	MaxBlockingWorkers  int
}

func (o Options) withDefaults() Options {
	if o.MaxInFlightPackages <= 0 {
		o.MaxInFlightPackages = 32
	}
	if o.MaxBlockingWorkers <= 0 {
		o.MaxBlockingWorkers = runtime.NumCPU()
	}
	return o
}

// Install creates the store root, filters out platform-incompatible
// packages, runs the per-package pipeline concurrently over the rest,
// awaits everything, then links the requested top-level packages into
// place.
func Install(
	ctx context.Context,
	store *cas.Store,
	fetcher *fetch.Fetcher,
	root string,
	tree map[model.Key]model.FlatPackage,
	requestedRoots []model.Key,
	opts Options,
) (*model.InstallReport, error) {
	opts = opts.withDefaults()
	report := model.NewInstallReport()

	if err := os.MkdirAll(layout.StoreRoot(root), 0o777); err != nil {
		return report, fmt.Errorf("orchestrator: create store root: %w", err)
	}

	active, err := filterCompatible(tree, report)
	if err != nil {
		return report, err
	}

	var reportMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxInFlightPackages)

	for key, pkg := range active {
		key, pkg := key, pkg
		g.Go(func() error {
			start := time.Now()
			skipped, err := runPipeline(gctx, store, fetcher, root, pkg, active, opts)
			duration := time.Since(start)

			reportMu.Lock()
			defer reportMu.Unlock()
			report.Durations[key] = duration

			if err != nil {
				if fatal, ok := err.(fatalError); ok {
					return fatal.err
				}
				report.Failed[key] = err
				return nil
			}

			if skipped {
				report.SkippedExisting = append(report.SkippedExisting, key)
			} else {
				report.Installed = append(report.Installed, key)
			}
			return nil
		})
	}

	if waitErr := g.Wait(); waitErr != nil {
		return report, waitErr
	}

	for _, rootKey := range requestedRoots {
		if _, failed := report.Failed[rootKey]; failed {
			continue
		}
		if _, ok := active[rootKey]; !ok {
			continue
		}
		slot := layout.TopLevelLinkSlot(root, rootKey.Name, rootKey.Version)
		if err := linker.Link(slot); err != nil {
			reportMu.Lock()
			report.Failed[rootKey] = fmt.Errorf("top-level link: %w", err)
			reportMu.Unlock()
		}
	}

	return report, nil
}

// fatalError marks an error that must abort the whole install (store
// corruption or similar), as opposed to a per-package error recorded in
// InstallReport.Failed.
type fatalError struct{ err error }

func (f fatalError) Error() string { return f.err.Error() }

// filterCompatible includes a package iff its os/cpu tags (if any)
// permit the current platform. Filtered packages are recorded as
// incompatible and removed from the working set before the pipeline or
// linking run.
func filterCompatible(tree map[model.Key]model.FlatPackage, report *model.InstallReport) (map[model.Key]model.FlatPackage, error) {
	current := platform.Current()
	currentCPU := platform.CurrentCPU()

	active := make(map[model.Key]model.FlatPackage, len(tree))
	for key, pkg := range tree {
		osOK, err := platform.Compatible(pkg.OS, current)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %s: %w", key, err)
		}
		cpuOK, err := platform.Compatible(pkg.CPU, currentCPU)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %s: %w", key, err)
		}

		if osOK && cpuOK {
			active[key] = pkg
		} else {
			report.Incompatible = append(report.Incompatible, key)
		}
	}
	return active, nil
}

// runPipeline runs one package through fetch/verify/extract (skipped if
// the CAS already has it), materialization, and linking. The bool
// return reports whether the package was served from a warm CAS entry
// rather than freshly fetched.
func runPipeline(
	ctx context.Context,
	store *cas.Store,
	fetcher *fetch.Fetcher,
	root string,
	pkg model.FlatPackage,
	active map[model.Key]model.FlatPackage,
	opts Options,
) (skipped bool, err error) {
	key := model.KeyOf(pkg)
	log := dlog.From(ctx).WithField("package", key.String())
	pkgKey := model.PackageKey(pkg)

	has, err := store.HasMap(pkgKey)
	if err != nil {
		return false, fatalError{fmt.Errorf("cas: check %s: %w", key, &model.CasError{Cause: err})}
	}

	if !has {
		if err := fetchVerifyExtract(ctx, store, fetcher, pkg, pkgKey); err != nil {
			return false, err
		}
		log.Debug("fetched, verified, and extracted")
	} else {
		skipped = true
		log.Debug("warm cache hit, skipping fetch")
	}

	packageRoot := layout.MaterializationRoot(root, pkg.Name, pkg.Version)
	if err := materialize.Materialize(ctx, store, pkgKey, packageRoot, opts.MaxBlockingWorkers); err != nil {
		return skipped, fmt.Errorf("materialize %s: %w", key, err)
	}

	if err := linker.WriteBinLinks(root, packageRoot, pkg.Bin); err != nil {
		return skipped, fmt.Errorf("bin links for %s: %w", key, err)
	}

	for _, slot := range layout.DependencyLinkSlots(root, pkg.Name, pkg.Version, pkg.Dependencies) {
		depKey := model.Key{Name: slot.DepName, Version: pkg.Dependencies[slot.DepName]}
		if _, ok := active[depKey]; !ok {
			// Dependency was filtered out as platform-incompatible (or
			// never existed in the flattened tree as anything but a
			// name): treat it as optional-missing and skip the link
			// rather than failing the package.
			log.WithField("dependency", depKey.String()).Debug("skipping link for inactive dependency")
			continue
		}
		if err := linker.Link(slot); err != nil {
			return skipped, fmt.Errorf("link %s -> %s: %w", key, depKey, err)
		}
	}

	return skipped, nil
}

// fetchVerifyExtract downloads the tarball, verifies its SRI digest,
// decompresses it, and extracts it into the CAS under pkgKey.
func fetchVerifyExtract(ctx context.Context, store *cas.Store, fetcher *fetch.Fetcher, pkg model.FlatPackage, pkgKey string) error {
	body, status, err := fetcher.Fetch(ctx, pkg.TarballURL)
	if err != nil {
		return &model.NetworkError{URL: pkg.TarballURL, Cause: err}
	}
	if status < 200 || status >= 300 {
		return &model.RegistryError{URL: pkg.TarballURL, StatusCode: status}
	}

	ok, actual, err := integrity.Verify(body, pkg.Integrity)
	if err != nil {
		return &model.IntegrityError{Expected: pkg.Integrity, Actual: err.Error()}
	}
	if !ok {
		return &model.IntegrityError{Expected: pkg.Integrity, Actual: actual}
	}

	decompressed, err := gzipx.Decompress(body)
	if err != nil {
		return &model.DecompressError{Cause: err}
	}

	if _, err := tarextract.Extract(store, pkgKey, decompressed); err != nil {
		return &model.TarError{Cause: err}
	}

	return nil
}
