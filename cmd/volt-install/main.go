// Command volt-install drives the install engine from a pre-resolved
// dependency tree on disk: flags parse into a config struct, the real
// work happens in the volt library package.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voltpkg/volt"
	"github.com/voltpkg/volt/internal/dlog"
	"github.com/voltpkg/volt/internal/model"
	"github.com/voltpkg/volt/internal/voltconfig"
)

// treeFile is the on-disk shape a resolver writes out: a flattened
// dependency tree plus the set of directly requested top-level
// packages. This command does not resolve semver ranges itself; it
// expects that work already done upstream.
type treeFile struct {
	Packages []model.FlatPackage `json:"packages"`
	Roots    []model.Key         `json:"roots"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		treePath  string
		root      string
		casRoot   string
		verbose   bool
		rateLimit float64
	)

	cmd := &cobra.Command{
		Use:   "volt-install",
		Short: "Materialize a flattened dependency tree into node_modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}

			tree, roots, err := loadTree(treePath)
			if err != nil {
				return err
			}

			cfg, err := voltconfig.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if casRoot != "" {
				cfg.CASRoot = casRoot
			}

			ctx := dlog.WithFields(context.Background(), logrus.Fields{"command": "install"})

			opts := volt.Options{
				MaxInFlightPackages: cfg.MaxInFlightPackages,
				MaxBlockingWorkers:  cfg.MaxBlockingWorkers,
			}
			if rateLimit > 0 {
				opts.RateLimit.RequestsPerSecond = rateLimit
				opts.RateLimit.Burst = 1
			}

			report, err := volt.Install(ctx, cfg.CASRoot, root, tree, roots, opts)
			if report != nil {
				printReport(report)
			}
			if err != nil {
				return fmt.Errorf("install: %w", err)
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("install: %d package(s) failed", len(report.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&treePath, "tree", "", "path to a flattened dependency tree JSON file (required)")
	cmd.Flags().StringVar(&root, "root", "node_modules", "install root (node_modules directory)")
	cmd.Flags().StringVar(&casRoot, "cas-root", "", "override the content-addressed store root")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "max tarball fetches per second (0 disables limiting)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	cmd.MarkFlagRequired("tree")

	return cmd
}

func loadTree(path string) (map[model.Key]model.FlatPackage, []model.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read tree file: %w", err)
	}

	var tf treeFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, nil, fmt.Errorf("parse tree file: %w", err)
	}

	tree := make(map[model.Key]model.FlatPackage, len(tf.Packages))
	for _, pkg := range tf.Packages {
		tree[model.KeyOf(pkg)] = pkg
	}

	return tree, tf.Roots, nil
}

func printReport(r *model.InstallReport) {
	fmt.Printf("installed: %d, skipped: %d, incompatible: %d, failed: %d\n",
		len(r.Installed), len(r.SkippedExisting), len(r.Incompatible), len(r.Failed))
	for key, err := range r.Failed {
		fmt.Printf("  FAILED %s: %v\n", key, err)
	}
}
