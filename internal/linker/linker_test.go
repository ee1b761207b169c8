package linker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltpkg/volt/internal/layout"
	"github.com/voltpkg/volt/internal/model"
)

func TestLinkCreatesDirectoryLink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target-pkg")
	require.NoError(t, os.MkdirAll(target, 0o777))

	slot := layout.LinkSlot{
		DepName:    "target-pkg",
		LinkPath:   filepath.Join(root, "consumer", "node_modules", "target-pkg"),
		TargetPath: target,
	}

	require.NoError(t, Link(slot))

	got, err := readLinkDirectory(slot.LinkPath)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestLinkIsIdempotent(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target-pkg")
	require.NoError(t, os.MkdirAll(target, 0o777))

	slot := layout.LinkSlot{
		LinkPath:   filepath.Join(root, "node_modules", "target-pkg"),
		TargetPath: target,
	}

	require.NoError(t, Link(slot))
	require.NoError(t, Link(slot))
}

func TestLinkDetectsConflict(t *testing.T) {
	root := t.TempDir()
	targetA := filepath.Join(root, "a")
	targetB := filepath.Join(root, "b")
	require.NoError(t, os.MkdirAll(targetA, 0o777))
	require.NoError(t, os.MkdirAll(targetB, 0o777))

	linkPath := filepath.Join(root, "node_modules", "dep")

	require.NoError(t, Link(layout.LinkSlot{LinkPath: linkPath, TargetPath: targetA}))

	err := Link(layout.LinkSlot{LinkPath: linkPath, TargetPath: targetB})
	require.Error(t, err)
	var conflict *model.LinkConflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, targetB, conflict.Expected)
	require.Equal(t, targetA, conflict.Actual)
}

func TestLinkDetectsConflictWithPlainDirectory(t *testing.T) {
	root := t.TempDir()
	linkPath := filepath.Join(root, "node_modules", "dep")
	require.NoError(t, os.MkdirAll(linkPath, 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(linkPath, "marker.txt"), []byte("keep me"), 0o666))

	target := filepath.Join(root, "target-pkg")
	require.NoError(t, os.MkdirAll(target, 0o777))

	err := Link(layout.LinkSlot{LinkPath: linkPath, TargetPath: target})
	require.Error(t, err)
	var conflict *model.LinkConflict
	require.ErrorAs(t, err, &conflict)

	_, statErr := os.Stat(filepath.Join(linkPath, "marker.txt"))
	require.NoError(t, statErr)
}

func TestLinkPermitsDanglingTarget(t *testing.T) {
	root := t.TempDir()
	slot := layout.LinkSlot{
		LinkPath:   filepath.Join(root, "node_modules", "not-yet-materialized"),
		TargetPath: filepath.Join(root, ".volt", "not-yet-materialized@1.0.0", "node_modules", "not-yet-materialized"),
	}

	require.NoError(t, Link(slot))
}

func TestWriteBinLinksCreatesEntryForEachCommand(t *testing.T) {
	root := t.TempDir()
	pkgRoot := filepath.Join(root, ".volt", "left-pad@1.3.0", "node_modules", "left-pad")
	require.NoError(t, os.MkdirAll(pkgRoot, 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(pkgRoot, "cli.js"), []byte("#!/usr/bin/env node"), 0o755))

	err := WriteBinLinks(root, pkgRoot, map[string]string{"left-pad": "cli.js"})
	require.NoError(t, err)

	binDir := layout.BinDir(root)
	entries, err := os.ReadDir(binDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteBinLinksNoopOnEmptyBin(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, WriteBinLinks(root, filepath.Join(root, "pkg"), nil))

	_, err := os.Stat(layout.BinDir(root))
	require.True(t, os.IsNotExist(err))
}
