// Package materialize reconstructs a package's directory tree on disk
// from its CAS file map. Work is partitioned into fixed-size chunks run
// on a bounded pool of goroutines, with a created-directories cache so
// repeated MkdirAll calls for files in the same directory don't all hit
// the filesystem.
package materialize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/voltpkg/volt/internal/cas"
)

// chunkSize is the number of files each goroutine writes per task,
// large enough to amortize the per-task scheduling overhead without
// making any single task run long enough to stall the pool.
const chunkSize = 6

// Materialize reconstructs the package identified by packageKey into
// root, reading its file map from store. A target file that already
// exists with equal content is left untouched, checked cheaply by
// size then a byte comparison rather than re-hashing; a file that
// exists with different content is overwritten, which is safe because
// every writer of a given relative path derives its bytes from the same
// blob digest in the file map.
func Materialize(ctx context.Context, store *cas.Store, packageKey, root string, maxWorkers int) error {
	fm, err := store.ReadMap(packageKey)
	if err != nil {
		return fmt.Errorf("materialize: read file map for %s: %w", packageKey, err)
	}

	paths := make([]string, 0, len(fm))
	for p := range fm {
		paths = append(paths, p)
	}

	var createdDirsMu sync.Mutex
	createdDirs := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for start := 0; start < len(paths); start += chunkSize {
		end := start + chunkSize
		if end > len(paths) {
			end = len(paths)
		}
		chunk := paths[start:end]

		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			for _, relPath := range chunk {
				digest := fm[relPath]
				content, err := store.ReadBlob(digest)
				if err != nil {
					return fmt.Errorf("materialize: read blob for %q: %w", relPath, err)
				}

				destPath := filepath.Join(root, relPath)
				destDir := filepath.Dir(destPath)

				createdDirsMu.Lock()
				needsMkdir := !createdDirs[destDir]
				if needsMkdir {
					createdDirs[destDir] = true
				}
				createdDirsMu.Unlock()

				if needsMkdir {
					if err := os.MkdirAll(destDir, 0o777); err != nil {
						return fmt.Errorf("materialize: create directory %q: %w", destDir, err)
					}
				}

				if skip, err := upToDate(destPath, content); err != nil {
					return err
				} else if skip {
					continue
				}

				if err := writeFile(destPath, content); err != nil {
					return fmt.Errorf("materialize: write %q: %w", destPath, err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// upToDate reports whether destPath already holds content, so
// Materialize can skip rewriting it.
func upToDate(destPath string, content []byte) (bool, error) {
	fi, err := os.Stat(destPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if fi.Size() != int64(len(content)) {
		return false, nil
	}

	existing, err := os.ReadFile(destPath)
	if err != nil {
		return false, err
	}

	if len(existing) != len(content) {
		return false, nil
	}
	for i := range existing {
		if existing[i] != content[i] {
			return false, nil
		}
	}
	return true, nil
}

// writeFile is a plain (non-atomic) write. Last-writer-wins is fine here
// because every writer of a given path derives identical bytes from the
// same content-addressed blob.
func writeFile(destPath string, content []byte) error {
	return os.WriteFile(destPath, content, 0o666)
}
