// Package tarextract parses a POSIX tar stream, writes each regular
// file's content into the CAS as a blob, and returns the per-package
// file map. Symlink entries are rejected: following them during
// materialization would let a malicious tarball write outside the
// package's own directory.
package tarextract

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/voltpkg/volt/internal/cas"
)

// npmPrefix is the leading path component npm tarballs wrap every entry
// in; it is stripped before the relative path is recorded.
const npmPrefix = "package/"

// sanitize strips the npm tarball prefix and rejects any entry whose
// path is absolute or escapes the package root, returning the relative
// path to record in the file map.
func sanitize(name string) (string, error) {
	clean := strings.TrimPrefix(name, npmPrefix)
	clean = path.Clean(clean)

	if clean == "." || clean == "" {
		return "", fmt.Errorf("empty path after stripping %q prefix", npmPrefix)
	}
	if path.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("absolute path %q not allowed", name)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, "/../") {
		return "", fmt.Errorf("path traversal in %q", name)
	}

	return clean, nil
}

// Extract parses the tar stream in data, writes each regular file's
// content as a CAS blob, and returns the resulting file map. On success
// the file map has already been published via store.WriteMap, so a
// concurrent reader never observes a partial map.
func Extract(store *cas.Store, packageKey string, data []byte) (cas.FileMap, error) {
	fm := make(cas.FileMap)

	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tar: read header: %w", err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeSymlink, tar.TypeLink:
			return nil, fmt.Errorf("tar: entry %q is a symlink, which is not yet supported", hdr.Name)
		case tar.TypeReg, tar.TypeRegA:
			relPath, err := sanitize(hdr.Name)
			if err != nil {
				return nil, fmt.Errorf("tar: %w", err)
			}

			content := make([]byte, hdr.Size)
			if _, err := io.ReadFull(tr, content); err != nil {
				return nil, fmt.Errorf("tar: read content for %q: %w", hdr.Name, err)
			}

			d, err := store.WriteBlob(content)
			if err != nil {
				return nil, fmt.Errorf("tar: write blob for %q: %w", hdr.Name, err)
			}

			fm[relPath] = d
		default:
			// Ignore other entry types (char/block devices, fifos):
			// nothing an npm package legitimately ships.
			continue
		}
	}

	if err := store.WriteMap(packageKey, fm); err != nil {
		return nil, fmt.Errorf("tar: publish file map: %w", err)
	}

	return fm, nil
}
