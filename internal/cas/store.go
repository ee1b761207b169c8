// Package cas is a filesystem-backed content-addressed store: a blob
// space keyed by digest, plus a per-package file map (relative path ->
// blob digest) recording which blobs make up each package's tree.
// Shared across installs so identical file content is only ever stored
// once, no matter how many packages reference it.
package cas

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	digest "github.com/opencontainers/go-digest"

	"github.com/voltpkg/volt/internal/voltconfig"
)

// onDiskVersion tags the CAS layout on disk. Bump it whenever the
// directory structure or file-map encoding changes in a way older
// readers can't handle, and reject anything that doesn't match.
const onDiskVersion = 1

// ErrUnknownVersion is returned when the CAS root was written by an
// incompatible (newer or otherwise unrecognized) version of this store.
var ErrUnknownVersion = errors.New("cas: unknown on-disk version")

// FileMap is the serialized mapping from relative path inside a package
// root to the digest of that file's blob.
type FileMap map[string]digest.Digest

// Store is a filesystem-backed content-addressed store rooted at Root.
// All methods are safe for concurrent use by multiple goroutines and
// multiple processes: writes land in a temp file first and are published
// with a single rename, so a reader either sees a complete entry or none.
type Store struct {
	root string
}

// Open returns a Store rooted at root, creating it (and writing the
// version marker) if absent, or validating the existing version marker
// otherwise.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs"), 0o777); err != nil {
		return nil, fmt.Errorf("cas: create store root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "packages"), 0o777); err != nil {
		return nil, fmt.Errorf("cas: create store root: %w", err)
	}

	versionPath := filepath.Join(root, "version")
	data, err := os.ReadFile(versionPath)
	if errors.Is(err, os.ErrNotExist) {
		if werr := atomicWrite(versionPath, []byte(strconv.Itoa(onDiskVersion))); werr != nil {
			return nil, fmt.Errorf("cas: write version marker: %w", werr)
		}
		return &Store{root: root}, nil
	} else if err != nil {
		return nil, fmt.Errorf("cas: read version marker: %w", err)
	}

	v, err := strconv.Atoi(string(data))
	if err != nil || v != onDiskVersion {
		return nil, ErrUnknownVersion
	}

	return &Store{root: root}, nil
}

// DefaultRoot returns the store root implied by voltconfig.Default(), for
// callers that don't override it explicitly.
func DefaultRoot() (string, error) {
	cfg, err := voltconfig.Default()
	if err != nil {
		return "", err
	}
	return cfg.CASRoot, nil
}

// blobPath splits blobs into "<algo>/<first two hex characters>/<hex digest>"
// directories, to keep any one directory from holding an unbounded
// number of entries.
func (s *Store) blobPath(d digest.Digest) (string, error) {
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("cas: invalid digest %q: %w", d, err)
	}
	hex := d.Encoded()
	if len(hex) < 2 {
		return "", fmt.Errorf("cas: digest %q too short", d)
	}
	return filepath.Join(s.root, "blobs", d.Algorithm().String(), hex[:2], hex), nil
}

// packageMapPath returns the file-map path for packageKey. The key is
// hashed to a filesystem-safe directory name; scoped package names
// (containing "/") and the "#" integrity separator would otherwise
// produce awkward nested or ambiguous paths.
func (s *Store) packageMapPath(packageKey string) string {
	h := digest.FromString(packageKey)
	hex := h.Encoded()
	return filepath.Join(s.root, "packages", hex[:2], hex, "filemap.json")
}

// HasBlob reports whether the blob identified by d is present.
func (s *Store) HasBlob(d digest.Digest) (bool, error) {
	p, err := s.blobPath(d)
	if err != nil {
		return false, err
	}
	return exists(p)
}

// WriteBlob stores content, returning its digest. If the blob
// already exists, the write is skipped and the existing digest is
// returned: this is what makes identical file content across packages
// land on disk exactly once.
func (s *Store) WriteBlob(content []byte) (digest.Digest, error) {
	d := digest.FromBytes(content)

	path, err := s.blobPath(d)
	if err != nil {
		return "", err
	}

	has, err := exists(path)
	if err != nil {
		return "", err
	}
	if has {
		return d, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return "", fmt.Errorf("cas: create blob directory: %w", err)
	}
	if err := atomicWrite(path, content); err != nil {
		return "", fmt.Errorf("cas: write blob %s: %w", d, err)
	}

	return d, nil
}

// ReadBlob returns the content of the blob identified by d.
func (s *Store) ReadBlob(d digest.Digest) ([]byte, error) {
	path, err := s.blobPath(d)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// HasMap reports whether a file map exists for packageKey.
func (s *Store) HasMap(packageKey string) (bool, error) {
	return exists(s.packageMapPath(packageKey))
}

// ReadMap returns the file map for packageKey.
func (s *Store) ReadMap(packageKey string) (FileMap, error) {
	data, err := os.ReadFile(s.packageMapPath(packageKey))
	if err != nil {
		return nil, err
	}

	var fm FileMap
	if err := json.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("cas: corrupt file map for %s: %w", packageKey, err)
	}
	return fm, nil
}

// WriteMap atomically publishes fm as the file map for packageKey.
// Concurrent writers of the same key converge to an equivalent map
// because every blob they reference is itself content-addressed and
// deduplicated; whichever writer's rename lands last wins, and both
// maps describe the same tree.
func (s *Store) WriteMap(packageKey string, fm FileMap) error {
	path := s.packageMapPath(packageKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return fmt.Errorf("cas: create package directory: %w", err)
	}

	data, err := json.Marshal(fm)
	if err != nil {
		return fmt.Errorf("cas: encode file map for %s: %w", packageKey, err)
	}

	if err := atomicWrite(path, data); err != nil {
		return fmt.Errorf("cas: write file map for %s: %w", packageKey, err)
	}
	return nil
}

// atomicWrite writes data to a uuid-suffixed temp file alongside path and
// renames it over path, so a crash or a concurrent reader never observes
// a partially written entry.
func atomicWrite(path string, data []byte) error {
	tempPath := path + "." + uuid.NewString() + ".tmp"

	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, data, 0o666); err != nil {
		_ = os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		rmErr := os.Remove(tempPath)
		return errors.Join(err, rmErr)
	}

	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
